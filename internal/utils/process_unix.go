//go:build unix || linux || darwin

package utils

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/APasz/Yukibot/internal/logger"
)

/**
 * 枚举系统进程(Linux/macOS)
 * @returns {[]StrayProcess} 所有进程的pid/进程名/命令行
 * @description
 * - 使用兼容Linux和Darwin的ps命令格式
 * - -e: 显示所有进程，-o: 自定义输出格式
 * - 使用command字段替代comm字段，避免命令名被截断
 */
func listProcesses() []StrayProcess {
	cmd := exec.Command("ps", "-e", "-o", "pid,command")
	output, err := cmd.Output()
	if err != nil {
		logger.Warnf("Failed to list processes: %v", err)
		return nil
	}

	var procs []StrayProcess
	lines := strings.Split(string(output), "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		// 跳过标题行
		if strings.HasPrefix(strings.TrimSpace(line), "PID") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		procs = append(procs, StrayProcess{
			Pid:     pid,
			Name:    Path2ProcessName(fields[1]),
			Cmdline: strings.Join(fields[1:], " "),
		})
	}
	return procs
}

// GetProcessName 获取指定PID的进程名
func GetProcessName(pid int) (string, error) {
	for _, proc := range listProcesses() {
		if proc.Pid == pid {
			return proc.Name, nil
		}
	}
	return "", fmt.Errorf("process %d not found", pid)
}

// IsProcessRunning 检查进程是否存在（信号0探测）
func IsProcessRunning(pid int) (bool, error) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false, nil
	}
	return true, nil
}

/**
 * 优雅地杀死进程：先SIGTERM，等待退出，再SIGKILL
 * @param {int} pid - 进程ID
 * @param {string} procName - 进程名，用于日志
 * @returns {error} 失败时返回错误
 */
func killProcessGracefully(pid int, procName string) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %s (PID: %d): %v", procName, pid, err)
	}

	// 首先尝试优雅终止 (SIGTERM)
	logger.Infof("Attempting graceful termination of process %s (PID: %d)", procName, pid)
	err = process.Signal(syscall.SIGTERM)
	if err == nil {
		// 等待进程退出
		for i := 0; i < 10; i++ {
			if err := process.Signal(syscall.Signal(0)); err != nil {
				// 进程已退出
				logger.Infof("Process %s (PID: %d) terminated gracefully", procName, pid)
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	}

	// 如果SIGTERM失败，使用强制终止 (SIGKILL)
	logger.Warnf("Graceful termination failed, force killing process %s (PID: %d)", procName, pid)
	err = process.Signal(syscall.SIGKILL)
	if err != nil {
		return fmt.Errorf("failed to kill process %s (PID: %d): %v", procName, pid, err)
	}

	logger.Infof("Process %s (PID: %d) force killed", procName, pid)
	return nil
}

// SetNewPG 设置进程属性，使子进程运行在独立进程组
func SetNewPG(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// TerminateProcess 向进程发送优雅终止信号
func TerminateProcess(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
