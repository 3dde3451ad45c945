//go:build windows

package utils

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/APasz/Yukibot/internal/logger"
)

/**
 * 枚举系统进程(Windows)
 * @returns {[]StrayProcess} 所有进程的pid/进程名/命令行
 * @description
 * - 使用wmic获取进程名和完整命令行
 * - wmic输出CSV格式: Node,CommandLine,Name,ProcessId
 */
func listProcesses() []StrayProcess {
	cmd := exec.Command("wmic", "process", "get", "Name,ProcessId,CommandLine", "/format:csv")
	output, err := cmd.Output()
	if err != nil {
		logger.Warnf("Failed to list processes: %v", err)
		return nil
	}

	var procs []StrayProcess
	lines := strings.Split(string(output), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Node,") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			continue
		}
		// 命令行自身可能含逗号，PID取最后一列，Name取倒数第二列
		pid, err := strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
		if err != nil {
			continue
		}
		procs = append(procs, StrayProcess{
			Pid:     pid,
			Name:    strings.TrimSpace(fields[len(fields)-2]),
			Cmdline: strings.Join(fields[1:len(fields)-2], ","),
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

// IsProcessRunning 检查进程是否存在
func IsProcessRunning(pid int) (bool, error) {
	for _, proc := range listProcesses() {
		if proc.Pid == pid {
			return true, nil
		}
	}
	return false, nil
}

/**
 * 优雅地杀死进程：先taskkill，失败后强制/F
 * @param {int} pid - 进程ID
 * @param {string} procName - 进程名，用于日志
 * @returns {error} 失败时返回错误
 */
func killProcessGracefully(pid int, procName string) error {
	logger.Infof("Attempting graceful termination of process %s (PID: %d)", procName, pid)
	if err := exec.Command("taskkill", "/PID", strconv.Itoa(pid)).Run(); err == nil {
		return nil
	}

	logger.Warnf("Graceful termination failed, force killing process %s (PID: %d)", procName, pid)
	if err := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run(); err != nil {
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
	cmd.SysProcAttr.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
}

// TerminateProcess 发送优雅终止信号，Windows下没有SIGTERM，直接Kill
func TerminateProcess(proc *os.Process) error {
	return proc.Kill()
}
