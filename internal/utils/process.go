package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func FindProcess(processName string, pid int) (*os.Process, error) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, err
	}

	// 获取进程名
	name, err := GetProcessName(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to get process name for PID %d: %v", pid, err)
	}

	// 比较进程名（不区分大小写）
	if strings.EqualFold(name, processName) {
		return proc, nil
	}
	return nil, fmt.Errorf("process name mismatch: expected '%s', got '%s'", processName, name)
}

// Path2ProcessName 从命令行首段提取进程名
func Path2ProcessName(cmdPath string) string {
	return filepath.Base(strings.TrimSpace(cmdPath))
}

/**
 * StrayProcess 游离进程，进程表扫描的结果
 * @property {int} pid - 进程ID
 * @property {string} name - 进程名
 * @property {string} cmdline - 完整命令行
 */
type StrayProcess struct {
	Pid     int
	Name    string
	Cmdline string
}

/**
 * 按进程名子串+命令行片段匹配游离进程
 * @param {string} processName - 进程名子串(不区分大小写)
 * @param {[]string} cmdFragments - 必须全部出现在命令行里的片段
 * @returns {[]StrayProcess} 匹配到的进程
 * @description
 * - 子串匹配是近似的，可能误伤命令行碰巧相同的无关进程
 * - 自身进程永远被排除
 */
func ScanStrayProcesses(processName string, cmdFragments []string) []StrayProcess {
	if processName == "" {
		return nil
	}
	selfPid := os.Getpid()

	var matched []StrayProcess
	for _, proc := range listProcesses() {
		if proc.Pid == selfPid {
			continue
		}
		if !strings.Contains(strings.ToLower(proc.Name), strings.ToLower(processName)) {
			continue
		}
		cmdline := strings.ToLower(proc.Cmdline)
		all := true
		for _, fragment := range cmdFragments {
			if !strings.Contains(cmdline, strings.ToLower(fragment)) {
				all = false
				break
			}
		}
		if all {
			matched = append(matched, proc)
		}
	}
	return matched
}

/**
 * 强制清理游离进程：先TERM等退出，再KILL
 * @param {string} processName - 进程名子串
 * @param {[]string} cmdFragments - 命令行片段
 * @returns {int} 被处理的进程数
 */
func KillStrayProcesses(processName string, cmdFragments []string) int {
	strays := ScanStrayProcesses(processName, cmdFragments)
	for _, proc := range strays {
		killProcessGracefully(proc.Pid, proc.Name)
	}
	return len(strays)
}
