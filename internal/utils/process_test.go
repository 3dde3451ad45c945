//go:build !windows

package utils

import (
	"os"
	"testing"
)

/**
 * 测试按进程名核对PID：名字匹配成功，不匹配报错
 */
func TestFindProcessNameCheck(t *testing.T) {
	pid := os.Getpid()
	name, err := GetProcessName(pid)
	if err != nil {
		t.Fatalf("Failed to get own process name: %v", err)
	}

	if _, err := FindProcess(name, pid); err != nil {
		t.Errorf("Expected own process to be found by its name: %v", err)
	}
	if _, err := FindProcess("definitely-not-this-name", pid); err == nil {
		t.Error("Expected mismatched process name to be rejected")
	}
}

/**
 * 测试从命令行首段提取进程名
 */
func TestPath2ProcessName(t *testing.T) {
	if got := Path2ProcessName("/usr/bin/sh"); got != "sh" {
		t.Errorf("Expected sh, got %q", got)
	}
	if got := Path2ProcessName("  ./server  "); got != "server" {
		t.Errorf("Expected server, got %q", got)
	}
}
