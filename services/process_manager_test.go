//go:build !windows

package services

import (
	"bufio"
	"testing"
	"time"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/models"
)

func newTestProcess(t *testing.T, title string, script string) *ProcessInstance {
	t.Helper()
	env.YukibotDir = t.TempDir()
	// 命令行带唯一标记，游离进程扫描不会误伤无关的sh进程
	marker := ": " + title + "-marker"
	return NewProcessInstance(title, &models.AppSpec{
		Name:        title,
		Command:     "sh",
		Args:        []string{"-c", marker + "; " + script},
		ProcessName: "sh",
		ProcessCmd:  []string{title + "-marker"},
	})
}

/**
 * 测试进程启动、存活判定与终止
 */
func TestProcessLifecycle(t *testing.T) {
	pi := newTestProcess(t, "lifecycle-test", "sleep 30")

	if err := pi.StartProcess(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	if !pi.CheckRunning() {
		t.Fatal("Expected process to be running")
	}
	if pi.Pid() == 0 {
		t.Error("Expected a nonzero pid")
	}

	if err := pi.Terminate(); err != nil {
		t.Fatalf("Failed to terminate process: %v", err)
	}
	if pi.Status != models.StatusStopped {
		t.Errorf("Expected status stopped, got %s", pi.Status)
	}
	if pi.CheckRunning() {
		t.Error("Expected process to be gone after terminate")
	}
}

/**
 * 测试stdin写入与stdout管道读取
 */
func TestProcessStdinStdout(t *testing.T) {
	pi := newTestProcess(t, "stdio-test", "cat")

	if err := pi.StartProcess(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	defer pi.Terminate()

	if err := pi.WriteStdin("hello console"); err != nil {
		t.Fatalf("Failed to write stdin: %v", err)
	}

	reader := bufio.NewReader(pi.Stdout())
	lineCh := make(chan string, 1)
	go func() {
		line, err := reader.ReadString('\n')
		if err == nil {
			lineCh <- line
		}
	}()
	select {
	case line := <-lineCh:
		if line != "hello console\n" {
			t.Errorf("Unexpected echoed line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for echoed line")
	}
}

/**
 * 测试无视SIGTERM的进程被升级为SIGKILL
 */
func TestProcessTerminateEscalation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping escalation test in short mode")
	}
	pi := newTestProcess(t, "stubborn-test", `trap "" TERM; while true; do sleep 1; done`)

	if err := pi.StartProcess(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}
	if !pi.CheckRunning() {
		t.Fatal("Expected process to be running")
	}

	if err := pi.Terminate(); err != nil {
		t.Fatalf("Failed to terminate process: %v", err)
	}
	if pi.Status != models.StatusStopped {
		t.Errorf("Expected status stopped, got %s", pi.Status)
	}
	if pi.CheckRunning() {
		t.Error("Expected stubborn process to be killed")
	}
}

/**
 * 测试启动失败时状态为error
 */
func TestProcessStartFailure(t *testing.T) {
	env.YukibotDir = t.TempDir()
	pi := NewProcessInstance("missing-test", &models.AppSpec{
		Name:        "missing-test",
		Command:     "/nonexistent/yukibot-test-binary",
		ProcessName: "yukibot-test-binary",
	})

	if err := pi.StartProcess(); err == nil {
		t.Fatal("Expected start to fail for a missing binary")
	}
	if pi.Status != models.StatusError {
		t.Errorf("Expected status error, got %s", pi.Status)
	}
}

/**
 * 测试进程自然退出后状态与退出原因被记录
 */
func TestProcessNaturalExit(t *testing.T) {
	pi := newTestProcess(t, "exit-test", "exit 0")

	if err := pi.StartProcess(); err != nil {
		t.Fatalf("Failed to start process: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		pi.mutex.Lock()
		defer pi.mutex.Unlock()
		return pi.LastExitReason != ""
	})
	pi.mutex.Lock()
	status := pi.Status
	reason := pi.LastExitReason
	pi.mutex.Unlock()
	if status != models.StatusExited {
		t.Errorf("Expected status exited, got %s", status)
	}
	if reason != "exited normally" {
		t.Errorf("Unexpected exit reason %q", reason)
	}
}
