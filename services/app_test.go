//go:build !windows

package services

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/models"
)

/**
 * 测试管理协议建立失败的启动：连接池里的客户端条目被清理
 */
func TestStartFailureReleasesAdminClient(t *testing.T) {
	env.YukibotDir = t.TempDir()

	// 取一个确定无人监听的端口
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	spec := testAppSpec("startfail", "", "")
	spec.Args = []string{"-c", ": startfail-marker; sleep 0.3"}
	spec.Protocol = "telnet"
	spec.Host = "127.0.0.1"
	spec.Port = port

	app := NewAppInstance(&spec)
	if err := app.Start(); err == nil {
		app.Stop()
		t.Fatal("Expected start to fail when the admin port never comes up")
	}
	if app.Status() != models.StatusError {
		t.Errorf("Expected error status, got %s", app.Status())
	}

	telnetClientsLock.Lock()
	var leaked []string
	for key := range telnetClients {
		if strings.Contains(key, "startfail") {
			leaked = append(leaked, key)
		}
	}
	telnetClientsLock.Unlock()
	if len(leaked) > 0 {
		t.Errorf("Expected no pooled telnet clients after a failed start, leaked %v", leaked)
	}
}

/**
 * 测试轮询到期判定：首次到期，间隔内不再到期，过后再次到期
 */
func TestPollDue(t *testing.T) {
	app := NewAppInstance(&models.AppSpec{Name: "poll_due", Adapter: "plain"})

	if !app.PollDue("stats", 50*time.Millisecond) {
		t.Error("Expected first check to be due")
	}
	if app.PollDue("stats", 50*time.Millisecond) {
		t.Error("Expected check within the interval to not be due")
	}
	time.Sleep(60 * time.Millisecond)
	if !app.PollDue("stats", 50*time.Millisecond) {
		t.Error("Expected check after the interval to be due")
	}
	if app.PollDue("other", 0) {
		t.Error("Expected zero interval to never be due")
	}
}
