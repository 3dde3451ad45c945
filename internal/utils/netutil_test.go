package utils

import (
	"net"
	"testing"

	"github.com/APasz/Yukibot/internal/logger"
)

func init() {
	logger.InitLogger("console", "error", false)
}

/**
 * 测试端口可连接性探测
 */
func TestCheckPortConnectable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	if !CheckPortConnectable("127.0.0.1", port) {
		t.Error("Expected listening port to be connectable")
	}

	listener.Close()
	if CheckPortConnectable("127.0.0.1", port) {
		t.Error("Expected closed port to not be connectable")
	}
}
