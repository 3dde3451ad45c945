package utils

import (
	"fmt"
	"net"
	"time"
)

// CheckPortConnectable 端口可连接，说明服务正在监听
func CheckPortConnectable(host string, port int) bool {
	timeout := time.Second
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
