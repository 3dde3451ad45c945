package services

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"
)

// telnetEchoServer 记录收到的行的回环服务器
type telnetEchoServer struct {
	listener net.Listener

	mu    sync.Mutex
	lines []string
	conns []net.Conn
}

func newTelnetEchoServer(t *testing.T) *telnetEchoServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	s := &telnetEchoServer{listener: listener}
	go s.acceptLoop()
	t.Cleanup(func() { listener.Close() })
	return s
}

func (s *telnetEchoServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go func(conn net.Conn) {
			scanner := bufio.NewScanner(conn)
			for scanner.Scan() {
				s.mu.Lock()
				s.lines = append(s.lines, scanner.Text())
				s.mu.Unlock()
			}
		}(conn)
	}
}

func (s *telnetEchoServer) port() int {
	_, portStr, _ := net.SplitHostPort(s.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

func (s *telnetEchoServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// dropConns 模拟服务器端断开
func (s *telnetEchoServer) dropConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}

/**
 * 测试同一身份复用同一客户端，不同身份各自独立
 */
func TestTelnetClientPooling(t *testing.T) {
	server := newTelnetEchoServer(t)
	port := server.port()

	a := GetTelnetClient("app@1", "127.0.0.1", port, "", "", nil)
	b := GetTelnetClient("app@1", "127.0.0.1", port, "", "", nil)
	c := GetTelnetClient("app@2", "127.0.0.1", port, "", "", nil)
	defer ReleaseTelnetClient("app@1", "127.0.0.1", port)
	defer ReleaseTelnetClient("app@2", "127.0.0.1", port)

	if a != b {
		t.Error("Expected same client for identical identity")
	}
	if a == c {
		t.Error("Expected different clients for different identities")
	}
}

/**
 * 测试命令按前后缀成帧发送
 */
func TestTelnetClientSendFraming(t *testing.T) {
	server := newTelnetEchoServer(t)
	port := server.port()

	client := GetTelnetClient("framing@1", "127.0.0.1", port, "auth ", "\n", nil)
	defer ReleaseTelnetClient("framing@1", "127.0.0.1", port)

	if err := client.Send("say hello"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	if err := client.Send("listplayers"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(server.received()) == 2 })
	lines := server.received()
	if lines[0] != "auth say hello" {
		t.Errorf("Expected prefixed command, got %q", lines[0])
	}
	if lines[1] != "auth listplayers" {
		t.Errorf("Expected prefixed command, got %q", lines[1])
	}
}

/**
 * 测试写入失败时自动重连并重发
 */
func TestTelnetClientSendReconnects(t *testing.T) {
	server := newTelnetEchoServer(t)
	port := server.port()

	client := GetTelnetClient("reconnect@1", "127.0.0.1", port, "", "\n", nil)
	defer ReleaseTelnetClient("reconnect@1", "127.0.0.1", port)

	if err := client.Send("before"); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(server.received()) == 1 })

	// 服务器断开后第一次写入可能仍然成功(缓冲)，多发几次触发重连
	server.dropConns()
	var err error
	for i := 0; i < 5; i++ {
		err = client.Send("after")
		if err != nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Expected send to recover via reconnect: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(server.received()) >= 2 })
}

/**
 * 测试存活判定为假时Setup立即放弃
 */
func TestTelnetClientAbortsWhenDead(t *testing.T) {
	// 端口未监听，存活判定直接为假
	client := GetTelnetClient("dead@1", "127.0.0.1", 1, "", "\n", func() bool { return false })
	defer ReleaseTelnetClient("dead@1", "127.0.0.1", 1)

	start := time.Now()
	err := client.Setup()
	if err == nil {
		t.Fatal("Expected setup to fail for a dead workload")
	}
	if time.Since(start) > telnetRetryInterval*3 {
		t.Error("Expected setup to abort without exhausting retries")
	}
}

/**
 * 测试AcquireReader交出连接读取端
 */
func TestTelnetClientAcquireReader(t *testing.T) {
	server := newTelnetEchoServer(t)
	port := server.port()

	client := GetTelnetClient("reader@1", "127.0.0.1", port, "", "\n", nil)
	defer ReleaseTelnetClient("reader@1", "127.0.0.1", port)

	conn, err := client.AcquireReader()
	if err != nil {
		t.Fatalf("Failed to acquire reader: %v", err)
	}

	// 服务器写，客户端连接上读
	waitFor(t, 2*time.Second, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return len(server.conns) == 1
	})
	server.mu.Lock()
	serverConn := server.conns[0]
	server.mu.Unlock()
	serverConn.Write([]byte("console output\n"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read from connection: %v", err)
	}
	if line != "console output\n" {
		t.Errorf("Unexpected line %q", line)
	}
}
