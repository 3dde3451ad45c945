package services

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

// Source RCON协议包类型
const (
	rconTypeResponse = 0
	rconTypeExec     = 2
	rconTypeAuth     = 3
)

// rconTestServer 最小可用的RCON测试服务器
type rconTestServer struct {
	listener net.Listener
	password string
	handler  func(command string) string
}

func newRconTestServer(t *testing.T, password string, handler func(string) string) *rconTestServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	s := &rconTestServer{listener: listener, password: password, handler: handler}
	go s.acceptLoop()
	t.Cleanup(func() { listener.Close() })
	return s
}

func (s *rconTestServer) port() int {
	_, portStr, _ := net.SplitHostPort(s.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

func (s *rconTestServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serveConn(conn)
	}
}

func (s *rconTestServer) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		id, packetType, body, err := readRconPacket(conn)
		if err != nil {
			return
		}
		switch packetType {
		case rconTypeAuth:
			responseID := id
			if body != s.password {
				responseID = -1
			}
			writeRconPacket(conn, responseID, 2, "")
		case rconTypeExec:
			response := ""
			if s.handler != nil {
				response = s.handler(body)
			}
			writeRconPacket(conn, id, rconTypeResponse, response)
		}
	}
}

func readRconPacket(conn net.Conn) (id int32, packetType int32, body string, err error) {
	var size int32
	if err = binary.Read(conn, binary.LittleEndian, &size); err != nil {
		return
	}
	payload := make([]byte, size)
	if _, err = io.ReadFull(conn, payload); err != nil {
		return
	}
	id = int32(binary.LittleEndian.Uint32(payload[0:4]))
	packetType = int32(binary.LittleEndian.Uint32(payload[4:8]))
	body = string(payload[8 : len(payload)-2])
	return
}

func writeRconPacket(conn net.Conn, id, packetType int32, body string) {
	size := int32(4 + 4 + len(body) + 2)
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(id))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(packetType))
	copy(buf[12:], body)
	conn.Write(buf)
}

/**
 * 测试同一身份复用同一客户端
 */
func TestRconClientPooling(t *testing.T) {
	a := GetRconClient("game@1", "127.0.0.1", 25575, "secret", nil)
	b := GetRconClient("game@1", "127.0.0.1", 25575, "secret", nil)
	c := GetRconClient("game@2", "127.0.0.1", 25575, "secret", nil)
	defer ReleaseRconClient("game@1", "127.0.0.1", 25575)
	defer ReleaseRconClient("game@2", "127.0.0.1", 25575)

	if a != b {
		t.Error("Expected same client for identical identity")
	}
	if a == c {
		t.Error("Expected different clients for different identities")
	}
}

/**
 * 测试认证与命令往返
 */
func TestRconClientSend(t *testing.T) {
	server := newRconTestServer(t, "secret", func(command string) string {
		if command == "/players online count" {
			return "Online players (3)"
		}
		return "unknown command"
	})

	client := GetRconClient("send@1", "127.0.0.1", server.port(), "secret", nil)
	defer ReleaseRconClient("send@1", "127.0.0.1", server.port())

	response, err := client.Send("/players online count")
	if err != nil {
		t.Fatalf("Failed to execute command: %v", err)
	}
	if response != "Online players (3)" {
		t.Errorf("Unexpected response %q", response)
	}
}

/**
 * 测试批量命令保持标签对应关系
 */
func TestRconClientSendBatch(t *testing.T) {
	server := newRconTestServer(t, "secret", func(command string) string {
		return "echo:" + command
	})

	client := GetRconClient("batch@1", "127.0.0.1", server.port(), "secret", nil)
	defer ReleaseRconClient("batch@1", "127.0.0.1", server.port())

	responses, err := client.SendBatch(map[string]string{
		"players": "/players",
		"time":    "/time",
	})
	if err != nil {
		t.Fatalf("Failed to execute batch: %v", err)
	}
	if responses["players"] != "echo:/players" {
		t.Errorf("Unexpected players response %q", responses["players"])
	}
	if responses["time"] != "echo:/time" {
		t.Errorf("Unexpected time response %q", responses["time"])
	}
}

/**
 * 测试存活判定为假时Setup立即放弃
 */
func TestRconClientAbortsWhenDead(t *testing.T) {
	client := GetRconClient("dead@1", "127.0.0.1", 1, "secret", func() bool { return false })
	defer ReleaseRconClient("dead@1", "127.0.0.1", 1)

	start := time.Now()
	err := client.Setup()
	if err == nil {
		t.Fatal("Expected setup to fail for a dead workload")
	}
	if time.Since(start) > rconRetryInterval {
		t.Error("Expected setup to abort without exhausting retries")
	}
}
