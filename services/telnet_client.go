package services

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/utils"
)

const (
	telnetDialTimeout   = 10 * time.Second
	telnetRetryCap      = 20
	telnetRetryInterval = time.Second
)

/**
 * TelnetClient 控制台协议客户端
 * @property {string} host - 服务器地址
 * @property {int} port - 控制台端口
 * @property {string} prefix - 发送命令时附加的前缀(如认证口令)
 * @property {string} suffix - 行结束符，默认"\n"
 * @description
 * - 连接的读取端交给Tailer消费，写入端用于下发命令
 * - Setup失败重试有上限，进程死亡时立即放弃
 * - Send失败时拆除连接并重建一次
 */
type TelnetClient struct {
	host   string
	port   int
	prefix string
	suffix string
	alive  func() bool

	conn    net.Conn
	setupMu sync.Mutex
}

var (
	telnetClients     = map[string]*TelnetClient{}
	telnetClientsLock sync.Mutex
)

/**
 * GetTelnetClient 按(身份,地址,端口)获取客户端，不存在则创建
 * @param {string} identity - 存活身份，进程重启后身份不同
 * @param {func} alive - 存活判定
 * @returns {TelnetClient} 池化的客户端
 */
func GetTelnetClient(identity, host string, port int, prefix, suffix string, alive func() bool) *TelnetClient {
	key := fmt.Sprintf("%s|%s|%d", identity, host, port)

	telnetClientsLock.Lock()
	defer telnetClientsLock.Unlock()

	if c, exists := telnetClients[key]; exists {
		return c
	}
	if suffix == "" {
		suffix = "\n"
	}
	c := &TelnetClient{
		host:   host,
		port:   port,
		prefix: prefix,
		suffix: suffix,
		alive:  alive,
	}
	telnetClients[key] = c
	return c
}

// ReleaseTelnetClient 拆除并移除客户端
func ReleaseTelnetClient(identity, host string, port int) {
	key := fmt.Sprintf("%s|%s|%d", identity, host, port)

	telnetClientsLock.Lock()
	c, exists := telnetClients[key]
	delete(telnetClients, key)
	telnetClientsLock.Unlock()

	if exists {
		c.Teardown()
	}
}

/**
 * Setup 建立连接
 * @returns {error} 返回错误信息
 * @description
 * - 已连接时直接返回，幂等
 * - 服务器启动阶段端口尚未监听，失败后按固定间隔重试
 * - 存活判定为假或重试超过上限时放弃
 */
func (c *TelnetClient) Setup() error {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()

	if c.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	for attempt := 0; attempt < telnetRetryCap; attempt++ {
		if c.alive != nil && !c.alive() {
			return fmt.Errorf("telnet setup aborted, %s is not alive", addr)
		}
		if attempt > 0 {
			GetMetricsService().IncrementAdminReconnect(addr, "telnet")
		}
		// 服务器启动阶段端口还没监听，连得上再拨号
		if !utils.CheckPortConnectable(c.host, c.port) {
			logger.Debugf("Telnet port %s not listening yet (attempt %d/%d)", addr, attempt+1, telnetRetryCap)
			time.Sleep(telnetRetryInterval)
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, telnetDialTimeout)
		if err == nil {
			c.conn = conn
			logger.Infof("Telnet connected to %s", addr)
			return nil
		}
		logger.Debugf("Telnet dial %s failed (attempt %d/%d): %v", addr, attempt+1, telnetRetryCap, err)
		time.Sleep(telnetRetryInterval)
	}
	return fmt.Errorf("telnet setup to %s exhausted %d attempts", addr, telnetRetryCap)
}

// Teardown 拆除连接，可重复调用
func (c *TelnetClient) Teardown() {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

/**
 * Send 发送一条控制台命令
 * @param {string} command - 命令文本，前后缀由客户端附加
 * @returns {error} 返回错误信息
 * @description
 * - 未连接时先Setup
 * - 写入失败视为连接损坏，拆除后重建再试一次
 */
func (c *TelnetClient) Send(command string) error {
	if err := c.Setup(); err != nil {
		return err
	}
	framed := c.prefix + command + c.suffix
	if err := c.write(framed); err != nil {
		logger.Warnf("Telnet send failed, reconnecting: %v", err)
		c.Teardown()
		if err := c.Setup(); err != nil {
			return err
		}
		return c.write(framed)
	}
	return nil
}

func (c *TelnetClient) write(data string) error {
	c.setupMu.Lock()
	conn := c.conn
	c.setupMu.Unlock()

	if conn == nil {
		return fmt.Errorf("telnet connection is not established")
	}
	_, err := conn.Write([]byte(data))
	return err
}

/**
 * AcquireReader 获取连接的读取端，供Tailer消费
 * @returns {net.Conn} 当前连接
 * @description
 * - 未连接时先Setup，Tailer断开后重复调用即完成重连
 */
func (c *TelnetClient) AcquireReader() (net.Conn, error) {
	if err := c.Setup(); err != nil {
		return nil, err
	}
	c.setupMu.Lock()
	defer c.setupMu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("telnet connection is not established")
	}
	return c.conn, nil
}
