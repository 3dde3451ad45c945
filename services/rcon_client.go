package services

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/utils"

	"github.com/gorcon/rcon"
)

const (
	rconRetryCap      = 30
	rconRetryInterval = 3 * time.Second
)

/**
 * RconClient RCON协议客户端
 * @property {string} host - 服务器地址
 * @property {int} port - RCON端口
 * @property {string} password - 管理口令
 * @description
 * - 底层使用Source RCON协议库，连接认证在Dial时完成
 * - Setup失败重试有上限，进程死亡时立即放弃
 * - Send失败时拆除连接并重建一次
 */
type RconClient struct {
	host     string
	port     int
	password string
	alive    func() bool

	conn    *rcon.Conn
	setupMu sync.Mutex
}

var (
	rconClients     = map[string]*RconClient{}
	rconClientsLock sync.Mutex
)

/**
 * GetRconClient 按(身份,地址,端口)获取客户端，不存在则创建
 * @param {string} identity - 存活身份，进程重启后身份不同
 * @param {func} alive - 存活判定
 * @returns {RconClient} 池化的客户端
 */
func GetRconClient(identity, host string, port int, password string, alive func() bool) *RconClient {
	key := fmt.Sprintf("%s|%s|%d", identity, host, port)

	rconClientsLock.Lock()
	defer rconClientsLock.Unlock()

	if c, exists := rconClients[key]; exists {
		return c
	}
	c := &RconClient{
		host:     host,
		port:     port,
		password: password,
		alive:    alive,
	}
	rconClients[key] = c
	return c
}

// ReleaseRconClient 拆除并移除客户端
func ReleaseRconClient(identity, host string, port int) {
	key := fmt.Sprintf("%s|%s|%d", identity, host, port)

	rconClientsLock.Lock()
	c, exists := rconClients[key]
	delete(rconClients, key)
	rconClientsLock.Unlock()

	if exists {
		c.Teardown()
	}
}

/**
 * Setup 建立并认证RCON连接
 * @returns {error} 返回错误信息
 * @description
 * - 已连接时直接返回，幂等
 * - 服务器启动阶段RCON尚未就绪，失败后按固定间隔重试
 * - 存活判定为假或重试超过上限时放弃
 */
func (c *RconClient) Setup() error {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()
	return c.setupLocked()
}

func (c *RconClient) setupLocked() error {
	if c.conn != nil {
		return nil
	}
	addr := net.JoinHostPort(c.host, fmt.Sprintf("%d", c.port))
	for attempt := 0; attempt < rconRetryCap; attempt++ {
		if c.alive != nil && !c.alive() {
			return fmt.Errorf("rcon setup aborted, %s is not alive", addr)
		}
		if attempt > 0 {
			GetMetricsService().IncrementAdminReconnect(addr, "rcon")
		}
		// RCON端口就绪前不浪费认证握手
		if !utils.CheckPortConnectable(c.host, c.port) {
			logger.Debugf("RCON port %s not listening yet (attempt %d/%d)", addr, attempt+1, rconRetryCap)
			time.Sleep(rconRetryInterval)
			continue
		}
		conn, err := rcon.Dial(addr, c.password)
		if err == nil {
			c.conn = conn
			logger.Infof("RCON connected to %s", addr)
			return nil
		}
		logger.Debugf("RCON dial %s failed (attempt %d/%d): %v", addr, attempt+1, rconRetryCap, err)
		time.Sleep(rconRetryInterval)
	}
	return fmt.Errorf("rcon setup to %s exhausted %d attempts", addr, rconRetryCap)
}

// Teardown 拆除连接，可重复调用
func (c *RconClient) Teardown() {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

/**
 * Send 执行一条RCON命令
 * @param {string} command - 命令文本
 * @returns {string} 服务器响应
 * @description
 * - 未连接时先Setup
 * - 执行失败视为连接损坏，拆除后重建再试一次
 */
func (c *RconClient) Send(command string) (string, error) {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()

	if err := c.setupLocked(); err != nil {
		return "", err
	}
	response, err := c.conn.Execute(command)
	if err != nil {
		logger.Warnf("RCON command failed, reconnecting: %v", err)
		c.conn.Close()
		c.conn = nil
		if err := c.setupLocked(); err != nil {
			return "", err
		}
		return c.conn.Execute(command)
	}
	return response, nil
}

/**
 * SendBatch 批量执行命令
 * @param {map} commands - 标签到命令文本的映射
 * @returns {map} 标签到响应的映射，保持标签对应关系
 * @description
 * - 任一命令失败即中止并返回错误，已取得的响应一并返回
 */
func (c *RconClient) SendBatch(commands map[string]string) (map[string]string, error) {
	responses := make(map[string]string, len(commands))
	for label, command := range commands {
		response, err := c.Send(command)
		if err != nil {
			return responses, fmt.Errorf("batch command '%s' failed: %w", label, err)
		}
		responses[label] = response
	}
	return responses, nil
}
