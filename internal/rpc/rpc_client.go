package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/APasz/Yukibot/internal/logger"
)

// httpClient HTTP客户端实现
type httpClient struct {
	config    *HTTPConfig
	client    *http.Client
	transport *http.Transport
	connected bool
	mu        sync.Mutex
}

/**
 * NewHTTPClient 创建HTTP客户端实例
 * @param {HTTPConfig} config - 客户端配置，nil时使用默认配置
 * @returns {HTTPClient} HTTP客户端接口
 * @description
 * - 按配置通过unix socket或tcp与daemon通信
 * - 连接在首次请求时建立
 */
func NewHTTPClient(config *HTTPConfig) HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}

	client := &httpClient{
		config:    config,
		transport: &http.Transport{},
	}
	client.client = &http.Client{
		Transport: client.transport,
		Timeout:   config.Timeout,
	}
	return client
}

func (c *httpClient) Get(path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do("GET", path, params, nil)
}

func (c *httpClient) Post(path string, data interface{}) (*HTTPResponse, error) {
	return c.do("POST", path, nil, data)
}

func (c *httpClient) Put(path string, data interface{}) (*HTTPResponse, error) {
	return c.do("PUT", path, nil, data)
}

func (c *httpClient) Delete(path string, params map[string]interface{}) (*HTTPResponse, error) {
	return c.do("DELETE", path, params, nil)
}

/**
 * do 发送HTTP请求
 * @param {string} method - 请求方法
 * @param {string} path - API路径
 * @param {map} params - 查询参数
 * @param {interface{}} data - 请求体，序列化为JSON
 * @returns {HTTPResponse} 响应结构
 */
func (c *httpClient) do(method, path string, params map[string]interface{}, data interface{}) (*HTTPResponse, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	url, err := buildURL(c.config.BaseURL, path, params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	body, err := serializeData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data: %w", err)
	}

	logger.Debugf("Sending %s request to %s", method, url)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	httpResp, err := deserializeResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}
	return httpResp, nil
}

// Close 关闭客户端连接
func (c *httpClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	c.connected = false
	logger.Debugf("HTTP client connection closed")
	return nil
}

/**
 * ensureConnected 确保客户端已连接
 * @returns {error} 返回错误信息
 * @description
 * - unix模式下校验socket文件存在，配置自定义dialer
 * - tcp模式下把所有请求定向到配置的地址
 */
func (c *httpClient) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	if c.config.Network == "unix" {
		if _, err := os.Stat(c.config.Address); os.IsNotExist(err) {
			return fmt.Errorf("socket file not found at %s", c.config.Address)
		}
	}

	address := c.config.Address
	network := c.config.Network
	c.transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	}

	c.connected = true
	logger.Debugf("Connected to HTTP server at %s (%s)", address, network)
	return nil
}
