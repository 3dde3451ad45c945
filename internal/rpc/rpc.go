package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/models"
)

// HTTPClient 定义HTTP客户端接口
type HTTPClient interface {
	Get(path string, params map[string]interface{}) (*HTTPResponse, error)
	Post(path string, data interface{}) (*HTTPResponse, error)
	Put(path string, data interface{}) (*HTTPResponse, error)
	Delete(path string, params map[string]interface{}) (*HTTPResponse, error)
	Close() error
}

// HTTPConfig 定义HTTP客户端配置
type HTTPConfig struct {
	Address string        //yukibot服务侦听地址
	Network string        //unix,tcp...
	Timeout time.Duration //默认超时时间
	BaseURL string        //基础URL
}

/**
 * DefaultHTTPConfig 返回默认HTTP客户端配置
 * @description
 * - 优先使用unix socket，socket文件不存在时退回tcp
 * - tcp地址从share/.well-known.json读取daemon端口
 */
func DefaultHTTPConfig() *HTTPConfig {
	c := &HTTPConfig{
		Address: getSocketPath("yukibot.sock", ""),
		Network: "unix",
		Timeout: 5 * time.Second,
		BaseURL: "http://localhost",
	}
	if _, err := os.Stat(c.Address); os.IsNotExist(err) {
		c.Address = getTcpAddress()
		c.Network = "tcp"
	}
	if c.Address == "" {
		c.Address = "127.0.0.1:8998"
		c.Network = "tcp"
	}
	return c
}

/**
 * NewWebClient 面向普通HTTP地址的客户端
 * @param {string} baseURL - 目标基础URL
 * @param {time.Duration} timeout - 请求超时
 * @returns {HTTPClient} HTTP客户端接口
 * @description
 * - 与daemon客户端共用一套请求/响应处理
 */
func NewWebClient(baseURL string, timeout time.Duration) (HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	return NewHTTPClient(&HTTPConfig{
		Address: host,
		Network: "tcp",
		Timeout: timeout,
		BaseURL: baseURL,
	}), nil
}

// HTTPResponse 定义HTTP响应结构
type HTTPResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
	Error      string              `json:"error"`
}

// buildURL 构建完整的URL
func buildURL(baseURL, path string, params map[string]interface{}) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Path == "" {
		u.Path = path
	} else {
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		u.Path += path
	}

	if params != nil {
		q := u.Query()
		for key, value := range params {
			switch v := value.(type) {
			case string:
				q.Set(key, v)
			case int, int8, int16, int32, int64:
				q.Set(key, fmt.Sprintf("%d", v))
			case uint, uint8, uint16, uint32, uint64:
				q.Set(key, fmt.Sprintf("%d", v))
			case float32, float64:
				q.Set(key, fmt.Sprintf("%f", v))
			case bool:
				q.Set(key, fmt.Sprintf("%t", v))
			default:
				q.Set(key, fmt.Sprintf("%v", v))
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// serializeData 序列化请求数据
func serializeData(data interface{}) (io.Reader, error) {
	if data == nil {
		return nil, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data: %w", err)
	}

	return bytes.NewReader(jsonData), nil
}

// deserializeResponse 反序列化响应数据
func deserializeResponse(resp *http.Response) (*HTTPResponse, error) {
	httpResp := &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	defer resp.Body.Close()
	httpResp.Body = body
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return httpResp, nil
	}
	if len(body) == 0 {
		httpResp.Error = resp.Status
	} else {
		var errBody models.ErrorResponse
		if err := json.Unmarshal(body, &errBody); err != nil {
			httpResp.Error = err.Error()
		} else {
			httpResp.Error = errBody.Error
		}
	}
	if httpResp.Error == "" {
		httpResp.Error = "Unknown error"
	}
	return httpResp, nil
}

/**
 * yukibot服务侦听的unix socket地址
 */
func getSocketPath(socketName string, socketDir string) string {
	if socketDir == "" {
		socketDir = filepath.Join(env.YukibotDir, "run")
	}
	return filepath.Join(socketDir, socketName)
}

/**
 * yukibot服务侦听的tcp地址
 */
func getTcpAddress() string {
	knownFile := filepath.Join(env.YukibotDir, "share", ".well-known.json")
	data, err := os.ReadFile(knownFile)
	if err != nil {
		return ""
	}
	var known models.SystemKnowledge
	if err = json.Unmarshal(data, &known); err != nil {
		return ""
	}
	if known.Port == 0 {
		return ""
	}
	return fmt.Sprintf("127.0.0.1:%d", known.Port)
}
