package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
)

func init() {
	// 初始化日志系统
	logger.InitLogger("console", "error", false)
}

// newTestClient 绕过unix socket直接连到httptest服务器
func newTestClient(baseURL string) *httpClient {
	client := &httpClient{
		config: &HTTPConfig{
			BaseURL: baseURL,
			Timeout: 5 * time.Second,
		},
		transport: &http.Transport{},
		connected: true,
	}
	client.client = &http.Client{
		Transport: client.transport,
		Timeout:   client.config.Timeout,
	}
	return client
}

func decodeBody(t *testing.T, resp *HTTPResponse) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

/**
 * 测试各HTTP方法的请求与响应处理
 */
func TestHTTPClientWithMockServer(t *testing.T) {
	// 创建模拟HTTP服务器
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			if r.URL.Path == "/api/test" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"message": "test response"}`))
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case "POST":
			if r.URL.Path == "/api/create" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id": 123, "status": "created"}`))
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case "PUT":
			if r.URL.Path == "/api/update/123" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"id": 123, "updated": true}`))
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case "DELETE":
			if r.URL.Path == "/api/delete/123" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"deleted": true}`))
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	// 测试GET请求
	resp, err := client.Get("/api/test", nil)
	if err != nil {
		t.Fatalf("Failed to send GET request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["message"] != "test response" {
		t.Errorf("Expected message 'test response', got %v", body["message"])
	}

	// 测试POST请求
	postData := map[string]interface{}{
		"name":  "test item",
		"value": 42,
	}
	resp, err = client.Post("/api/create", postData)
	if err != nil {
		t.Fatalf("Failed to send POST request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["id"] != float64(123) {
		t.Errorf("Expected id 123, got %v", body["id"])
	}

	// 测试PUT请求
	resp, err = client.Put("/api/update/123", map[string]interface{}{"name": "updated item"})
	if err != nil {
		t.Fatalf("Failed to send PUT request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}

	// 测试DELETE请求
	resp, err = client.Delete("/api/delete/123", nil)
	if err != nil {
		t.Fatalf("Failed to send DELETE request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if body := decodeBody(t, resp); body["deleted"] != true {
		t.Errorf("Expected deleted to be true")
	}
}

/**
 * 测试查询参数的拼接与传递
 */
func TestHTTPClientWithQueryParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/search" {
			query := r.URL.Query()
			name := query.Get("name")
			status := query.Get("status")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"query_name": "` + name + `", "query_status": "` + status + `"}`))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	params := map[string]interface{}{
		"name":   "test",
		"status": "active",
	}
	resp, err := client.Get("/api/search", params)
	if err != nil {
		t.Fatalf("Failed to send GET request with params: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["query_name"] != "test" {
		t.Errorf("Expected query_name 'test', got %v", body["query_name"])
	}
	if body["query_status"] != "active" {
		t.Errorf("Expected query_status 'active', got %v", body["query_status"])
	}
}

/**
 * 测试错误响应的解析
 */
func TestErrorResponseDeserialization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code": "app.not_found", "message": "app not found: ghost"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	defer client.Close()

	resp, err := client.Get("/yukibot/api/v1/apps/ghost", nil)
	if err != nil {
		t.Fatalf("Failed to send GET request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
	if resp.Error != "app not found: ghost" {
		t.Errorf("Expected error message from body, got %q", resp.Error)
	}
}

/**
 * 测试socket路径的生成
 */
func TestSocketPathGeneration(t *testing.T) {
	// 默认目录使用yukibot目录下的run
	socketPath := getSocketPath("test.sock", "")
	expectedPath := filepath.Join(env.YukibotDir, "run", "test.sock")
	if socketPath != expectedPath {
		t.Errorf("Expected socket path %s, got %s", expectedPath, socketPath)
	}

	// 自定义socket目录
	customDir := "/tmp/custom"
	socketPath = getSocketPath("test.sock", customDir)
	expectedPath = filepath.Join(customDir, "test.sock")
	if socketPath != expectedPath {
		t.Errorf("Expected socket path %s, got %s", expectedPath, socketPath)
	}
}
