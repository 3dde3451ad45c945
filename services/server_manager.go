package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
)

/**
 * Server 服务器实例，聚合各管理器
 * @property {AppConfig} cfg - 应用配置
 * @property {AppManager} apps - 应用管理器
 * @property {ChatRelay} relay - 聊天中继
 */
type Server struct {
	cfg       *config.AppConfig
	apps      *AppManager
	relay     *ChatRelay
	startTime time.Time
}

/**
 * NewServer 创建服务器实例
 * @param {config.AppConfig} cfg - 应用配置
 * @returns {Server} 服务器实例
 */
func NewServer(cfg *config.AppConfig) *Server {
	return &Server{
		cfg:       cfg,
		apps:      GetAppManager(),
		relay:     GetChatRelay(),
		startTime: time.Now(),
	}
}

func (s *Server) Apps() *AppManager { return s.apps }

func (s *Server) Relay() *ChatRelay { return s.relay }

func (s *Server) StartTime() time.Time { return s.startTime }

/**
 * Init 初始化服务器
 * @returns {error} 返回错误信息
 * @description
 * - 启动中继消费循环与当前应用巡检
 * - 导出.well-known.json供CLI发现daemon
 */
func (s *Server) Init(listenPort int) error {
	s.relay.Start()
	s.apps.StartWatch()
	return s.ExportKnowledge(listenPort)
}

// Shutdown 停掉当前应用与中继
func (s *Server) Shutdown() {
	if err := s.apps.End("all", 0); err != nil {
		logger.Warnf("Failed to stop apps on shutdown: %v", err)
	}
	s.relay.Stop()
}

/**
 * StartMonitoring 周期巡检
 * @description
 * - 按配置间隔做一次整体检查，结果只记日志
 * - 当前应用的秒级巡检由AppManager负责
 */
func (s *Server) StartMonitoring() {
	interval := time.Duration(s.cfg.Interval.Monitoring) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		result := s.Check()
		if result.FailedChecks > 0 {
			logger.Warnf("System check: %d/%d passed", result.PassedChecks, result.TotalChecks)
		}
	}
}

/**
 * Check 整体系统检查
 * @returns {models.CheckResponse} 检查结果
 * @description
 * - 每个应用一项检查：running的应用进程必须存活，其余应用算通过
 * - 失败数决定overall状态: healthy/warning/error
 */
func (s *Server) Check() models.CheckResponse {
	response := models.CheckResponse{
		Timestamp: time.Now().Format(time.RFC3339),
	}
	current := s.apps.Current()
	for _, app := range s.apps.List() {
		detail := app.GetDetail(app == current)
		response.Apps = append(response.Apps, detail)
		response.TotalChecks++
		if detail.Status == models.StatusRunning && !app.Running() {
			response.FailedChecks++
		} else {
			response.PassedChecks++
		}
	}

	if response.FailedChecks == 0 {
		response.OverallStatus = "healthy"
	} else if response.FailedChecks < response.TotalChecks/2 {
		response.OverallStatus = "warning"
	} else {
		response.OverallStatus = "error"
	}
	return response
}

/**
 * GetHealthz 健康检查响应
 * @returns {models.HealthResponse} 健康状态与关键指标
 */
func (s *Server) GetHealthz() models.HealthResponse {
	uptime := time.Since(s.startTime)

	currentName := ""
	if current := s.apps.Current(); current != nil {
		currentName = current.Name()
	}
	return models.HealthResponse{
		Version:   env.Version,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    "UP",
		Uptime:    uptime.String(),
		Metrics: models.Metrics{
			TotalRequests:  GetTotalRequestCount(),
			ErrorRequests:  GetTotalErrorCount(),
			RegisteredApps: len(s.apps.List()),
			CurrentApp:     currentName,
			RelayQueueLen:  s.relay.QueueLen(),
		},
	}
}

/**
 * ExportKnowledge 导出share/.well-known.json
 * @param {int} port - daemon实际监听端口
 * @returns {error} 返回错误信息
 * @description
 * - CLI子命令通过该文件发现daemon地址
 */
func (s *Server) ExportKnowledge(port int) error {
	knowledge := models.SystemKnowledge{
		Name:      "yukibot",
		Version:   env.Version,
		Port:      port,
		StartTime: s.startTime.Format(time.RFC3339),
		LogDir:    filepath.Join(env.YukibotDir, "logs"),
	}
	data, err := json.MarshalIndent(knowledge, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Join(env.YukibotDir, "share")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ".well-known.json"), data, 0o644)
}
