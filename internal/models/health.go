package models

// HealthResponse 健康检查响应结构
// @Description 健康检查API响应数据结构
type HealthResponse struct {
	Version   string  `json:"version" example:"1.0.0" description:"服务版本"`
	StartTime string  `json:"startTime" example:"2024-01-01T10:00:00Z" description:"启动时间"`
	Status    string  `json:"status" example:"UP" description:"健康状态"`
	Uptime    string  `json:"uptime" example:"1h30m45s" description:"运行时长"`
	Metrics   Metrics `json:"metrics" description:"关键指标"`
}

// Metrics 关键指标结构
// @Description 系统关键指标数据结构
type Metrics struct {
	TotalRequests  int64  `json:"totalRequests" example:"1000" description:"总请求数"`
	ErrorRequests  int64  `json:"errorRequests" example:"5" description:"出错请求数"`
	RegisteredApps int    `json:"registeredApps" example:"4" description:"注册的应用数"`
	CurrentApp     string `json:"currentApp,omitempty" example:"sevendays_main" description:"当前运行的应用"`
	RelayQueueLen  int    `json:"relayQueueLen" example:"0" description:"中继队列深度"`
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"message"`
}

// CheckResponse 系统检查响应结构
type CheckResponse struct {
	Timestamp     string      `json:"timestamp"`
	Apps          []AppDetail `json:"apps"`
	OverallStatus string      `json:"overallStatus"`
	TotalChecks   int         `json:"totalChecks"`
	PassedChecks  int         `json:"passedChecks"`
	FailedChecks  int         `json:"failedChecks"`
}

// SystemKnowledge share/.well-known.json的内容，供CLI发现daemon地址
type SystemKnowledge struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Port      int    `json:"port"`
	StartTime string `json:"startTime"`
	LogDir    string `json:"logDir"`
}
