package controllers

import (
	"github.com/APasz/Yukibot/services"

	"github.com/gin-gonic/gin"
)

type APIController struct {
	server *services.Server
}

/**
 * Create new API controller instance
 * @param {*services.Server} server - Server instance
 * @returns {*APIController} New API controller instance
 */
func NewAPIController(server *services.Server) *APIController {
	return &APIController{
		server: server,
	}
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 * @description
 * - Registers routes for:
 *   - System check and health probe
 *   - App management (list/start/stop/enable/disable/logs/players)
 *   - Inbound chat events
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.POST("/yukibot/api/v1/check", a.Check)
	r.GET("/healthz", a.Healthz)

	apps := NewAppController(a.server)
	apps.RegisterRoutes(r)

	relay := NewRelayController(a.server)
	relay.RegisterRoutes(r)
}

// @Summary 执行系统检查
// @Description 立即执行各项检查，返回每个应用的运行状态与系统总体健康状态
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} models.CheckResponse
// @Router /yukibot/api/v1/check [post]
func (a *APIController) Check(c *gin.Context) {
	response := a.server.Check()
	c.JSON(200, response)
}

// @Summary 业务就绪探针
// @Description 检查服务是否已经做好准备，返回服务版本、启动时间、健康状态和关键指标统计结果
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	response := a.server.GetHealthz()
	c.JSON(200, response)
}
