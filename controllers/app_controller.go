package controllers

import (
	"errors"
	"strconv"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/models"
	"github.com/APasz/Yukibot/services"

	"github.com/gin-gonic/gin"
)

type AppController struct {
	server *services.Server
}

func NewAppController(server *services.Server) *AppController {
	return &AppController{
		server: server,
	}
}

func (a *AppController) RegisterRoutes(r *gin.Engine) {
	group := r.Group("/yukibot/api/v1/apps")
	group.GET("", a.ListApps)
	group.GET("/:name", a.GetApp)
	group.POST("/:name/start", a.StartApp)
	group.POST("/:name/stop", a.StopApp)
	group.PUT("/:name/enabled", a.SetEnabled)
	group.GET("/:name/logs", a.GetLogs)
	group.GET("/:name/players", a.GetPlayers)
}

// appError 统一的错误响应，app不存在时返回404
func (a *AppController) appError(c *gin.Context, code string, err error) {
	status := 500
	if errors.Is(err, config.ErrAppNotFound) {
		status = 404
	}
	c.JSON(status, models.ErrorResponse{
		Code:  code,
		Error: err.Error(),
	})
}

// @Summary 获取应用列表
// @Description 返回所有注册的应用及其运行状态
// @Tags App
// @Produce json
// @Success 200 {array} models.AppDetail
// @Router /yukibot/api/v1/apps [get]
func (a *AppController) ListApps(c *gin.Context) {
	current := a.server.Apps().Current()
	details := []models.AppDetail{}
	for _, app := range a.server.Apps().List() {
		details = append(details, app.GetDetail(app == current))
	}
	c.JSON(200, details)
}

// @Summary 获取应用详情
// @Description 按名字(或别名)返回单个应用的详情
// @Tags App
// @Produce json
// @Param name path string true "应用名"
// @Success 200 {object} models.AppDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /yukibot/api/v1/apps/{name} [get]
func (a *AppController) GetApp(c *gin.Context) {
	app, err := a.server.Apps().Lookup(c.Param("name"))
	if err != nil {
		a.appError(c, "app.not_found", err)
		return
	}
	c.JSON(200, app.GetDetail(app == a.server.Apps().Current()))
}

// @Summary 启动应用
// @Description 启动指定应用，已有运行中的应用时先停掉它
// @Tags App
// @Produce json
// @Param name path string true "应用名"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /yukibot/api/v1/apps/{name}/start [post]
func (a *AppController) StartApp(c *gin.Context) {
	if err := a.server.Apps().Launch(c.Param("name")); err != nil {
		a.appError(c, "app.start_failed", err)
		return
	}
	c.JSON(200, gin.H{
		"status":  "success",
		"message": "App started",
	})
}

// @Summary 停止应用
// @Description 停止指定应用，支持delay参数延迟停止(秒)
// @Tags App
// @Produce json
// @Param name path string true "应用名，current表示当前应用，all表示全部"
// @Param delay query int false "延迟秒数"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /yukibot/api/v1/apps/{name}/stop [post]
func (a *AppController) StopApp(c *gin.Context) {
	delay := 0
	if raw := c.Query("delay"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(400, models.ErrorResponse{
				Code:  "app.bad_delay",
				Error: "delay must be a non-negative integer",
			})
			return
		}
		delay = parsed
	}
	if err := a.server.Apps().End(c.Param("name"), time.Duration(delay)*time.Second); err != nil {
		a.appError(c, "app.stop_failed", err)
		return
	}
	c.JSON(200, gin.H{
		"status":  "success",
		"message": "App stop requested",
	})
}

// @Summary 启用/禁用应用
// @Description 修改应用的启用状态，禁用不影响正在运行的实例
// @Tags App
// @Accept json
// @Produce json
// @Param name path string true "应用名"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /yukibot/api/v1/apps/{name}/enabled [put]
func (a *AppController) SetEnabled(c *gin.Context) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, models.ErrorResponse{
			Code:  "app.bad_request",
			Error: err.Error(),
		})
		return
	}
	if err := a.server.Apps().Toggle(c.Param("name"), body.Enabled); err != nil {
		a.appError(c, "app.toggle_failed", err)
		return
	}
	c.JSON(200, gin.H{
		"status":  "success",
		"enabled": body.Enabled,
	})
}

// @Summary 获取应用日志
// @Description 返回应用日志窗口里最新的若干行
// @Tags App
// @Produce json
// @Param name path string true "应用名"
// @Param lines query int false "行数，默认50"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /yukibot/api/v1/apps/{name}/logs [get]
func (a *AppController) GetLogs(c *gin.Context) {
	app, err := a.server.Apps().Lookup(c.Param("name"))
	if err != nil {
		a.appError(c, "app.not_found", err)
		return
	}
	lines := 50
	if raw := c.Query("lines"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			lines = parsed
		}
	}
	tailer := app.Tailer()
	if tailer == nil {
		c.JSON(200, gin.H{"lines": []string{}})
		return
	}
	c.JSON(200, gin.H{"lines": tailer.RecentLines(lines)})
}

// @Summary 获取在线人数
// @Description 返回应用的在线人数，查询不到时为unknown
// @Tags App
// @Produce json
// @Param name path string true "应用名"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /yukibot/api/v1/apps/{name}/players [get]
func (a *AppController) GetPlayers(c *gin.Context) {
	app, err := a.server.Apps().Lookup(c.Param("name"))
	if err != nil {
		a.appError(c, "app.not_found", err)
		return
	}
	players := app.Players()
	if players == nil {
		c.JSON(200, gin.H{"players": "unknown"})
		return
	}
	c.JSON(200, gin.H{"players": players})
}
