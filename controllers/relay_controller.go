package controllers

import (
	"github.com/APasz/Yukibot/internal/models"
	"github.com/APasz/Yukibot/services"

	"github.com/gin-gonic/gin"
)

type RelayController struct {
	server *services.Server
}

func NewRelayController(server *services.Server) *RelayController {
	return &RelayController{
		server: server,
	}
}

func (r *RelayController) RegisterRoutes(engine *gin.Engine) {
	engine.POST("/yukibot/api/v1/chat/events", r.PostChatEvent)
	engine.GET("/yukibot/api/v1/chat/queue", r.GetQueue)
}

// @Summary 接收聊天平台入站事件
// @Description 承载平台连接的机器人进程把收到的消息POST到这里，由relay分发给游戏
// @Tags Chat
// @Accept json
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Router /yukibot/api/v1/chat/events [post]
func (r *RelayController) PostChatEvent(c *gin.Context) {
	var event models.ChatEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(400, models.ErrorResponse{
			Code:  "chat.bad_event",
			Error: err.Error(),
		})
		return
	}
	if event.ChannelID == "" {
		c.JSON(400, models.ErrorResponse{
			Code:  "chat.bad_event",
			Error: "channelId is required",
		})
		return
	}
	r.server.Relay().HandleInbound(&event)
	c.JSON(202, gin.H{"status": "accepted"})
}

// @Summary 查询中继队列状态
// @Description 返回中继队列当前深度
// @Tags Chat
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /yukibot/api/v1/chat/queue [get]
func (r *RelayController) GetQueue(c *gin.Context) {
	c.JSON(200, gin.H{"depth": r.server.Relay().QueueLen()})
}
