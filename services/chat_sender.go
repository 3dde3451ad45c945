package services

import (
	"fmt"
	"time"

	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
	"github.com/APasz/Yukibot/internal/rpc"
)

/**
 * WebhookSender 通过webhook把消息投递到聊天平台
 * @description
 * - 对端是承载平台连接的机器人进程，按频道暴露投递接口
 * - 实现ChatSender接口，由relay调用
 */
type WebhookSender struct {
	client rpc.HTTPClient
}

/**
 * NewWebhookSender 创建webhook投递端
 * @param {string} baseURL - webhook基础地址(config.yaml的chat.webhook_base)
 * @returns {WebhookSender} 投递端实例
 */
func NewWebhookSender(baseURL string) (*WebhookSender, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("chat webhook base is not configured")
	}
	client, err := rpc.NewWebClient(baseURL, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &WebhookSender{client: client}, nil
}

/**
 * SendChat 投递一条消息到频道
 * @param {string} channel - 目标频道
 * @param {ChatPayload} payload - 消息载荷
 * @returns {error} 返回错误信息
 */
func (w *WebhookSender) SendChat(channel string, payload *models.ChatPayload) error {
	resp, err := w.client.Post(fmt.Sprintf("channels/%s/messages", channel), payload)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery to channel '%s' failed: %s", channel, resp.Error)
	}
	logger.Debugf("Delivered message to channel '%s'", channel)
	return nil
}
