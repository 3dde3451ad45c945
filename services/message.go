package services

import (
	"net/http"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
)

const enrichTimeout = 5 * time.Second

// 消息方向
const (
	DirChatBound = "chatbound" //游戏 -> 聊天平台
	DirAppBound  = "appbound"  //聊天平台 -> 游戏
)

// 通用事件的默认模板，应用可在formats里覆盖
var genericFormats = map[string]string{
	"join":     "{player} joined {app}",
	"left":     "{player} left {app}",
	"died_pve": "{player} was killed by {killer}",
	"died_pvp": "{player} was slain by {killer}",
}

var (
	// markdown链接: [label](url)
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+|www\.[^\s)]+)\)`)
	// 裸URL
	bareURLRegex = regexp.MustCompile(`(https?://[^\s<>]+|www\.[^\s<>]+)`)
	// 平台自定义表情: <a:name:id> / <:name:id>
	customEmojiRegex = regexp.MustCompile(`<a?:(\w+):\d+>`)
)

// 可嵌入媒体的扩展名
var mediaExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".mp4": true, ".webm": true, ".mov": true, ".mp3": true, ".ogg": true,
}

/**
 * Link 消息里发现的链接
 * @property {string} label - markdown链接的标签，裸URL为空
 * @property {string} url - 链接地址
 * @property {string} contentType - HEAD探测到的Content-Type，失败为空
 * @property {bool} media - 是否可嵌入媒体
 */
type Link struct {
	Label       string
	URL         string
	ContentType string
	Media       bool
}

/**
 * Message 中继消息
 * @property {string} direction - 消息方向: chatbound/appbound
 * @property {string} channel - 目标/来源频道
 * @property {string} author - 发言者显示名
 * @property {string} content - 消息正文
 * @property {[]Link} links - 正文里发现的链接
 * @description
 * - Fileish的消息带附件或媒体链接
 * - 链接补全(enrichment)在后台进行，发送前Wait()
 */
type Message struct {
	Direction   string
	Channel     string
	App         string
	Author      string
	AuthorID    string
	Content     string
	Mentions    []string
	Attachments []models.Attachment
	Links       []Link

	enrichWG sync.WaitGroup
	linksMu  sync.Mutex
}

/**
 * NewChatBound 构造游戏到聊天平台的消息
 * @param {string} app - 来源应用
 * @param {string} channel - 目标频道
 * @param {string} author - 游戏内发言者
 * @param {string} content - 正文
 */
func NewChatBound(app, channel, author, content string) *Message {
	return &Message{
		Direction: DirChatBound,
		App:       app,
		Channel:   channel,
		Author:    author,
		Content:   content,
	}
}

/**
 * NewAppBound 由入站聊天事件构造发往游戏的消息
 * @param {ChatEvent} event - 入站事件
 */
func NewAppBound(event *models.ChatEvent) *Message {
	return &Message{
		Direction:   DirAppBound,
		Channel:     event.ChannelID,
		Author:      event.AuthorName,
		AuthorID:    event.AuthorID,
		Content:     Demojise(event.Content),
		Attachments: event.Attachments,
	}
}

/**
 * NewGeneric 构造通用事件消息(加入/离开/死亡)
 * @param {string} kind - 事件类型: join/left/died_pve/died_pvp
 * @param {map} fields - 模板占位符取值
 * @param {map} overrides - 应用级模板覆盖，可为nil
 */
func NewGeneric(app, channel, kind string, fields map[string]string, overrides map[string]string) *Message {
	format, exists := genericFormats[kind]
	if overrides != nil {
		if f, ok := overrides[kind]; ok {
			format = f
			exists = true
		}
	}
	if !exists {
		logger.Warnf("Unknown generic event kind '%s'", kind)
		format = "{player}: " + kind
	}
	content := format
	for key, value := range fields {
		content = strings.ReplaceAll(content, "{"+key+"}", value)
	}
	content = strings.ReplaceAll(content, "{app}", app)
	return &Message{
		Direction: DirChatBound,
		App:       app,
		Channel:   channel,
		Content:   content,
	}
}

// URLish 正文是否含链接
func (m *Message) URLish() bool {
	return markdownLinkRegex.MatchString(m.Content) || bareURLRegex.MatchString(m.Content)
}

// Fileish 是否带附件或媒体链接
func (m *Message) Fileish() bool {
	if len(m.Attachments) > 0 {
		return true
	}
	m.linksMu.Lock()
	defer m.linksMu.Unlock()
	for _, link := range m.Links {
		if link.Media {
			return true
		}
	}
	return false
}

/**
 * Enrich 后台补全正文里的链接
 * @description
 * - markdown链接优先提取，剩余文本再找裸URL
 * - 每个链接一个协程做HEAD探测，5秒超时
 * - 探测失败不算错误，按扩展名兜底分类
 */
func (m *Message) Enrich() {
	content := m.Content
	var links []Link
	for _, match := range markdownLinkRegex.FindAllStringSubmatch(content, -1) {
		links = append(links, Link{Label: match[1], URL: match[2]})
	}
	remainder := markdownLinkRegex.ReplaceAllString(content, "")
	for _, url := range bareURLRegex.FindAllString(remainder, -1) {
		links = append(links, Link{URL: url})
	}
	for i := range links {
		m.enrichWG.Add(1)
		go func(link Link) {
			defer m.enrichWG.Done()
			m.probeLink(link)
		}(links[i])
	}
}

// Wait 等待所有链接补全完成
func (m *Message) Wait() {
	m.enrichWG.Wait()
}

func (m *Message) probeLink(link Link) {
	url := link.URL
	if strings.HasPrefix(url, "www.") {
		url = "https://" + url
	}
	client := &http.Client{Timeout: enrichTimeout}
	resp, err := client.Head(url)
	if err == nil {
		link.ContentType = resp.Header.Get("Content-Type")
		resp.Body.Close()
		link.Media = strings.HasPrefix(link.ContentType, "image/") ||
			strings.HasPrefix(link.ContentType, "video/") ||
			strings.HasPrefix(link.ContentType, "audio/")
	} else {
		logger.Debugf("Link probe failed for %s: %v", url, err)
		link.Media = mediaExts[strings.ToLower(path.Ext(strings.TrimRight(url, "/")))]
	}

	m.linksMu.Lock()
	m.Links = append(m.Links, link)
	m.linksMu.Unlock()
}

// Clone 复制消息用于按应用定制正文，已有的补全结果一并带走
func (m *Message) Clone() *Message {
	m.linksMu.Lock()
	links := append([]Link(nil), m.Links...)
	m.linksMu.Unlock()
	return &Message{
		Direction:   m.Direction,
		Channel:     m.Channel,
		App:         m.App,
		Author:      m.Author,
		AuthorID:    m.AuthorID,
		Content:     m.Content,
		Mentions:    m.Mentions,
		Attachments: m.Attachments,
		Links:       links,
	}
}

/**
 * Demojise 将平台自定义表情还原为:name:文本
 * @param {string} content - 原始正文
 * @returns {string} 游戏内可读的正文
 */
func Demojise(content string) string {
	return customEmojiRegex.ReplaceAllString(content, ":$1:")
}

/**
 * GameLine 渲染发往游戏控制台的文本
 * @returns {string} "author: content"，无作者时只有正文
 * @description
 * - 附件以文件名追加在正文后
 */
func (m *Message) GameLine() string {
	parts := []string{m.Content}
	for _, att := range m.Attachments {
		name := att.Name
		if name == "" {
			name = path.Base(att.URI)
		}
		parts = append(parts, "["+name+"]")
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if m.Author == "" {
		return text
	}
	return m.Author + ": " + text
}

/**
 * ChatPayload 渲染发往聊天平台的载荷
 * @returns {ChatPayload} 含正文/提及/附件/媒体嵌入
 */
func (m *Message) ChatPayload() *models.ChatPayload {
	payload := &models.ChatPayload{
		Content:     m.Content,
		Mentions:    m.Mentions,
		Attachments: m.Attachments,
	}
	m.linksMu.Lock()
	defer m.linksMu.Unlock()
	for _, link := range m.Links {
		if link.Media {
			payload.Embeds = append(payload.Embeds, models.Embed{Title: link.Label, URL: link.URL})
		}
	}
	return payload
}
