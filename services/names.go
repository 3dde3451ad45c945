package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
)

// 平台提及标记: <@12345> / <@!12345>
var mentionTokenRegex = regexp.MustCompile(`<@!?(\d+)>`)

// 文本提及: @name
var textMentionRegex = regexp.MustCompile(`@(\w+)`)

/**
 * NameCache 玩家别名缓存(share/names.json)
 * @description
 * - 按scope维护平台用户ID与游戏内名字的双向映射
 * - 游戏到平台方向用于把@name解析成可ping的用户ID
 * - 平台到游戏方向用于把<@id>还原成可读的@name
 */
type NameCache struct {
	path  string
	names map[string]map[string]string //scope -> id -> alias
	mutex sync.RWMutex
}

var (
	nameCache     *NameCache
	nameCacheOnce sync.Once
)

func GetNameCache() *NameCache {
	nameCacheOnce.Do(func() {
		nameCache = &NameCache{
			path:  filepath.Join(env.YukibotDir, "share", "names.json"),
			names: map[string]map[string]string{},
		}
		nameCache.load()
	})
	return nameCache
}

func (nc *NameCache) load() {
	data, err := os.ReadFile(nc.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("Failed to read names cache: %v", err)
		}
		return
	}
	nc.mutex.Lock()
	defer nc.mutex.Unlock()
	if err := json.Unmarshal(data, &nc.names); err != nil {
		logger.Warnf("Failed to parse names cache: %v", err)
	}
}

// Remember 记录一个ID到别名的映射并落盘
func (nc *NameCache) Remember(scope, id, alias string) {
	nc.mutex.Lock()
	if nc.names[scope] == nil {
		nc.names[scope] = map[string]string{}
	}
	changed := nc.names[scope][id] != alias
	nc.names[scope][id] = alias
	data, err := json.MarshalIndent(nc.names, "", "  ")
	nc.mutex.Unlock()

	if !changed || err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(nc.path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(nc.path, data, 0o644); err != nil {
		logger.Warnf("Failed to write names cache: %v", err)
	}
}

// Alias 按ID查别名，未知时返回ID本身
func (nc *NameCache) Alias(scope, id string) string {
	nc.mutex.RLock()
	defer nc.mutex.RUnlock()
	if alias, exists := nc.names[scope][id]; exists {
		return alias
	}
	return id
}

// ResolveToID 按别名反查ID，未知时返回空串
func (nc *NameCache) ResolveToID(scope, alias string) string {
	nc.mutex.RLock()
	defer nc.mutex.RUnlock()
	for id, name := range nc.names[scope] {
		if name == alias {
			return id
		}
	}
	return ""
}

/**
 * HumanizeMentions 把平台提及标记还原为@name文本
 * @param {string} scope - 应用scope
 * @param {string} content - 含<@id>标记的正文
 * @returns {string} 游戏内可读的正文
 */
func (nc *NameCache) HumanizeMentions(scope, content string) string {
	return mentionTokenRegex.ReplaceAllStringFunc(content, func(token string) string {
		id := mentionTokenRegex.FindStringSubmatch(token)[1]
		return "@" + nc.Alias(scope, id)
	})
}

/**
 * ParseMentions 从游戏内正文解析可ping的用户
 * @param {string} scope - 应用scope
 * @param {string} content - 含@name的正文
 * @returns {[]string} 解析成功的平台用户ID
 * @description
 * - 只有缓存里认识的名字会被解析，未知的@name保持原样不ping
 */
func (nc *NameCache) ParseMentions(scope, content string) []string {
	var ids []string
	for _, match := range textMentionRegex.FindAllStringSubmatch(content, -1) {
		if id := nc.ResolveToID(scope, match[1]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
