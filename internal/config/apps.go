package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/models"
)

func loadLocalSpec() (*models.AppsSpecification, error) {
	fname := filepath.Join(env.YukibotDir, "share", "apps.json")

	bytes, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("load 'apps.json' failed: %v", err)
	}
	var spec models.AppsSpecification
	if err := json.Unmarshal(bytes, &spec); err != nil {
		return nil, fmt.Errorf("unmarshal 'apps.json' failed: %v", err)
	}
	for i := range spec.Apps {
		collectAppSpec(&spec.Apps[i])
	}
	return &spec, nil
}

/**
 * 补全app规格的缺省值
 * @description
 * - friendly缺省取name的标题形式
 * - scope缺省取name的第一段
 * - 聊天频道按 <SCOPE>_CHAT_CHANNEL、GAME_CHAT_CHANNEL、spec 的顺序取值
 * - host缺省localhost，聊天忽略前缀缺省取全局配置
 */
func collectAppSpec(spec *models.AppSpec) {
	if spec.Friendly == "" {
		spec.Friendly = titleCase(spec.Name)
	}
	if spec.Scope == "" {
		spec.Scope = strings.SplitN(spec.Name, "_", 2)[0]
	}
	if chatChan := os.Getenv(strings.ToUpper(spec.Scope) + "_CHAT_CHANNEL"); chatChan != "" {
		spec.ChatChannel = chatChan
	} else if chatChan := os.Getenv("GAME_CHAT_CHANNEL"); chatChan != "" {
		spec.ChatChannel = chatChan
	}
	if spec.Host == "" {
		spec.Host = "localhost"
	}
	if spec.ChatIgnore == "" {
		spec.ChatIgnore = Config.Chat.IgnorePrefix
	}
	if spec.Suffix == "" && spec.Protocol == "telnet" {
		spec.Suffix = "\n"
	}
}

// titleCase 首字母大写，替代已废弃的strings.Title
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var appsSpec *models.AppsSpecification

func LoadSpec() error {
	if appsSpec != nil {
		return nil
	}
	var err error
	appsSpec, err = loadLocalSpec()
	if err != nil {
		logger.Errorf("Load failed: %v", err)
		return err
	}
	return nil
}

func Spec() *models.AppsSpecification {
	if appsSpec == nil {
		logger.Fatal("Must run config.LoadSpec first")
		return nil
	}
	return appsSpec
}

// SetSpecForTest 测试用：直接注入app规格
func SetSpecForTest(spec *models.AppsSpecification) {
	for i := range spec.Apps {
		collectAppSpec(&spec.Apps[i])
	}
	appsSpec = spec
}
