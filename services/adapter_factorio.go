package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/APasz/Yukibot/internal/logger"
)

var (
	// 2026-01-02 15:04:05 [CHAT] Alice: hello
	ftChatRegex = regexp.MustCompile(`\[CHAT\] ([^:]+): (.+)`)
	// [JOIN] Alice joined the game
	ftJoinRegex = regexp.MustCompile(`\[JOIN\] (.+?) joined the game`)
	// [LEAVE] Alice left the game
	ftLeaveRegex = regexp.MustCompile(`\[LEAVE\] (.+?) left the game`)
	// Online players (2):
	ftOnlineRegex = regexp.MustCompile(`Online players \((\d+)\)`)
)

/**
 * FactorioAdapter Factorio适配器
 * @description
 * - 管理协议为RCON，日志从server-console.log文件跟随
 * - 在线人数通过RCON查询，响应直接解析不经过日志
 * - 发到游戏的消息以普通文本执行，Factorio会把它贴进聊天
 */
type FactorioAdapter struct{}

func (f *FactorioAdapter) Name() string { return "factorio" }

func (f *FactorioAdapter) Matchers(app *AppInstance) []LineMatcher {
	return []LineMatcher{
		NewMatcher("factorio.chat", func(line string) error {
			match := ftChatRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			author, content := match[1], match[2]
			if author == "<server>" {
				return nil
			}
			ignore := app.Spec().ChatIgnore
			if ignore != "" && strings.HasPrefix(content, ignore) {
				return nil
			}
			GetNameCache().Remember(app.Scope(), author, author)
			msg := NewChatBound(app.Name(), app.Spec().ChatChannel, author, content)
			msg.Enrich()
			GetChatRelay().Add(msg)
			return nil
		}),
		NewMatcher("factorio.join", func(line string) error {
			match := ftJoinRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			msg := NewGeneric(app.Spec().Friendly, app.Spec().ChatChannel, "join",
				map[string]string{"player": match[1]}, app.Spec().Formats)
			GetChatRelay().Add(msg)
			return nil
		}),
		NewMatcher("factorio.leave", func(line string) error {
			match := ftLeaveRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			msg := NewGeneric(app.Spec().Friendly, app.Spec().ChatChannel, "left",
				map[string]string{"player": match[1]}, app.Spec().Formats)
			GetChatRelay().Add(msg)
			return nil
		}),
	}
}

func (f *FactorioAdapter) Deliver(app *AppInstance, msg *Message) error {
	if app.rcon == nil {
		return fmt.Errorf("app '%s' has no rcon connection", app.Name())
	}
	_, err := app.rcon.Send(msg.GameLine())
	return err
}

func (f *FactorioAdapter) GracefulStop(app *AppInstance) error {
	if app.rcon == nil {
		return fmt.Errorf("app '%s' has no rcon connection", app.Name())
	}
	_, err := app.rcon.Send("/quit")
	return err
}

/**
 * Poll 查询在线人数
 * @description
 * - 响应形如"Online players (2):"，直接解析
 */
func (f *FactorioAdapter) Poll(app *AppInstance) {
	if app.rcon == nil {
		return
	}
	response, err := app.rcon.Send("/players online count")
	if err != nil {
		if app.Budget("poll") > 5 {
			logger.Warnf("App '%s' player query failed: %v", app.Name(), err)
		}
		return
	}
	if match := ftOnlineRegex.FindStringSubmatch(response); match != nil {
		online, _ := strconv.Atoi(match[1])
		app.SetPlayers(online, 0)
	}
}

func init() {
	RegisterAdapter("factorio", &FactorioAdapter{})
}
