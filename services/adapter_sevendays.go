package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/logger"
)

var (
	// Chat (from 'Steam_123'): 'Alice': hello there
	sdChatRegex = regexp.MustCompile(`Chat.*?:\s*'(.*?)':\s*(.+)`)
	// GMSG: Player 'Alice' joined the game
	sdJoinLeaveRegex = regexp.MustCompile(`GMSG: Player '(.+?)' (joined|left) the game`)
	// Day 1, 08:15
	sdTimeRegex = regexp.MustCompile(`Day (\d+), (\d{1,2}):(\d{2})`)
	// GameStat.ZombieHordeMeter = 1
	sdStatRegex = regexp.MustCompile(`GameStat\.(\w+)\s*=\s*(\S+)`)
	// Total of 3 in the game
	sdPlayerTotalRegex = regexp.MustCompile(`Total of (\d+) in the game`)
)

/**
 * SevenDaysAdapter 7 Days to Die适配器
 * @description
 * - 管理协议为telnet控制台，日志与命令响应都出现在同一条连接上
 * - 聊天/进出/游戏时间/统计都从控制台行匹配出来
 * - 轮询只负责下发查询命令，响应由匹配器消费
 */
type SevenDaysAdapter struct{}

func (s *SevenDaysAdapter) Name() string { return "sevendays" }

func (s *SevenDaysAdapter) Matchers(app *AppInstance) []LineMatcher {
	return []LineMatcher{
		NewMatcher("sevendays.chat", func(line string) error {
			match := sdChatRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			author, content := match[1], match[2]
			// 服务器自己说的话不回传，避免回环
			if author == "Server" {
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
		NewMatcher("sevendays.joinleave", func(line string) error {
			match := sdJoinLeaveRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			kind := "join"
			if match[2] == "left" {
				kind = "left"
			}
			msg := NewGeneric(app.Spec().Friendly, app.Spec().ChatChannel, kind,
				map[string]string{"player": match[1]}, app.Spec().Formats)
			GetChatRelay().Add(msg)
			return nil
		}),
		NewMatcher("sevendays.time", func(line string) error {
			match := sdTimeRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			day, _ := strconv.Atoi(match[1])
			hour, _ := strconv.Atoi(match[2])
			minute, _ := strconv.Atoi(match[3])
			app.SetGameTime(day, hour, minute)
			return nil
		}),
		NewMatcher("sevendays.gamestat", func(line string) error {
			match := sdStatRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			app.SetGameStat(match[1], match[2])
			return nil
		}),
		NewMatcher("sevendays.players", func(line string) error {
			match := sdPlayerTotalRegex.FindStringSubmatch(line)
			if match == nil {
				return nil
			}
			online, _ := strconv.Atoi(match[1])
			max := 0
			if value, exists := app.GameStat("MaxPlayers"); exists {
				max, _ = strconv.Atoi(value)
			}
			app.SetPlayers(online, max)
			return nil
		}),
	}
}

func (s *SevenDaysAdapter) Deliver(app *AppInstance, msg *Message) error {
	if app.telnet == nil {
		return fmt.Errorf("app '%s' has no telnet connection", app.Name())
	}
	return app.telnet.Send(fmt.Sprintf("say %q", msg.GameLine()))
}

/**
 * GracefulStop 先存档再关服
 * @description
 * - saveworld是异步的，留一点时间落盘再shutdown
 */
func (s *SevenDaysAdapter) GracefulStop(app *AppInstance) error {
	if app.telnet == nil {
		return fmt.Errorf("app '%s' has no telnet connection", app.Name())
	}
	if err := app.telnet.Send("saveworld"); err != nil {
		return err
	}
	time.Sleep(2 * time.Second)
	return app.telnet.Send("shutdown")
}

/**
 * Poll 下发查询命令，响应由匹配器消费
 * @description
 * - 在线人数每次轮询都查，游戏时间与统计各按自己的间隔查
 */
func (s *SevenDaysAdapter) Poll(app *AppInstance) {
	if app.telnet == nil {
		return
	}
	commands := []string{"listplayers"}
	if app.PollDue("time", time.Duration(config.Config.Interval.Time)*time.Second) {
		commands = append(commands, "gettime")
	}
	if app.PollDue("gamestats", time.Duration(config.Config.Interval.GameStats)*time.Second) {
		commands = append(commands, "getgamestat")
	}
	for _, command := range commands {
		if err := app.telnet.Send(command); err != nil {
			if app.Budget("poll") > 5 {
				logger.Warnf("App '%s' poll command '%s' failed: %v", app.Name(), command, err)
			}
			return
		}
	}
}

func init() {
	RegisterAdapter("sevendays", &SevenDaysAdapter{})
}
