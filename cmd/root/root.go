package root

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "yukibot",
	Short: "游戏服务器托管与聊天中继",
	Long:  `yukibot托管多个游戏服务器的启动、停止、日志跟随、管理协议连接，并在游戏与聊天平台之间双向中继消息`,
}
