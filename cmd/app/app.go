package app

import (
	"github.com/APasz/Yukibot/cmd/root"

	"github.com/spf13/cobra"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "管理托管的游戏服务器",
	Long:  `管理托管的游戏服务器：列表、启动、停止、启用/禁用、查看日志`,
}

func init() {
	root.RootCmd.AddCommand(appCmd)
}
