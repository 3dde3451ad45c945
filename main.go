package main

import (
	"os"

	_ "github.com/APasz/Yukibot/cmd"
	"github.com/APasz/Yukibot/cmd/root"
	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/logger"
)

func main() {
	// 检查是否是服务器模式
	isServerMode := len(os.Args) > 1 && os.Args[1] == "server"

	// 根据运行模式初始化日志系统：daemon写文件并回显控制台，CLI只写文件
	logger.InitLogger(config.Config.Log.Path, config.Config.Log.Level, isServerMode)

	if err := root.RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
	os.Exit(0)
}
