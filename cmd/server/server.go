package server

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/APasz/Yukibot/cmd/root"
	"github.com/APasz/Yukibot/controllers"
	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/env"
	"github.com/APasz/Yukibot/internal/logger"
	"github.com/APasz/Yukibot/internal/middleware"
	"github.com/APasz/Yukibot/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动daemon",
	Long:  `以daemon模式启动，提供应用管理API与聊天中继`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := startServer(); err != nil {
			logger.Fatal(err)
		}
	},
}

/**
 * startServer 启动daemon
 * @returns {error} 返回错误信息
 * @description
 * - tcp与unix socket双监听，CLI子命令优先走unix socket
 * - 配置了webhook时接上聊天平台投递端
 * - SIGINT/SIGTERM时停掉所有应用再退出
 */
func startServer() error {
	env.Daemon = true

	if config.Config.Server.Mode != "" {
		gin.SetMode(config.Config.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.MetricsMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := config.LoadSpec(); err != nil {
		return fmt.Errorf("failed to load app specification: %w", err)
	}
	srv := services.NewServer(&config.Config)

	apiController := controllers.NewAPIController(srv)
	apiController.RegisterRoutes(router)

	if config.Config.Chat.WebhookBase != "" {
		sender, err := services.NewWebhookSender(config.Config.Chat.WebhookBase)
		if err != nil {
			return err
		}
		srv.Relay().SetSender(sender)
	} else {
		logger.Warn("Chat webhook base is not configured, chatbound messages will be dropped")
	}

	listeners, err := createServerListeners()
	if err != nil && len(listeners) == 0 {
		return err
	}
	port := listenPort(listeners)
	env.ListenPort = port

	if err := srv.Init(port); err != nil {
		return err
	}
	go srv.StartMonitoring()

	if config.Config.Metrics.Pushgateway != "" {
		services.GetMetricsService().StartPushReporter(config.Config.Metrics.Pushgateway,
			time.Duration(config.Config.Interval.Monitoring)*time.Second)
	}

	// 优雅退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, shutting down", sig)
		srv.Shutdown()
		os.Exit(0)
	}()

	errCh := make(chan error, len(listeners))
	for _, listener := range listeners {
		listener := listener
		logger.Infof("Listening on %s://%s", listener.Addr().Network(), listener.Addr().String())
		go func() {
			errCh <- http.Serve(listener, router)
		}()
	}
	return <-errCh
}

// createServerListeners 创建tcp与unix socket监听器
func createServerListeners() ([]net.Listener, error) {
	addrs := []ListenAddr{
		{Network: "tcp", Address: config.Config.Server.Address},
	}
	if IsUnixSocketSupported() {
		runDir := filepath.Join(env.YukibotDir, "run")
		if err := os.MkdirAll(runDir, 0o755); err == nil {
			addrs = append(addrs, ListenAddr{
				Network: "unix",
				Address: filepath.Join(runDir, "yukibot.sock"),
			})
		}
	}
	return CreateListeners(addrs)
}

// listenPort 从tcp监听器取实际端口
func listenPort(listeners []net.Listener) int {
	for _, listener := range listeners {
		if listener.Addr().Network() != "tcp" {
			continue
		}
		_, portStr, err := net.SplitHostPort(listener.Addr().String())
		if err != nil {
			continue
		}
		if port, err := strconv.Atoi(portStr); err == nil {
			return port
		}
	}
	return 0
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
}
