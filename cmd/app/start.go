package app

import (
	"fmt"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/rpc"
	"github.com/APasz/Yukibot/services"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [app name]",
	Short: "启动应用",
	Long:  "启动指定应用，已有运行中的应用时先停掉它",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := startApp(args[0]); err != nil {
			fmt.Println(err)
		}
	},
}

/**
 * Start app by name
 * @param {string} name - App name or alias
 * @returns {error} Returns error if start fails, nil on success
 * @description
 * - Asks the daemon first, falls back to local management
 */
func startApp(name string) error {
	client := rpc.NewHTTPClient(nil)

	resp, err := client.Post(fmt.Sprintf("/yukibot/api/v1/apps/%s/start", name), nil)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		client.Close()
		fmt.Printf("App %s has been started via yukibot daemon\n", name)
		return nil
	}
	if err == nil {
		client.Close()
		return fmt.Errorf("failed to start app: %s", resp.Error)
	}
	client.Close()
	return startAppLocally(name)
}

// startAppLocally daemon不可用时在本进程内启动
func startAppLocally(name string) error {
	if err := config.LoadSpec(); err != nil {
		return err
	}
	if err := services.GetAppManager().Launch(name); err != nil {
		return fmt.Errorf("failed to start app: %v", err)
	}
	fmt.Printf("App %s has been started locally\n", name)
	return nil
}

func init() {
	appCmd.AddCommand(startCmd)
}
