package app

import (
	"fmt"
	"time"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/rpc"
	"github.com/APasz/Yukibot/services"

	"github.com/spf13/cobra"
)

var stopDelay int

var stopCmd = &cobra.Command{
	Use:   "stop [app name]",
	Short: "停止应用",
	Long:  "停止指定应用。不带参数停止当前应用，名字为all时停止全部，--delay可延迟执行",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := "current"
		if len(args) > 0 {
			name = args[0]
		}
		if err := stopApp(name, stopDelay); err != nil {
			fmt.Println(err)
		}
	},
}

/**
 * Stop app by name
 * @param {string} name - App name, "current" or "all"
 * @param {int} delay - Delay in seconds before stopping
 * @returns {error} Returns error if stop fails, nil on success
 */
func stopApp(name string, delay int) error {
	client := rpc.NewHTTPClient(nil)

	path := fmt.Sprintf("/yukibot/api/v1/apps/%s/stop", name)
	if delay > 0 {
		path = fmt.Sprintf("%s?delay=%d", path, delay)
	}
	resp, err := client.Post(path, nil)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		client.Close()
		fmt.Printf("App %s stop requested via yukibot daemon\n", name)
		return nil
	}
	if err == nil {
		client.Close()
		return fmt.Errorf("failed to stop app: %s", resp.Error)
	}
	client.Close()
	return stopAppLocally(name, delay)
}

// stopAppLocally daemon不可用时在本进程内停止
func stopAppLocally(name string, delay int) error {
	if err := config.LoadSpec(); err != nil {
		return err
	}
	if err := services.GetAppManager().End(name, time.Duration(delay)*time.Second); err != nil {
		return fmt.Errorf("failed to stop app: %v", err)
	}
	fmt.Printf("App %s stop requested locally\n", name)
	return nil
}

func init() {
	stopCmd.Flags().IntVar(&stopDelay, "delay", 0, "延迟秒数")
	appCmd.AddCommand(stopCmd)
}
