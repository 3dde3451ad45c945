package app

import (
	"fmt"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/rpc"
	"github.com/APasz/Yukibot/services"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable [app name]",
	Short: "启用应用",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := toggleApp(args[0], true); err != nil {
			fmt.Println(err)
		}
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable [app name]",
	Short: "禁用应用",
	Long:  "禁用应用。正在运行的实例不受影响，只是不能再被启动",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := toggleApp(args[0], false); err != nil {
			fmt.Println(err)
		}
	},
}

/**
 * Toggle app enabled state
 * @param {string} name - App name or alias
 * @param {bool} enabled - Target state
 * @returns {error} Returns error if toggle fails, nil on success
 */
func toggleApp(name string, enabled bool) error {
	client := rpc.NewHTTPClient(nil)

	body := map[string]interface{}{"enabled": enabled}
	resp, err := client.Put(fmt.Sprintf("/yukibot/api/v1/apps/%s/enabled", name), body)
	if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		client.Close()
		fmt.Printf("App %s enabled=%t via yukibot daemon\n", name, enabled)
		return nil
	}
	if err == nil {
		client.Close()
		return fmt.Errorf("failed to toggle app: %s", resp.Error)
	}
	client.Close()
	return toggleAppLocally(name, enabled)
}

// toggleAppLocally daemon不可用时直接改本地状态
func toggleAppLocally(name string, enabled bool) error {
	if err := config.LoadSpec(); err != nil {
		return err
	}
	if err := services.GetAppManager().Toggle(name, enabled); err != nil {
		return fmt.Errorf("failed to toggle app: %v", err)
	}
	fmt.Printf("App %s enabled=%t locally\n", name, enabled)
	return nil
}

func init() {
	appCmd.AddCommand(enableCmd)
	appCmd.AddCommand(disableCmd)
}
