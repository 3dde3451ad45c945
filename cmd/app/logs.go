package app

import (
	"encoding/json"
	"fmt"

	"github.com/APasz/Yukibot/internal/rpc"

	"github.com/spf13/cobra"
)

var logLines int

var logsCmd = &cobra.Command{
	Use:   "logs [app name]",
	Short: "查看应用日志",
	Long:  "从daemon的日志窗口取最新的若干行",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := showLogs(args[0], logLines); err != nil {
			fmt.Println(err)
		}
	},
}

/**
 * Show recent app log lines
 * @param {string} name - App name or alias
 * @param {int} lines - Number of lines to fetch
 * @returns {error} Returns error if fetch fails, nil on success
 * @description
 * - Log window lives in the daemon, so there is no local fallback
 */
func showLogs(name string, lines int) error {
	client := rpc.NewHTTPClient(nil)
	defer client.Close()

	resp, err := client.Get(fmt.Sprintf("/yukibot/api/v1/apps/%s/logs", name),
		map[string]interface{}{"lines": lines})
	if err != nil {
		return fmt.Errorf("daemon is not reachable: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to fetch logs: %s", resp.Error)
	}
	var body struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return err
	}
	for _, line := range body.Lines {
		fmt.Println(line)
	}
	return nil
}

func init() {
	logsCmd.Flags().IntVar(&logLines, "lines", 50, "行数")
	appCmd.AddCommand(logsCmd)
}
