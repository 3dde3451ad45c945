package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/APasz/Yukibot/internal/config"
	"github.com/APasz/Yukibot/internal/models"
	"github.com/APasz/Yukibot/internal/rpc"
	"github.com/APasz/Yukibot/services"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有应用",
	Long:  "列出所有注册的应用及其运行状态",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listApps(); err != nil {
			fmt.Println(err)
		}
	},
}

/**
 * List registered apps
 * @returns {error} Returns error if listing fails, nil on success
 * @description
 * - Queries the daemon first, falls back to the local specification
 */
func listApps() error {
	details, err := listViaDaemon()
	if err != nil {
		details, err = listLocally()
		if err != nil {
			return err
		}
	}
	renderApps(details)
	return nil
}

// listViaDaemon 从daemon查询应用列表
func listViaDaemon() ([]models.AppDetail, error) {
	client := rpc.NewHTTPClient(nil)
	defer client.Close()

	resp, err := client.Get("/yukibot/api/v1/apps", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("daemon returned error: %s", resp.Error)
	}
	var details []models.AppDetail
	if err := json.Unmarshal(resp.Body, &details); err != nil {
		return nil, err
	}
	return details, nil
}

// listLocally daemon不可用时读取本地规格
func listLocally() ([]models.AppDetail, error) {
	if err := config.LoadSpec(); err != nil {
		return nil, err
	}
	manager := services.GetAppManager()
	current := manager.Current()
	var details []models.AppDetail
	for _, app := range manager.List() {
		details = append(details, app.GetDetail(app == current))
	}
	return details, nil
}

func renderApps(details []models.AppDetail) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Friendly", "Scope", "Status", "Enabled", "Current", "PID", "Players"})
	for _, detail := range details {
		players := "unknown"
		if detail.PlayerInfo != nil {
			players = fmt.Sprintf("%d/%d", detail.PlayerInfo.Online, detail.PlayerInfo.Max)
		}
		current := ""
		if detail.Current {
			current = "*"
		}
		t.AppendRow(table.Row{
			detail.Name, detail.Friendly, detail.Scope, detail.Status,
			detail.Enabled, current, detail.Pid, players,
		})
	}
	t.Render()
}

func init() {
	appCmd.AddCommand(listCmd)
}
