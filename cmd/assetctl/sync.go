package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage spreadsheet sync",
}

var syncTriggerCmd = &cobra.Command{
	Use:   "trigger <pull|push|bidirectional>",
	Short: "Run a sync pass now",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyncTrigger,
}

var syncLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent sync passes",
	RunE:  runSyncLogs,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check sheet connectivity and the last pass",
	RunE:  runSyncStatus,
}

func init() {
	syncCmd.AddCommand(syncTriggerCmd)
	syncCmd.AddCommand(syncLogsCmd)
	syncCmd.AddCommand(syncStatusCmd)
}

func syncLogRow(item map[string]any) []string {
	return []string{
		str(item["startedAt"]),
		str(item["direction"]),
		str(item["status"]),
		str(item["recordsProcessed"]),
		str(item["conflictCount"]),
		str(item["errorCount"]),
		str(item["durationMs"]),
	}
}

var syncLogHeaders = []string{"Started", "Direction", "Status", "Processed", "Conflicts", "Errors", "Ms"}

func runSyncTrigger(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().postJSON("/api/v1/sync/"+args[0], nil, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	printTable(syncLogHeaders, [][]string{syncLogRow(resp)})
	return nil
}

func runSyncLogs(cmd *cobra.Command, args []string) error {
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	if err := newClient().getJSON("/api/v1/sync/logs", &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		rows = append(rows, syncLogRow(item))
	}
	printTable(syncLogHeaders, rows)
	return nil
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().getJSON("/api/v1/sync/status", &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}

	fmt.Printf("Connected: %s\n", str(resp["connected"]))
	if e := str(resp["connectionError"]); e != "" {
		fmt.Printf("Error: %s\n", e)
	}
	if last, ok := resp["lastPass"].(map[string]any); ok {
		fmt.Println("Last pass:")
		printTable(syncLogHeaders, [][]string{syncLogRow(last)})
	}
	return nil
}
