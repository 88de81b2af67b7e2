package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

var (
	auditActor    string
	auditAction   string
	auditAssetTag string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail of API mutations",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&auditActor, "actor", "", "Filter by operator")
	auditCmd.Flags().StringVar(&auditAction, "action", "", "Filter by action (checkout, checkin, retire, ...)")
	auditCmd.Flags().StringVar(&auditAssetTag, "tag", "", "Filter by asset tag")
}

func runAudit(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if auditActor != "" {
		q.Set("actor", auditActor)
	}
	if auditAction != "" {
		q.Set("action", auditAction)
	}
	if auditAssetTag != "" {
		q.Set("assetTag", auditAssetTag)
	}
	path := "/api/v1/audit/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Events    []map[string]any `json:"events"`
		TotalSize int              `json:"totalSize"`
	}
	if err := newClient().getJSON(path, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}

	rows := make([][]string, 0, len(resp.Events))
	for _, e := range resp.Events {
		rows = append(rows, []string{
			str(e["createdAt"]),
			str(e["actor"]),
			str(e["action"]),
			str(e["assetTag"]),
			str(e["outcome"]),
			str(e["statusCode"]),
		})
	}
	printTable([]string{"Time", "Actor", "Action", "Tag", "Outcome", "Status"}, rows)
	return nil
}
