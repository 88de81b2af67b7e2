package main

import (
	"net/url"

	"github.com/spf13/cobra"
)

var (
	ticketsTag    string
	ticketsStatus string
)

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Manage repair tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List repair tickets",
	RunE:  runTicketsList,
}

var ticketsStartCmd = &cobra.Command{
	Use:   "start <ticket-id>",
	Short: "Mark a ticket as in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateTicket(args[0], "in_progress")
	},
}

var ticketsResolveCmd = &cobra.Command{
	Use:   "resolve <ticket-id>",
	Short: "Resolve a ticket and return the asset to the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateTicket(args[0], "resolved")
	},
}

func init() {
	ticketsListCmd.Flags().StringVar(&ticketsTag, "tag", "", "Filter by asset tag")
	ticketsListCmd.Flags().StringVar(&ticketsStatus, "status", "", "Filter by status: triage, in_progress, resolved")

	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsStartCmd)
	ticketsCmd.AddCommand(ticketsResolveCmd)
}

var ticketHeaders = []string{"ID", "Tag", "Status", "Created", "Resolved", "Notes"}

func ticketRow(item map[string]any) []string {
	return []string{
		str(item["id"]),
		str(item["assetTag"]),
		str(item["status"]),
		str(item["createdAt"]),
		str(item["resolvedAt"]),
		truncate(str(item["notes"]), 40),
	}
}

func runTicketsList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if ticketsTag != "" {
		q.Set("tag", ticketsTag)
	}
	if ticketsStatus != "" {
		q.Set("status", ticketsStatus)
	}
	path := "/api/v1/lifecycle/tickets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Tickets []map[string]any `json:"tickets"`
	}
	if err := newClient().getJSON(path, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}

	rows := make([][]string, 0, len(resp.Tickets))
	for _, item := range resp.Tickets {
		rows = append(rows, ticketRow(item))
	}
	printTable(ticketHeaders, rows)
	return nil
}

func updateTicket(id, status string) error {
	var resp map[string]any
	if err := newClient().postJSON("/api/v1/lifecycle/tickets/"+id, map[string]any{"status": status}, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	printTable(ticketHeaders, [][]string{ticketRow(resp)})
	return nil
}
