package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	asUser    string
	asRole    string
)

var rootCmd = &cobra.Command{
	Use:   "assetctl",
	Short: "CLI for the asset tracking server",
	Long: `assetctl manages school inventory through the asset tracking server.

It covers the full asset lifecycle (checkout, check-in, loaner swaps,
retirement), inventory listing and search, and the spreadsheet sync passes.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Asset tracking server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")
	rootCmd.PersistentFlags().StringVar(&asUser, "user", "", "Operator username sent with requests (default: ASSETCTL_USER env)")
	rootCmd.PersistentFlags().StringVar(&asRole, "role", "", "Operator role sent with requests (default: ASSETCTL_ROLE env or helpdesk)")

	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(swapCmd)
	rootCmd.AddCommand(retireCmd)
	rootCmd.AddCommand(overdueCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedUser returns the operator identity to send.
// Priority: --user flag > ASSETCTL_USER env var > empty (anonymous).
func resolvedUser() string {
	if asUser != "" {
		return asUser
	}
	return os.Getenv("ASSETCTL_USER")
}

func resolvedRole() string {
	if asRole != "" {
		return asRole
	}
	if r := os.Getenv("ASSETCTL_ROLE"); r != "" {
		return r
	}
	return "helpdesk"
}
