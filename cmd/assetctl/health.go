package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	resp, err := newClient().http.Get(serverURL + "/healthz")
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}
	fmt.Printf("Server %s is up: %s\n", serverURL, body)
	return nil
}
