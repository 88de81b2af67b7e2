package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	checkoutRecipient string
	checkoutReturnAt  string
	checkoutDeploy    bool

	checkinCondition string
	checkinNotes     string

	swapNotes string
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <tag>",
	Short: "Check an asset out to a recipient",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckout,
}

var checkinCmd = &cobra.Command{
	Use:   "checkin <tag>",
	Short: "Check an asset back in",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckin,
}

var swapCmd = &cobra.Command{
	Use:   "swap <broken-tag> <loaner-tag>",
	Short: "Swap a broken asset for a loaner",
	Long: `Checks in the broken asset (sending it to maintenance) and checks the
loaner out to the same recipient in one atomic operation.`,
	Args: cobra.ExactArgs(2),
	RunE: runSwap,
}

var retireCmd = &cobra.Command{
	Use:   "retire <tag>",
	Short: "Retire an asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetire,
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "List open checkouts past their expected return",
	RunE:  runOverdue,
}

func init() {
	checkoutCmd.Flags().StringVar(&checkoutRecipient, "recipient", "", "Recipient of the asset (required)")
	checkoutCmd.Flags().StringVar(&checkoutReturnAt, "return-by", "", "Expected return date (YYYY-MM-DD)")
	checkoutCmd.Flags().BoolVar(&checkoutDeploy, "deploy", false, "Long-duration deployment (defaults return to one year out)")
	_ = checkoutCmd.MarkFlagRequired("recipient")

	checkinCmd.Flags().StringVar(&checkinCondition, "condition", "good", "Condition on return: good, fair, needs_repair")
	checkinCmd.Flags().StringVar(&checkinNotes, "notes", "", "Check-in notes")

	swapCmd.Flags().StringVar(&swapNotes, "notes", "", "What is wrong with the broken asset")
}

func runCheckout(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"tag":       args[0],
		"recipient": checkoutRecipient,
		"deploy":    checkoutDeploy,
	}
	if checkoutReturnAt != "" {
		t, err := time.Parse("2006-01-02", checkoutReturnAt)
		if err != nil {
			return fmt.Errorf("invalid --return-by date: %w", err)
		}
		body["expectedReturnAt"] = t.UTC().Format(time.RFC3339)
	}

	var resp map[string]any
	if err := newClient().postJSON("/api/v1/lifecycle/checkout", body, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	fmt.Printf("Checked out %s to %s (checkout %s)\n", args[0], checkoutRecipient, str(resp["checkoutID"]))
	return nil
}

func runCheckin(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"tag":       args[0],
		"condition": checkinCondition,
		"notes":     checkinNotes,
	}
	var resp map[string]any
	if err := newClient().postJSON("/api/v1/lifecycle/checkin", body, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	fmt.Printf("Checked in %s (condition: %s)\n", args[0], checkinCondition)
	return nil
}

func runSwap(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"brokenTag": args[0],
		"loanerTag": args[1],
		"notes":     swapNotes,
	}
	var resp map[string]any
	if err := newClient().postJSON("/api/v1/lifecycle/loaner-swap", body, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	fmt.Printf("Swapped %s for loaner %s (recipient: %s)\n",
		args[0], args[1], str(resp["recipient"]))
	return nil
}

func runRetire(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().postJSON("/api/v1/lifecycle/retire", map[string]any{"tag": args[0]}, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	fmt.Printf("Retired %s\n", args[0])
	return nil
}

func runOverdue(cmd *cobra.Command, args []string) error {
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	if err := newClient().getJSON("/api/v1/lifecycle/overdue", &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}

	rows := make([][]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		rows = append(rows, []string{
			str(item["assetTag"]),
			str(item["recipient"]),
			str(item["checkoutAt"]),
			str(item["expectedReturnAt"]),
		})
	}
	printTable([]string{"Tag", "Recipient", "Checked Out", "Due"}, rows)
	return nil
}
