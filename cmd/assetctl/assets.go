package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	listStatus         string
	listCategory       string
	listType           string
	listSearch         string
	listIncludeRetired bool

	createName     string
	createCategory string
	createType     string
	createSerial   string
	createLocation string
	createNotes    string
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage inventory assets",
}

var assetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assets",
	RunE:  runAssetsList,
}

var assetsGetCmd = &cobra.Command{
	Use:   "get <tag>",
	Short: "Show an asset and its checkout history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsGet,
}

var assetsCreateCmd = &cobra.Command{
	Use:   "create <tag>",
	Short: "Create an asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsCreate,
}

var assetsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Quick search by tag, name or serial number",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsSearch,
}

func init() {
	assetsListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	assetsListCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category")
	assetsListCmd.Flags().StringVar(&listType, "type", "", "Filter by type")
	assetsListCmd.Flags().StringVar(&listSearch, "search", "", "Filter by search term")
	assetsListCmd.Flags().BoolVar(&listIncludeRetired, "include-retired", false, "Include retired assets")

	assetsCreateCmd.Flags().StringVar(&createName, "name", "", "Asset name (required)")
	assetsCreateCmd.Flags().StringVar(&createCategory, "category", "", "Asset category (required)")
	assetsCreateCmd.Flags().StringVar(&createType, "type", "", "Asset type (required)")
	assetsCreateCmd.Flags().StringVar(&createSerial, "serial", "", "Serial number")
	assetsCreateCmd.Flags().StringVar(&createLocation, "location", "", "Location")
	assetsCreateCmd.Flags().StringVar(&createNotes, "notes", "", "Notes")
	_ = assetsCreateCmd.MarkFlagRequired("name")
	_ = assetsCreateCmd.MarkFlagRequired("category")
	_ = assetsCreateCmd.MarkFlagRequired("type")

	assetsCmd.AddCommand(assetsListCmd)
	assetsCmd.AddCommand(assetsGetCmd)
	assetsCmd.AddCommand(assetsCreateCmd)
	assetsCmd.AddCommand(assetsSearchCmd)
}

func assetTableRows(items []map[string]any) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			str(item["tag"]),
			truncate(str(item["name"]), 30),
			str(item["category"]),
			str(item["status"]),
			str(item["condition"]),
			truncate(str(item["location"]), 20),
		})
	}
	return rows
}

func printAssetList(items []map[string]any) {
	printTable(
		[]string{"Tag", "Name", "Category", "Status", "Condition", "Location"},
		assetTableRows(items),
	)
}

func runAssetsList(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if listStatus != "" {
		q.Set("status", listStatus)
	}
	if listCategory != "" {
		q.Set("category", listCategory)
	}
	if listType != "" {
		q.Set("type", listType)
	}
	if listSearch != "" {
		q.Set("search", listSearch)
	}
	if listIncludeRetired {
		q.Set("includeRetired", "true")
	}

	var resp struct {
		Assets []map[string]any `json:"assets"`
		Total  int              `json:"totalSize"`
	}
	path := "/api/v1/assets"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	if err := newClient().getJSON(path, &resp); err != nil {
		return err
	}

	if outputFmt == "json" {
		return printJSON(resp)
	}
	printAssetList(resp.Assets)
	fmt.Printf("\n%d of %d assets\n", len(resp.Assets), resp.Total)
	return nil
}

func runAssetsGet(cmd *cobra.Command, args []string) error {
	var resp map[string]any
	if err := newClient().getJSON("/api/v1/assets/"+url.PathEscape(args[0]), &resp); err != nil {
		return err
	}
	return printJSON(resp)
}

func runAssetsCreate(cmd *cobra.Command, args []string) error {
	body := map[string]any{
		"tag":          args[0],
		"name":         createName,
		"category":     createCategory,
		"type":         createType,
		"serialNumber": createSerial,
		"location":     createLocation,
		"notes":        createNotes,
	}
	var resp map[string]any
	if err := newClient().postJSON("/api/v1/assets", body, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	fmt.Printf("Created asset %s\n", args[0])
	return nil
}

func runAssetsSearch(cmd *cobra.Command, args []string) error {
	var resp struct {
		Assets []map[string]any `json:"assets"`
	}
	path := "/api/v1/assets/search?q=" + url.QueryEscape(args[0])
	if err := newClient().getJSON(path, &resp); err != nil {
		return err
	}
	if outputFmt == "json" {
		return printJSON(resp)
	}
	printAssetList(resp.Assets)
	return nil
}
