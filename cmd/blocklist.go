package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/lectord/internal/blocklist"
	"github.com/brogergvhs/lectord/internal/config"
	"github.com/brogergvhs/lectord/internal/ui"
	"github.com/brogergvhs/lectord/internal/util"
)

var (
	flagSyncLimit  int
	flagSyncDBPath string
)

func init() {
	blocklistCmd := &cobra.Command{
		Use:   "blocklist",
		Short: "Manage the ad and malware blocklist database",
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull remote hosts lists into the local blocklist database",
		RunE:  runBlocklistSync,
	}
	syncCmd.Flags().IntVar(&flagSyncLimit, "limit", 0, "max entries to import per source (0 = no limit)")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Print every blocklist entry",
		RunE:  runBlocklistExport,
	}

	blocklistCmd.PersistentFlags().StringVar(&flagSyncDBPath, "db", "", "path to the blocklist database")
	blocklistCmd.AddCommand(syncCmd, exportCmd)
	rootCmd.AddCommand(blocklistCmd)
}

func blocklistStore() (*blocklist.Store, *ui.Logger, error) {
	cfg, _, err := config.LoadMerged(flagConfigPath, config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		BlocklistDB:  flagSyncDBPath,
	})
	if err != nil {
		return nil, nil, err
	}

	return blocklist.Open(cfg.BlocklistDB), ui.NewLogger(cfg.Debug), nil
}

func runBlocklistSync(_ *cobra.Command, _ []string) error {
	store, logSvc, err := blocklistStore()
	if err != nil {
		return err
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     60 * time.Second,
		UserAgent:   util.PickUserAgent(""),
		DebugLogger: logSvc,
	})
	if err != nil {
		return err
	}

	added, err := blocklist.Sync(context.Background(), client, store, blocklist.DefaultSources, flagSyncLimit, logSvc)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d new entries.\n", added)

	return nil
}

func runBlocklistExport(_ *cobra.Command, _ []string) error {
	store, _, err := blocklistStore()
	if err != nil {
		return err
	}

	entries, err := store.Export()
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%-8s %-24s %s\n", e.Kind, e.Source, e.Pattern)
	}
	fmt.Printf("%d entries.\n", len(entries))

	return nil
}
