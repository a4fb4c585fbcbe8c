package main

import (
	"fmt"

	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print persisted log lines",
	Long: `Print the newest log lines persisted by the table sink (log.table in the
configuration), oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		sink, err := log.NewTableSink(store, log.DefaultTable, 0)
		if err != nil {
			return err
		}
		entries, err := sink.Tail(limit)
		if err != nil {
			return fmt.Errorf("failed to read logs: %w", err)
		}
		for _, e := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), string(e.Line))
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 50, "Number of lines to print (0 for all)")
}
