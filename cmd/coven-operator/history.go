// ABOUTME: history command: prints ledger entries for a conversation
// ABOUTME: Recent window by default, --all for the transcript from the first entry

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389/coven-operator/internal/command"
	"github.com/2389/coven-operator/internal/store"
)

// transcriptLimit caps --all; the ledger clamps larger windows anyway.
const transcriptLimit = 500

var (
	historyLimit int
	historyAll   bool
)

var historyCmd = &cobra.Command{
	Use:   "history <conversation>",
	Short: "Show recent ledger entries for a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Ledger.Enabled {
			return errors.New("the ledger is disabled in the config")
		}
		if _, err := os.Stat(cfg.Ledger.Path); err != nil {
			return fmt.Errorf("no ledger at %s: %w", cfg.Ledger.Path, err)
		}

		s, err := store.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("opening ledger: %w", err)
		}
		defer s.Close()

		return writeHistory(cmd.Context(), cmd.OutOrStdout(), s, args[0], historyLimit, historyAll)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().BoolVarP(&historyAll, "all", "a", false, "Show the transcript from the first entry (up to 500)")
}

// writeHistory prints either the newest limit entries or, with all set, the
// conversation from its first entry.
func writeHistory(ctx context.Context, w io.Writer, s store.Store, conversation string, limit int, all bool) error {
	var (
		events []*store.LedgerEvent
		err    error
	)
	if all {
		events, err = s.ListEventsByConversation(ctx, conversation, transcriptLimit)
	} else {
		events, err = s.ListRecentEvents(ctx, conversation, limit)
	}
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return nil
	}
	fmt.Fprintln(w, command.FormatHistory(events))
	return nil
}
