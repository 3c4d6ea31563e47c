package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
)

func newIndexCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index <name.json> <collection-file>",
		Short: "Build an index from a collection file and print it as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupCLILogging(*configPath, cmd.ErrOrStderr()); err != nil {
				return err
			}
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading collection: %w", err)
			}

			engine := indexer.NewEngine(store.New(), nil, nil)
			snapshot, err := engine.CreateIndex(cmd.Context(), args[0], content)
			if err != nil {
				return fmt.Errorf("%s", apperrors.PublicMessage(err))
			}
			return writeIndented(cmd, snapshot)
		},
	}
}

func writeIndented(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
