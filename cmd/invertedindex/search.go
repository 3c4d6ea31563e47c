package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/inverted-index/pkg/logger"
)

func newSearchCmd(configPath *string) *cobra.Command {
	var indexPath, fileName string

	cmd := &cobra.Command{
		Use:   "search --index <index-file> [--name <name.json>] <term>...",
		Short: "Search an index payload file",
		Long: `Search an index payload file as produced by "invertedindex index".
Each argument is one term; a quoted argument with spaces is a phrase.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupCLILogging(*configPath, cmd.ErrOrStderr()); err != nil {
				return err
			}
			raw, err := os.ReadFile(indexPath)
			if err != nil {
				return fmt.Errorf("reading index: %w", err)
			}
			indexes, err := executor.ParseIndexPayload(raw, fileName)
			if err != nil {
				return fmt.Errorf("%s", apperrors.PublicMessage(err))
			}

			result, err := executor.New(nil).Execute(cmd.Context(), executor.Query{
				Indexes:  indexes,
				FileName: fileName,
				Terms:    parser.Strings(args...),
			})
			if err != nil {
				return fmt.Errorf("%s", apperrors.PublicMessage(err))
			}
			return writeIndented(cmd, result)
		},
	}
	cmd.Flags().StringVar(&indexPath, "index", "", "path to an index payload JSON file")
	cmd.Flags().StringVar(&fileName, "name", "", "restrict the search to one collection")
	cmd.MarkFlagRequired("index")
	return cmd
}

// setupCLILogging sends logs to w so that stdout carries only JSON output.
func setupCLILogging(configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.SetupWriter(w, cfg.Logging.Level, cfg.Logging.Format)
	return nil
}
