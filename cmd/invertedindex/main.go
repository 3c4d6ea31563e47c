// Command invertedindex builds and searches inverted indexes over JSON book
// collections.
//
// Usage:
//
//	invertedindex serve [--config configs/development.yaml]
//	invertedindex index books.json ./books.json
//	invertedindex search --index ./index.json [--name books.json] the "white rabbit"
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "invertedindex",
		Short:        "Build and search inverted indexes over JSON book collections",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newIndexCmd(&configPath))
	cmd.AddCommand(newSearchCmd(&configPath))
	return cmd
}
