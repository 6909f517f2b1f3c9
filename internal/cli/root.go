// Package cli implements guardctl, the offline companion to the server: it
// encodes evaluation inputs, evaluates and proves them, signs feed
// attestations and checks receipt digests.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/GoPolymarket/guardgate/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "guardctl",
		Short:         "Evaluate, prove and inspect guardrail inputs offline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newEncodeCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newProveCmd())
	root.AddCommand(newSignCmd())
	root.AddCommand(newVerifyReceiptCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the guardctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
