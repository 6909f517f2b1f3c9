package cli

import (
	"errors"
	"os"

	"github.com/GoPolymarket/guardgate/internal/feed"
	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const envFeedKey = "GUARDGATE_FEED_KEY"

func newSignCmd() *cobra.Command {
	var source, asset, price string
	var observedAt uint64
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a feed attestation with the key in " + envFeedKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := os.Getenv(envFeedKey)
			if key == "" {
				return errors.New(envFeedKey + " is not set")
			}
			signer, err := feed.NewSigner(key)
			if err != nil {
				return err
			}
			p, err := decimal.NewFromString(price)
			if err != nil {
				return err
			}
			ev, err := signer.Attest(guardrail.FeedEvidence{
				Source:     source,
				Asset:      asset,
				Price:      p,
				ObservedAt: observedAt,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				Signer   string                 `json:"signer"`
				Evidence guardrail.FeedEvidence `json:"evidence"`
			}{signer.Address().Hex(), ev})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Feed source name")
	cmd.Flags().StringVar(&asset, "asset", "", "Asset the price is for")
	cmd.Flags().StringVar(&price, "price", "", "Observed price")
	cmd.Flags().Uint64Var(&observedAt, "observed-at", 0, "Observation time, unix seconds")
	for _, name := range []string{"source", "asset", "price", "observed-at"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

var ErrDigestMismatch = errors.New("receipt digest mismatch")

func newVerifyReceiptCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "verify-receipt",
		Short: "Recompute a receipt's digest and compare it with the stored one",
		RunE: func(cmd *cobra.Command, args []string) error {
			var receipt model.FillReceipt
			if err := readJSONFile(path, &receipt); err != nil {
				return err
			}
			expected, err := receipt.ComputeDigest()
			if err != nil {
				return err
			}
			valid := expected == receipt.Digest
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"receipt_id": receipt.ReceiptID,
				"digest":     receipt.Digest,
				"expected":   expected,
				"valid":      valid,
			}); err != nil {
				return err
			}
			if !valid {
				return ErrDigestMismatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "Receipt JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
