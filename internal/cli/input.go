package cli

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/GoPolymarket/guardgate/internal/codec"
	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/spf13/cobra"
)

// inputFlags selects an encoded input from --hex or --file. Files may hold raw
// bytes or hex text.
type inputFlags struct {
	hex  string
	file string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.hex, "hex", "", "Encoded input as hex")
	cmd.Flags().StringVar(&f.file, "file", "", "File holding the encoded input (raw or hex)")
	cmd.MarkFlagsMutuallyExclusive("hex", "file")
	cmd.MarkFlagsOneRequired("hex", "file")
}

func (f *inputFlags) read() ([]byte, error) {
	if f.hex != "" {
		return decodeHex(f.hex)
	}
	data, err := os.ReadFile(f.file)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != codec.Version {
		if raw, err := decodeHex(string(trimmed)); err == nil {
			return raw, nil
		}
	}
	return data, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, errors.New("empty hex input")
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return raw, nil
}

func newEncodeCmd() *cobra.Command {
	var guardrailsPath, fillPath string
	var raw bool
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode guardrails and fill evidence JSON into sandbox input bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc guardrail.Document
			if err := readJSONFile(guardrailsPath, &doc); err != nil {
				return err
			}
			var fill guardrail.FillEvidence
			if err := readJSONFile(fillPath, &fill); err != nil {
				return err
			}
			input, err := codec.EncodeInput(codec.Input{Guardrails: &doc, Fill: &fill})
			if err != nil {
				return err
			}
			if raw {
				_, err = cmd.OutOrStdout().Write(input)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(input))
			return err
		},
	}
	cmd.Flags().StringVar(&guardrailsPath, "guardrails", "", "Guardrail document JSON file")
	cmd.Flags().StringVar(&fillPath, "fill", "", "Fill evidence JSON file")
	cmd.Flags().BoolVar(&raw, "raw", false, "Write raw bytes instead of hex")
	_ = cmd.MarkFlagRequired("guardrails")
	_ = cmd.MarkFlagRequired("fill")
	return cmd
}
