package cli

import (
	"errors"
	"fmt"

	"github.com/GoPolymarket/guardgate/internal/codec"
	"github.com/GoPolymarket/guardgate/internal/engine"
	"github.com/GoPolymarket/guardgate/internal/rejection"
	"github.com/GoPolymarket/guardgate/internal/sandbox"
	"github.com/spf13/cobra"
)

// ErrRejected is returned when the input is well formed but fails a guardrail,
// so scripts can tell it apart by exit status.
var ErrRejected = errors.New("fill rejected")

type verdict struct {
	OfferID  string              `json:"offer_id"`
	Accepted bool                `json:"accepted"`
	Reason   *rejection.Envelope `json:"reason,omitempty"`
	Journal  string              `json:"journal,omitempty"`
}

func newEvalCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Decode an encoded input and run the guardrail engine on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := in.read()
			if err != nil {
				return err
			}
			input, err := codec.DecodeInput(data)
			if err != nil {
				return err
			}
			v := verdict{OfferID: input.Guardrails.OfferID.String(), Accepted: true}
			if reason := engine.Evaluate(input.Guardrails, input.Fill); reason != nil {
				v.Accepted = false
				v.Reason = &rejection.Envelope{Reason: reason}
			}
			if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
				return err
			}
			if !v.Accepted {
				return fmt.Errorf("%w: %s", ErrRejected, v.Reason.Reason.Code())
			}
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func newProveCmd() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Run an encoded input through the proof sandbox and verify the proof",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := in.read()
			if err != nil {
				return err
			}
			proof, err := sandbox.NewProver().Prove(cmd.Context(), data)
			if err != nil {
				var abort *sandbox.AbortError
				if errors.As(err, &abort) {
					if reason, ok := abort.Reason(); ok {
						_ = writeJSON(cmd.OutOrStdout(), verdict{Reason: &rejection.Envelope{Reason: reason}})
						return fmt.Errorf("%w: %s", ErrRejected, reason.Code())
					}
				}
				return err
			}
			offerID, err := proof.OfferID()
			if err != nil {
				return err
			}
			if err := sandbox.Verify(proof, data, offerID); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), verdict{
				OfferID:  offerID.String(),
				Accepted: true,
				Journal:  fmt.Sprintf("%x", proof.Journal),
			})
		},
	}
	in.register(cmd)
	return cmd
}
