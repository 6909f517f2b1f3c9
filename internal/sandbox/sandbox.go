// Package sandbox runs the guardrail check the way the proof environment
// does: it receives only bytes, and any rejection aborts the run so a
// refused fill can never yield an acceptance proof.
package sandbox

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/GoPolymarket/guardgate/internal/codec"
	"github.com/GoPolymarket/guardgate/internal/engine"
	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/GoPolymarket/guardgate/internal/rejection"
)

// JournalAccepted is the trailing byte committed after a successful check.
const JournalAccepted byte = 0x01

// ErrProofAborted matches every AbortError.
var ErrProofAborted = errors.New("proof aborted")

// AbortError is returned when the guest refused to commit. Cause is either a
// rejection.Reason or a structural decode error.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string { return "proof aborted: " + e.Cause.Error() }

func (e *AbortError) Unwrap() error { return e.Cause }

func (e *AbortError) Is(target error) bool { return target == ErrProofAborted }

// Reason returns the business rejection behind the abort, if there was one.
func (e *AbortError) Reason() (rejection.Reason, bool) {
	var reason rejection.Reason
	if errors.As(e.Cause, &reason) {
		return reason, true
	}
	return nil, false
}

type abort struct{ err error }

// Guest is the program body executed inside the sandbox. It panics on any
// failure and otherwise returns the journal: offer id followed by
// JournalAccepted.
func Guest(input []byte) []byte {
	in, err := codec.DecodeInput(input)
	if err != nil {
		panic(abort{err})
	}
	if reason := engine.Evaluate(in.Guardrails, in.Fill); reason != nil {
		panic(abort{reason})
	}
	journal := make([]byte, 0, len(guardrail.OfferID{})+1)
	journal = append(journal, in.Guardrails.OfferID[:]...)
	return append(journal, JournalAccepted)
}

// Proof is the output of a successful run.
type Proof struct {
	InputDigest [32]byte
	Journal     []byte
}

// OfferID reads the committed offer id back out of the journal.
func (p *Proof) OfferID() (guardrail.OfferID, error) {
	var id guardrail.OfferID
	if len(p.Journal) != len(id)+1 || p.Journal[len(id)] != JournalAccepted {
		return id, fmt.Errorf("malformed journal (%d bytes)", len(p.Journal))
	}
	copy(id[:], p.Journal[:len(id)])
	return id, nil
}

// Prover hosts Guest and turns its abort into an error.
type Prover struct{}

func NewProver() *Prover {
	return &Prover{}
}

// Prove runs Guest over input. Aborts come back as *AbortError.
func (p *Prover) Prove(ctx context.Context, input []byte) (proof *Proof, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			proof = nil
			err = &AbortError{Cause: a.err}
		}
	}()
	journal := Guest(input)
	return &Proof{InputDigest: sha256.Sum256(input), Journal: journal}, nil
}

// Verify checks a proof was produced for input and commits to offerID.
func Verify(proof *Proof, input []byte, offerID guardrail.OfferID) error {
	if proof == nil {
		return errors.New("nil proof")
	}
	if proof.InputDigest != sha256.Sum256(input) {
		return errors.New("proof does not match input")
	}
	got, err := proof.OfferID()
	if err != nil {
		return err
	}
	if got != offerID {
		return fmt.Errorf("proof commits to offer %s, expected %s", got, offerID)
	}
	return nil
}
