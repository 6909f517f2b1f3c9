package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("bad feed signature")

// Verifier checks attestation signatures against registered feed addresses.
// Sources without a registered address are left alone: whether they may be
// used at all is the guardrail allowlist's call.
type Verifier struct {
	signers map[string]common.Address
}

// NewVerifier takes source name to hex address. Source names are matched
// case-insensitively.
func NewVerifier(signers map[string]string) (*Verifier, error) {
	v := &Verifier{signers: make(map[string]common.Address, len(signers))}
	for source, addr := range signers {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("feed %q: invalid signer address %q", source, addr)
		}
		v.Register(source, common.HexToAddress(addr))
	}
	return v, nil
}

// Register sets or replaces the signer address for source.
func (v *Verifier) Register(source string, addr common.Address) {
	v.signers[normalize(source)] = addr
}

// Verify checks every attestation whose source has a registered signer.
func (v *Verifier) Verify(evidence []guardrail.FeedEvidence) error {
	for i, ev := range evidence {
		expected, ok := v.signers[normalize(ev.Source)]
		if !ok {
			continue
		}
		if err := verifyOne(ev, expected); err != nil {
			return fmt.Errorf("%w: attestation %d from %q: %v", ErrBadSignature, i, ev.Source, err)
		}
	}
	return nil
}

func verifyOne(ev guardrail.FeedEvidence, expected common.Address) error {
	if ev.Signature == "" {
		return errors.New("signature is required")
	}
	rawSig, err := hexutil.Decode(ev.Signature)
	if err != nil {
		return errors.New("invalid signature encoding")
	}
	if len(rawSig) != 65 {
		return errors.New("invalid signature length")
	}
	// Normalize V to 0/1 for recovery.
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}
	hash, err := Digest(ev)
	if err != nil {
		return err
	}
	pub, err := crypto.SigToPub(hash, rawSig)
	if err != nil {
		return errors.New("signature recovery failed")
	}
	if crypto.PubkeyToAddress(*pub) != expected {
		return errors.New("signature mismatch")
	}
	return nil
}

func normalize(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}
