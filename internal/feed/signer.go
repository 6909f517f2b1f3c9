package feed

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the feed side: it attaches signatures to attestations.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(privateKeyHex string) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

// Sign returns the 65-byte signature as 0x-hex with V in {27, 28}.
func (s *Signer) Sign(ev guardrail.FeedEvidence) (string, error) {
	hash, err := Digest(ev)
	if err != nil {
		return "", err
	}
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", err
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return hexutil.Encode(sig), nil
}

// Attest fills in Signature on a copy of ev.
func (s *Signer) Attest(ev guardrail.FeedEvidence) (guardrail.FeedEvidence, error) {
	sig, err := s.Sign(ev)
	if err != nil {
		return ev, err
	}
	ev.Signature = sig
	return ev, nil
}
