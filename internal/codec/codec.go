// Package codec is the byte format that carries an evaluation input across
// the host / proof-sandbox boundary.
//
// Layout: one version byte followed by a CBOR array (core deterministic
// encoding). Structs are encoded as arrays, so field order is part of the
// version. Decimals travel as their canonical string form, never as floats.
package codec

import (
	"errors"
	"fmt"

	"github.com/GoPolymarket/guardgate/internal/guardrail"
	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// Version of the layout produced by EncodeInput.
const Version byte = 0x01

var (
	ErrUnsupportedVersion = errors.New("unsupported input version")
	ErrEmptyInput         = errors.New("empty input")
)

// Input is everything Evaluate needs.
type Input struct {
	Guardrails *guardrail.Document
	Fill       *guardrail.FillEvidence
}

type wireFeed struct {
	_          struct{} `cbor:",toarray"`
	Source     string
	Asset      string
	Price      string
	ObservedAt uint64
	Signature  string
}

type wireDocument struct {
	_                      struct{} `cbor:",toarray"`
	OfferID                []byte
	MaxDebit               uint64
	MinCredit              *uint64
	ExpiryTime             uint64
	AllowedSources         []string
	MaxStalenessSecs       uint64
	QuorumCount            uint32
	QuorumTolerancePercent string
	AllowedTakers          []string
	AllowedAssets          []string
	RequireAtomicDvP       bool
	ForbidSidePayments     bool
	Nonce                  uint64
	MaxFillSize            uint64
}

type wireFill struct {
	_                 struct{} `cbor:",toarray"`
	TakerID           string
	FillSize          uint64
	FillPrice         uint64
	FeedEvidence      []wireFeed
	EvaluationTime    uint64
	TransferLegCount  uint32
	HasExtraTransfers bool
}

type wireInput struct {
	_          struct{} `cbor:",toarray"`
	Guardrails wireDocument
	Fill       wireFill
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build cbor dec mode: %v", err))
	}
}

// EncodeInput serialises an input. The same input always yields the same bytes.
func EncodeInput(in Input) ([]byte, error) {
	if in.Guardrails == nil || in.Fill == nil {
		return nil, fmt.Errorf("%w: guardrails and fill are required", guardrail.ErrMalformed)
	}
	w := wireInput{
		Guardrails: toWireDocument(in.Guardrails),
		Fill:       toWireFill(in.Fill),
	}
	body, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, Version)
	return append(out, body...), nil
}

// DecodeInput parses and structurally validates an input. Errors returned
// here are never business rejections.
func DecodeInput(data []byte) (Input, error) {
	if len(data) == 0 {
		return Input{}, ErrEmptyInput
	}
	if data[0] != Version {
		return Input{}, fmt.Errorf("%w: 0x%02x", ErrUnsupportedVersion, data[0])
	}
	var w wireInput
	if err := decMode.Unmarshal(data[1:], &w); err != nil {
		return Input{}, fmt.Errorf("%w: %v", guardrail.ErrMalformed, err)
	}
	doc, err := fromWireDocument(w.Guardrails)
	if err != nil {
		return Input{}, err
	}
	fill, err := fromWireFill(w.Fill)
	if err != nil {
		return Input{}, err
	}
	if err := doc.Validate(); err != nil {
		return Input{}, err
	}
	if err := fill.Validate(); err != nil {
		return Input{}, err
	}
	return Input{Guardrails: doc, Fill: fill}, nil
}

func toWireDocument(d *guardrail.Document) wireDocument {
	return wireDocument{
		OfferID:                d.OfferID[:],
		MaxDebit:               d.MaxDebit,
		MinCredit:              d.MinCredit,
		ExpiryTime:             d.ExpiryTime,
		AllowedSources:         nonNil(d.AllowedSources),
		MaxStalenessSecs:       d.MaxStalenessSecs,
		QuorumCount:            d.QuorumCount,
		QuorumTolerancePercent: d.QuorumTolerancePercent.String(),
		AllowedTakers:          nonNil(d.AllowedTakers),
		AllowedAssets:          nonNil(d.AllowedAssets),
		RequireAtomicDvP:       d.RequireAtomicDvP,
		ForbidSidePayments:     d.ForbidSidePayments,
		Nonce:                  d.Nonce,
		MaxFillSize:            d.MaxFillSize,
	}
}

func fromWireDocument(w wireDocument) (*guardrail.Document, error) {
	if len(w.OfferID) != len(guardrail.OfferID{}) {
		return nil, fmt.Errorf("%w: offer id must be 32 bytes, got %d", guardrail.ErrMalformed, len(w.OfferID))
	}
	tolerance, err := decimal.NewFromString(w.QuorumTolerancePercent)
	if err != nil {
		return nil, fmt.Errorf("%w: quorum tolerance: %v", guardrail.ErrMalformed, err)
	}
	d := &guardrail.Document{
		MaxDebit:               w.MaxDebit,
		MinCredit:              w.MinCredit,
		ExpiryTime:             w.ExpiryTime,
		AllowedSources:         emptyToNil(w.AllowedSources),
		MaxStalenessSecs:       w.MaxStalenessSecs,
		QuorumCount:            w.QuorumCount,
		QuorumTolerancePercent: tolerance,
		AllowedTakers:          emptyToNil(w.AllowedTakers),
		AllowedAssets:          emptyToNil(w.AllowedAssets),
		RequireAtomicDvP:       w.RequireAtomicDvP,
		ForbidSidePayments:     w.ForbidSidePayments,
		Nonce:                  w.Nonce,
		MaxFillSize:            w.MaxFillSize,
	}
	copy(d.OfferID[:], w.OfferID)
	return d, nil
}

func toWireFill(f *guardrail.FillEvidence) wireFill {
	feeds := make([]wireFeed, len(f.FeedEvidence))
	for i, ev := range f.FeedEvidence {
		feeds[i] = wireFeed{
			Source:     ev.Source,
			Asset:      ev.Asset,
			Price:      ev.Price.String(),
			ObservedAt: ev.ObservedAt,
			Signature:  ev.Signature,
		}
	}
	return wireFill{
		TakerID:           f.TakerID,
		FillSize:          f.FillSize,
		FillPrice:         f.FillPrice,
		FeedEvidence:      feeds,
		EvaluationTime:    f.EvaluationTime,
		TransferLegCount:  f.TransferLegCount,
		HasExtraTransfers: f.HasExtraTransfers,
	}
}

func fromWireFill(w wireFill) (*guardrail.FillEvidence, error) {
	f := &guardrail.FillEvidence{
		TakerID:           w.TakerID,
		FillSize:          w.FillSize,
		FillPrice:         w.FillPrice,
		EvaluationTime:    w.EvaluationTime,
		TransferLegCount:  w.TransferLegCount,
		HasExtraTransfers: w.HasExtraTransfers,
	}
	if len(w.FeedEvidence) > 0 {
		f.FeedEvidence = make([]guardrail.FeedEvidence, len(w.FeedEvidence))
	}
	for i, ev := range w.FeedEvidence {
		price, err := decimal.NewFromString(ev.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: feed evidence %d price: %v", guardrail.ErrMalformed, i, err)
		}
		f.FeedEvidence[i] = guardrail.FeedEvidence{
			Source:     ev.Source,
			Asset:      ev.Asset,
			Price:      price,
			ObservedAt: ev.ObservedAt,
			Signature:  ev.Signature,
		}
	}
	return f, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyToNil(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
