package rejection

import (
	"encoding/json"
	"fmt"
)

// Envelope carries a Reason through JSON as {"code", "message", "details"}.
type Envelope struct {
	Reason Reason
}

type envelopeJSON struct {
	Code    Code            `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Reason == nil {
		return []byte("null"), nil
	}
	details, err := json.Marshal(e.Reason)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeJSON{
		Code:    e.Reason.Code(),
		Message: e.Reason.Message(),
		Details: details,
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Reason = nil
		return nil
	}
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decode, ok := decoders[raw.Code]
	if !ok {
		return fmt.Errorf("unknown rejection code %q", raw.Code)
	}
	reason, err := decode(raw.Details)
	if err != nil {
		return fmt.Errorf("decode %s details: %w", raw.Code, err)
	}
	e.Reason = reason
	return nil
}

var decoders = map[Code]func(json.RawMessage) (Reason, error){
	CodeOfferExpired:           decodeAs[OfferExpired],
	CodeAlreadyFilled:          decodeAs[AlreadyFilled],
	CodeOfferCancelled:         decodeAs[OfferCancelled],
	CodeStaleFeed:              decodeAs[StaleFeed],
	CodeUnauthorizedSource:     decodeAs[UnauthorizedSource],
	CodeUnauthorizedTaker:      decodeAs[UnauthorizedTaker],
	CodePriceExceedsLimit:      decodeAs[PriceExceedsLimit],
	CodeSizeExceedsMax:         decodeAs[SizeExceedsMax],
	CodeQuorumNotMet:           decodeAs[QuorumNotMet],
	CodeSidePaymentDetected:    decodeAs[SidePaymentDetected],
	CodeInvalidTransferPattern: decodeAs[InvalidTransferPattern],
}

func decodeAs[T Reason](raw json.RawMessage) (Reason, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
