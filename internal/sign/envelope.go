package sign

import (
	"encoding/json"
	"fmt"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
)

// Request is the envelope a caller posts. Signature covers the exact bytes of Data.
type Request struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
}

// Response is the envelope the server returns. Signature covers the exact
// bytes of Payload.
type Response struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	Signature string          `json:"signature"`
}

// Payload is the signed body of a Response. Err is null on success; on
// failure Data holds the error message.
type Payload struct {
	Err  *domain.ErrorKind `json:"err"`
	Data json.RawMessage   `json:"data"`
}

// SealRequest encodes data and signs it with the current time.
func (s *Signer) SealRequest(data any) (*Request, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode request data: %w", err)
	}
	ts := s.Now()
	return &Request{Data: raw, Timestamp: ts, Signature: s.Sign(raw, ts)}, nil
}

// SealResponse builds and signs a response payload.
func (s *Signer) SealResponse(kind *domain.ErrorKind, data any) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode response data: %w", err)
	}
	raw, err := json.Marshal(Payload{Err: kind, Data: body})
	if err != nil {
		return nil, fmt.Errorf("encode response payload: %w", err)
	}
	ts := s.Now()
	return &Response{Payload: raw, Timestamp: ts, Signature: s.Sign(raw, ts)}, nil
}

// OpenResponse verifies r and decodes its payload.
func (s *Signer) OpenResponse(r *Response) (*Payload, error) {
	if err := s.Verify(r.Payload, r.Timestamp, r.Signature); err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode response payload: %w", err)
	}
	return &p, nil
}
