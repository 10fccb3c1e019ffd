// Package steam is the boundary to the Steam product-information service.
//
// The service is reached through a Dialer, which performs the anonymous
// handshake and hands back a Session owned by the caller. A Session answers
// batched product-info queries with an opaque JSON document.
package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Dialer opens sessions against the product-information service
type Dialer interface {
	// OpenAnonymousSession performs an anonymous login. Failures are reported
	// as *AuthenticationError.
	OpenAnonymousSession(ctx context.Context) (Session, error)
}

// Session is an authenticated connection to the product-information service
type Session interface {
	// QueryProductInfo requests product info for all apps in a single call.
	// The ids are sent in the given order; an empty slice is passed through.
	QueryProductInfo(ctx context.Context, apps []uint32) (ProductInfo, error)

	// Close releases the session
	Close() error
}

// ProductInfo is the opaque result of a product-info query. It keeps the
// document exactly as received so that re-encoding preserves key order.
type ProductInfo struct {
	raw json.RawMessage
}

// NewProductInfo wraps a JSON document. It fails if raw is not valid JSON.
func NewProductInfo(raw []byte) (ProductInfo, error) {
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return ProductInfo{}, fmt.Errorf("product info is not valid JSON")
	}
	return ProductInfo{raw: append(json.RawMessage(nil), raw...)}, nil
}

// MustProductInfo is like NewProductInfo but panics on invalid input.
// It is intended for tests only.
func MustProductInfo(raw string) ProductInfo {
	info, err := NewProductInfo([]byte(raw))
	if err != nil {
		panic(err)
	}
	return info
}

// Raw returns the document bytes. The zero ProductInfo yields "null".
func (p ProductInfo) Raw() []byte {
	if len(p.raw) == 0 {
		return []byte("null")
	}
	return p.raw
}

// MarshalJSON implements json.Marshaler
func (p ProductInfo) MarshalJSON() ([]byte, error) {
	return p.Raw(), nil
}

// Decode unmarshals the document into v. Numbers decode as json.Number when v
// holds interface values.
func (p ProductInfo) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(p.Raw()))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode product info: %w", err)
	}
	return nil
}

// Value decodes the document into the generic form: nil, bool, json.Number,
// string, []any or map[string]any.
func (p ProductInfo) Value() (any, error) {
	var v any
	if err := p.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
