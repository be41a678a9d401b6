package hxlive

import (
	"errors"

	"github.com/pthm/hxlive/lib/encoding"
)

// Encoder is an alias for encoding.Encoder for convenience.
type Encoder = encoding.Encoder

// Encodable is implemented by props that encode themselves.
type Encodable = encoding.Encodable

// Decodable is implemented by props that decode themselves.
type Decodable = encoding.Decodable

// NewEncoder creates a new encoder with the given key.
func NewEncoder(key []byte) (*Encoder, error) {
	return encoding.NewEncoder(key)
}

// wrapEncodingError wraps encoding package errors with hxlive sentinel errors.
func wrapEncodingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, encoding.ErrFormat):
		return ErrInvalidFormat
	case errors.Is(err, encoding.ErrSignature):
		return ErrSignatureInvalid
	case errors.Is(err, encoding.ErrDecrypt):
		return ErrDecryptFailed
	}
	return err
}
