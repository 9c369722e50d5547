// Package txcodec implements the transaction wire format:
//
//	[4-byte big-endian length L][L bytes UTF-8 canonical JSON][4-byte big-endian nonce]
//
// The nonce lets clients submit otherwise identical payloads as distinct
// transactions.
package txcodec

import (
	"encoding/binary"
	"errors"
	"unicode/utf8"

	"github.com/blockberries/abcistate/value"
)

const (
	lengthSize = 4
	nonceSize  = 4

	// MaxPayloadSize bounds the declared payload length accepted by Decode.
	MaxPayloadSize = 4 << 20
)

// ErrInvalidEncoding is returned for every malformed buffer. The cause is
// deliberately not distinguished.
var ErrInvalidEncoding = errors.New("invalid transaction encoding")

// Tx is a decoded transaction.
type Tx struct {
	Nonce   uint32
	Payload value.Value
}

// Encode frames payload with nonce.
func Encode(payload value.Value, nonce uint32) ([]byte, error) {
	body, err := value.Canonical(payload)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxPayloadSize {
		return nil, errors.New("transaction payload too large")
	}
	buf := make([]byte, lengthSize+len(body)+nonceSize)
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[lengthSize:], body)
	binary.BigEndian.PutUint32(buf[lengthSize+len(body):], nonce)
	return buf, nil
}

// Decode parses a framed transaction. The buffer must be exactly
// 4+L+4 bytes long.
func Decode(buf []byte) (Tx, error) {
	if len(buf) < lengthSize+nonceSize {
		return Tx{}, ErrInvalidEncoding
	}
	l := binary.BigEndian.Uint32(buf)
	if l > MaxPayloadSize || uint64(len(buf)) != uint64(lengthSize)+uint64(l)+nonceSize {
		return Tx{}, ErrInvalidEncoding
	}
	body := buf[lengthSize : lengthSize+int(l)]
	if !utf8.Valid(body) {
		return Tx{}, ErrInvalidEncoding
	}
	payload, err := value.Parse(body)
	if err != nil {
		return Tx{}, ErrInvalidEncoding
	}
	return Tx{
		Nonce:   binary.BigEndian.Uint32(buf[lengthSize+int(l):]),
		Payload: payload,
	}, nil
}
