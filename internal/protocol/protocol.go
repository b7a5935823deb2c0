// Package protocol implements the exploration server wire protocol: a
// 4-byte little-endian length prefix, a UTF-8 JSON header, and an
// optional raw binary payload whose size the header declares.
//
// Requests are JSON commands; responses are parsed into a closed set of
// message types dispatched on the header's status field (and, where a
// status is ambiguous, on the shape of its fields). Apart from the
// frame layout learned from the setup response, decoding is stateless.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLengthSize is the size of the frame length prefix in bytes.
const HeaderLengthSize = 4

var (
	// ErrPayloadSizeMismatch indicates the declared payload_size does
	// not match the bytes actually present. The stream is
	// desynchronized; the only recovery is a reconnect.
	ErrPayloadSizeMismatch = errors.New("protocol: payload size mismatch")
)

// ParseError reports a response that is structurally invalid for its
// declared status, naming the offending field.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("protocol: parse error in field %q", e.Field)
	}
	return fmt.Sprintf("protocol: parse error in field %q: %s", e.Field, e.Reason)
}

func parseErrorf(field, format string, args ...any) *ParseError {
	return &ParseError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// prependLength frames a JSON header with its length prefix.
func prependLength(header []byte) []byte {
	framed := make([]byte, HeaderLengthSize+len(header))
	binary.LittleEndian.PutUint32(framed, uint32(len(header)))
	copy(framed[HeaderLengthSize:], header)
	return framed
}
