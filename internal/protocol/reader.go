package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/exploration/internal/link"
)

// maxHeaderSize bounds the JSON header length; anything larger means
// the length prefix was read out of phase with the stream.
const maxHeaderSize = 1 << 20

// Receiver is the part of a link the reader needs.
type Receiver interface {
	Recv(n int) ([]byte, error)
}

// ReadMessage reads and parses one complete response frame: length
// prefix, JSON header, and payload if the header declares one.
//
// A timeout in the middle of a frame (after the prefix arrived) is
// reported as ErrPayloadSizeMismatch rather than a link timeout: the
// header promised bytes that never came, so the stream is
// desynchronized and a retry cannot help.
func ReadMessage(r Receiver, layout *FrameLayout) (Message, error) {
	prefix, err := r.Recv(HeaderLengthSize)
	if err != nil {
		return nil, err
	}
	headerLen := int(binary.LittleEndian.Uint32(prefix))
	if headerLen == 0 || headerLen > maxHeaderSize {
		return nil, parseErrorf("length prefix", "implausible header length %d", headerLen)
	}

	headerBytes, err := r.Recv(headerLen)
	if err != nil {
		return nil, midFrame(err, "header", headerLen)
	}

	var h struct {
		PayloadSize int `json:"payload_size"`
	}
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, parseErrorf("header", "malformed JSON: %v", err)
	}
	if h.PayloadSize < 0 {
		return nil, parseErrorf("payload_size", "negative value %d", h.PayloadSize)
	}

	var payload []byte
	if h.PayloadSize > 0 {
		payload, err = r.Recv(h.PayloadSize)
		if err != nil {
			return nil, midFrame(err, "payload", h.PayloadSize)
		}
	}
	return ParseMessage(headerBytes, payload, layout)
}

func midFrame(err error, part string, size int) error {
	if errors.Is(err, link.ErrTimeout) {
		return fmt.Errorf("%w: %d-byte %s never arrived", ErrPayloadSizeMismatch, size, part)
	}
	return err
}
