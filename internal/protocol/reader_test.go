package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/exploration/internal/link"
)

// scriptReceiver serves a byte stream and can inject an error at a
// chosen offset, standing in for a link mid-frame.
type scriptReceiver struct {
	buf     bytes.Buffer
	failAt  int
	failErr error
	served  int
}

func (s *scriptReceiver) Recv(n int) ([]byte, error) {
	if s.failErr != nil && s.served+n > s.failAt {
		return nil, s.failErr
	}
	if s.buf.Len() < n {
		return nil, link.ErrTimeout
	}
	s.served += n
	return s.buf.Next(n), nil
}

func frame(header string, payload []byte) []byte {
	var out bytes.Buffer
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(header)))
	out.Write(prefix[:])
	out.WriteString(header)
	out.Write(payload)
	return out.Bytes()
}

func TestReadMessage(t *testing.T) {
	r := &scriptReceiver{}
	r.buf.Write(frame(`{"status":"start"}`, nil))

	msg, err := ReadMessage(r, nil)
	require.NoError(t, err)
	require.IsType(t, StartStreamingResponse{}, msg)
}

func TestReadMessageWithPayload(t *testing.T) {
	layout := singleSensorLayout(1, 3)
	payload := EncodeIQ([]int16{1, -1, 2, -2, 3, -3})
	header := `{"status":"ok","payload_size":12,"result_info":[[{"tick":7}]]}`

	r := &scriptReceiver{}
	r.buf.Write(frame(header, payload))

	msg, err := ReadMessage(r, layout)
	require.NoError(t, err)

	result := msg.(ResultMessage)
	require.EqualValues(t, 7, result.Results[0][1].Tick)
}

func TestReadMessageImplausiblePrefix(t *testing.T) {
	r := &scriptReceiver{}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], 1<<24)
	r.buf.Write(prefix[:])
	r.buf.WriteString("junk")

	_, err := ReadMessage(r, nil)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestReadMessageTimeoutBeforeFrame(t *testing.T) {
	// Nothing arrived at all: a plain timeout, retryable.
	r := &scriptReceiver{}
	_, err := ReadMessage(r, nil)
	require.True(t, errors.Is(err, link.ErrTimeout), "got %v", err)
}

func TestReadMessageTimeoutMidFrame(t *testing.T) {
	// The prefix arrived but the header never did: the stream is
	// desynchronized, not merely slow.
	r := &scriptReceiver{}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], 18)
	r.buf.Write(prefix[:])

	_, err := ReadMessage(r, nil)
	require.True(t, errors.Is(err, ErrPayloadSizeMismatch), "got %v", err)
}

func TestReadMessageDisconnectMidFrame(t *testing.T) {
	// A disconnect stays a disconnect, mid-frame or not.
	r := &scriptReceiver{failAt: 4, failErr: link.ErrDisconnected}
	r.buf.Write(frame(`{"status":"start"}`, nil))

	_, err := ReadMessage(r, nil)
	require.True(t, errors.Is(err, link.ErrDisconnected), "got %v", err)
}

func TestReadMessageNegativePayloadSize(t *testing.T) {
	r := &scriptReceiver{}
	r.buf.Write(frame(`{"status":"ok","payload_size":-1}`, nil))

	_, err := ReadMessage(r, nil)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}
