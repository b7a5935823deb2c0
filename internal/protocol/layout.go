package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/exploration/internal/radar"
)

// bytesPerSample is the wire size of one complex sample: an int16 real
// part followed by an int16 imaginary part, both little-endian.
const bytesPerSample = 4

// SensorLayout pins one sensor's metadata to its id within a group.
type SensorLayout struct {
	SensorID int
	Metadata radar.Metadata
}

// FrameLayout is the slicing scheme for streamed data payloads,
// established by zipping a setup response with the sensor order the
// setup command was encoded in. It is the only state the decoder
// carries between messages.
type FrameLayout struct {
	Groups         [][]SensorLayout
	TicksPerSecond int
}

// NewFrameLayout zips the metadata groups from a setup response with
// the sensor-id order from the setup command.
func NewFrameLayout(resp SetupResponse, order [][]int, ticksPerSecond int) (*FrameLayout, error) {
	if len(resp.Metadata) != len(order) {
		return nil, parseErrorf("metadata", "got %d groups, setup had %d",
			len(resp.Metadata), len(order))
	}
	layout := &FrameLayout{
		Groups:         make([][]SensorLayout, len(order)),
		TicksPerSecond: ticksPerSecond,
	}
	for gi, ids := range order {
		if len(resp.Metadata[gi]) != len(ids) {
			return nil, parseErrorf("metadata", "group %d: got %d entries, setup had %d sensors",
				gi, len(resp.Metadata[gi]), len(ids))
		}
		layout.Groups[gi] = make([]SensorLayout, len(ids))
		for si, id := range ids {
			layout.Groups[gi][si] = SensorLayout{SensorID: id, Metadata: resp.Metadata[gi][si]}
		}
	}
	return layout, nil
}

// PayloadSize returns the expected byte size of one data frame payload.
func (fl *FrameLayout) PayloadSize() int {
	total := 0
	for _, group := range fl.Groups {
		for _, sl := range group {
			total += sl.Metadata.FrameDataLength * bytesPerSample
		}
	}
	return total
}

// ExtendedMetadata returns the layout's metadata in the extended
// per-group, per-sensor-id shape.
func (fl *FrameLayout) ExtendedMetadata() []map[int]radar.Metadata {
	out := make([]map[int]radar.Metadata, len(fl.Groups))
	for gi, group := range fl.Groups {
		out[gi] = make(map[int]radar.Metadata, len(group))
		for _, sl := range group {
			out[gi][sl.SensorID] = sl.Metadata
		}
	}
	return out
}

// decodeResultMessage slices a data payload into per-sensor results.
// Any disagreement between the declared payload size, the bytes present
// and the layout is fatal: it means the stream is desynchronized.
func decodeResultMessage(info [][]radar.ResultInfo, payload []byte, declaredSize int, layout *FrameLayout) (ResultMessage, error) {
	if declaredSize != len(payload) {
		return ResultMessage{}, fmt.Errorf("%w: header declares %d bytes, %d present",
			ErrPayloadSizeMismatch, declaredSize, len(payload))
	}
	if want := layout.PayloadSize(); want != len(payload) {
		return ResultMessage{}, fmt.Errorf("%w: session layout expects %d bytes, got %d",
			ErrPayloadSizeMismatch, want, len(payload))
	}
	if len(info) != len(layout.Groups) {
		return ResultMessage{}, parseErrorf("result_info", "got %d groups, layout has %d",
			len(info), len(layout.Groups))
	}

	msg := ResultMessage{Results: make([]map[int]radar.Result, len(layout.Groups))}
	offset := 0
	for gi, group := range layout.Groups {
		if len(info[gi]) != len(group) {
			return ResultMessage{}, parseErrorf("result_info", "group %d: got %d entries, layout has %d",
				gi, len(info[gi]), len(group))
		}
		msg.Results[gi] = make(map[int]radar.Result, len(group))
		for si, sl := range group {
			numBytes := sl.Metadata.FrameDataLength * bytesPerSample
			iq := DecodeIQ(payload[offset : offset+numBytes])
			offset += numBytes
			msg.Results[gi][sl.SensorID] = radar.NewResult(
				info[gi][si], iq, sl.Metadata, layout.TicksPerSecond)
		}
	}
	return msg, nil
}

// DecodeIQ converts raw little-endian bytes to interleaved int16
// real/imag samples.
func DecodeIQ(data []byte) []int16 {
	iq := make([]int16, len(data)/2)
	for i := range iq {
		iq[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return iq
}

// EncodeIQ converts interleaved int16 samples back to wire bytes. Used
// by the mock server and the record store.
func EncodeIQ(iq []int16) []byte {
	data := make([]byte, 2*len(iq))
	for i, v := range iq {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return data
}
