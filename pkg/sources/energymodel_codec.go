package sources

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// Energy-model databases keep three logical tables as key prefixes.
const (
	prefixDict = "dict/"
	prefixTime = "time/"
	prefixData = "data/"
)

func dictKey(id uint32) []byte  { return fmt.Appendf(nil, "%s%08d", prefixDict, id) }
func timeKey(idx uint32) []byte { return fmt.Appendf(nil, "%s%08d", prefixTime, idx) }
func dataKey(id uint32) []byte  { return fmt.Appendf(nil, "%s%08d", prefixData, id) }

// DictEntry describes one reported variable.
type DictEntry struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	Key       string `json:"key,omitempty"`
	Units     string `json:"units,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// TrendName renders the entry as "KEY:Name [units]".
func (e DictEntry) TrendName() string {
	name := e.Name
	if e.Key != "" {
		name = e.Key + ":" + name
	}
	if e.Units != "" {
		name += " [" + e.Units + "]"
	}
	return name
}

// TimeEntry is one row of the time table. Index order is time order.
type TimeEntry struct {
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

var errShortBlock = errors.New("energy model: truncated data block")

// encodeBlock packs time indexes and XOR-chained values, then compresses.
// Layout before compression: uint32 count, count*uint32 index, count*uint64 bits.
func encodeBlock(enc *zstd.Encoder, indexes []uint32, values []float64) ([]byte, error) {
	if len(indexes) != len(values) {
		return nil, fmt.Errorf("energy model: %d indexes for %d values", len(indexes), len(values))
	}
	buf := new(bytes.Buffer)
	buf.Grow(4 + 12*len(values))
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(values)))
	_ = binary.Write(buf, binary.LittleEndian, indexes)

	var prev uint64
	for _, v := range values {
		bits := math.Float64bits(v)
		_ = binary.Write(buf, binary.LittleEndian, bits^prev)
		prev = bits
	}
	return enc.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len()/2)), nil
}

func decodeBlock(dec *zstd.Decoder, data []byte) ([]uint32, []float64, error) {
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress block: %w", err)
	}
	if len(raw) < 4 {
		return nil, nil, errShortBlock
	}
	n := int(binary.LittleEndian.Uint32(raw))
	if len(raw) != 4+12*n {
		return nil, nil, errShortBlock
	}

	indexes := make([]uint32, n)
	values := make([]float64, n)
	off := 4
	for i := range indexes {
		indexes[i] = binary.LittleEndian.Uint32(raw[off:])
		off += 4
	}
	var prev uint64
	for i := range values {
		bits := binary.LittleEndian.Uint64(raw[off:]) ^ prev
		values[i] = math.Float64frombits(bits)
		prev = bits
		off += 8
	}
	return indexes, values, nil
}
