// Package codec implements multi-format value serialization with a leading
// format identifier, so stored data remains readable when the preferred
// format changes.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Format identifies a serialization format.
type Format uint8

// Serialization formats. The values double as the identifier byte that
// prefixes encoded data.
const (
	AUTO    Format = 0
	CBOR    Format = 67 // C
	JSON    Format = 74 // J
	MsgPack Format = 77 // M
)

// DefaultFormat is used by Dump when called with AUTO.
var DefaultFormat = MsgPack

// Errors.
var (
	ErrNoData        = errors.New("codec: no data")
	ErrUnknownFormat = errors.New("codec: unknown format")
)

func (f Format) String() string {
	switch f {
	case CBOR:
		return "cbor"
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// Dump serializes the given value and prefixes it with the format identifier.
func Dump(t interface{}, format Format) ([]byte, error) {
	if format == AUTO {
		format = DefaultFormat
	}

	var data []byte
	var err error
	switch format {
	case JSON:
		data, err = json.Marshal(t)
	case CBOR:
		data, err = cbor.Marshal(t)
	case MsgPack:
		data, err = msgpack.Marshal(t)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return append([]byte{uint8(format)}, data...), nil
}

// Load deserializes data produced by Dump into the given value and reports
// the format it was stored in.
func Load(data []byte, t interface{}) (Format, error) {
	if len(data) < 2 {
		return 0, ErrNoData
	}

	format := Format(data[0])
	switch format {
	case JSON:
		return format, json.Unmarshal(data[1:], t)
	case CBOR:
		return format, cbor.Unmarshal(data[1:], t)
	case MsgPack:
		return format, msgpack.Unmarshal(data[1:], t)
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}
