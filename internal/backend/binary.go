package backend

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
)

// binaryCodec writes a compact tagged encoding of Document.Value():
// the magic, then one tag byte per value followed by its payload.
// Integers are zig-zag varints, floats little-endian IEEE bits, strings and
// containers carry a uvarint length. Object keys are written sorted.
type binaryCodec struct{}

var binaryMagic = []byte("CALBTC\x00\x01")

const (
	tagString byte = iota + 1
	tagInt
	tagFloat
	tagFalse
	tagTrue
	tagList
	tagObject
)

// maxBinaryDepth bounds nesting when decoding untrusted files.
const maxBinaryDepth = 64

func (binaryCodec) ext() string { return ".dat" }

func (binaryCodec) marshal(doc schema.Document) ([]byte, error) {
	buf := append([]byte(nil), binaryMagic...)
	return appendBinary(buf, doc.Value())
}

func appendBinary(buf []byte, v schema.Value) ([]byte, error) {
	var err error
	switch val := v.(type) {
	case schema.String:
		buf = append(buf, tagString)
		buf = appendBinaryString(buf, string(val))
	case schema.Int:
		buf = append(buf, tagInt)
		buf = binary.AppendVarint(buf, int64(val))
	case schema.Float:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil, fmt.Errorf("non-finite float is not serializable: %v", float64(val))
		}
		buf = append(buf, tagFloat)
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(val)))
	case schema.Bool:
		if val {
			buf = append(buf, tagTrue)
		} else {
			buf = append(buf, tagFalse)
		}
	case schema.List:
		buf = append(buf, tagList)
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		for i, elem := range val {
			if buf, err = appendBinary(buf, elem); err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case schema.Object:
		buf = append(buf, tagObject)
		buf = binary.AppendUvarint(buf, uint64(len(val)))
		for _, k := range val.SortedKeys() {
			buf = appendBinaryString(buf, k)
			if buf, err = appendBinary(buf, val[k]); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	return buf, nil
}

func appendBinaryString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func (binaryCodec) unmarshal(data []byte) (schema.Document, error) {
	if !bytes.HasPrefix(data, binaryMagic) {
		return schema.Document{}, calerr.Incompatible("binary", "not a calibration data file")
	}
	r := bytes.NewReader(data[len(binaryMagic):])
	v, err := readBinary(r, 0)
	if err != nil {
		return schema.Document{}, calerr.Incompatible("binary", "corrupt data: %v", err)
	}
	if r.Len() != 0 {
		return schema.Document{}, calerr.Incompatible("binary", "%d trailing bytes", r.Len())
	}
	obj, ok := v.(schema.Object)
	if !ok {
		return schema.Document{}, calerr.Incompatible("binary", "top level is %T, not an object", v)
	}
	return schema.DocumentFromValue(obj)
}

func readBinary(r *bytes.Reader, depth int) (schema.Value, error) {
	if depth > maxBinaryDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxBinaryDepth)
	}
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagString:
		s, err := readBinaryString(r)
		return schema.String(s), err
	case tagInt:
		i, err := binary.ReadVarint(r)
		return schema.Int(i), err
	case tagFloat:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return nil, err
		}
		return schema.Float(math.Float64frombits(bits)), nil
	case tagFalse:
		return schema.Bool(false), nil
	case tagTrue:
		return schema.Bool(true), nil
	case tagList:
		n, err := readBinaryLen(r)
		if err != nil {
			return nil, err
		}
		l := make(schema.List, 0, n)
		for i := range n {
			v, err := readBinary(r, depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l = append(l, v)
		}
		return l, nil
	case tagObject:
		n, err := readBinaryLen(r)
		if err != nil {
			return nil, err
		}
		obj := make(schema.Object, n)
		for range n {
			k, err := readBinaryString(r)
			if err != nil {
				return nil, err
			}
			v, err := readBinary(r, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = v
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown tag 0x%02x", tag)
	}
}

// readBinaryLen reads a length and checks it against the remaining input;
// every element takes at least one byte.
func readBinaryLen(r *bytes.Reader) (int, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}

func readBinaryString(r *bytes.Reader) (string, error) {
	n, err := readBinaryLen(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
