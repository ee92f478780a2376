// Package osc is the OSC 1.0 over TCP control protocol: messages framed with
// SLIP, JSON replies on /reply<address>, and unsolicited /update messages.
package osc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var ErrMalformed = errors.New("osc: malformed message")

func pad(n int) int {
	return (4 - n%4) % 4
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	for range pad(len(s) + 1) {
		buf = append(buf, 0)
	}
	return buf
}

// readString returns the padded string at pos and the position after it.
func readString(data []byte, pos int) (string, int, error) {
	end := pos
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end >= len(data) {
		return "", pos, fmt.Errorf("%w: unterminated string", ErrMalformed)
	}
	return string(data[pos:end]), end + 1 + pad(end-pos+1), nil
}

// Build encodes a message. Supported argument types are int32, int (sent
// as int32), int64, float32, float64, string, []byte, bool and nil.
func Build(addr string, args ...any) []byte {
	buf := appendString(nil, addr)

	tags := []byte{','}
	for _, arg := range args {
		switch v := arg.(type) {
		case int32, int:
			tags = append(tags, 'i')
		case int64:
			tags = append(tags, 'h')
		case float32:
			tags = append(tags, 'f')
		case float64:
			tags = append(tags, 'd')
		case string:
			tags = append(tags, 's')
		case []byte:
			tags = append(tags, 'b')
		case bool:
			if v {
				tags = append(tags, 'T')
			} else {
				tags = append(tags, 'F')
			}
		case nil:
			tags = append(tags, 'N')
		}
	}
	buf = appendString(buf, string(tags))

	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
		case int:
			buf = binary.BigEndian.AppendUint32(buf, uint32(int32(v)))
		case int64:
			buf = binary.BigEndian.AppendUint64(buf, uint64(v))
		case float32:
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(v))
		case float64:
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		case string:
			buf = appendString(buf, v)
		case []byte:
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
			buf = append(buf, v...)
			for range pad(len(v)) {
				buf = append(buf, 0)
			}
		}
	}
	return buf
}

// Parse decodes a message. A message with no type tag string has no
// arguments.
func Parse(data []byte) (addr string, args []any, err error) {
	if len(data) < 4 || data[0] != '/' {
		return "", nil, fmt.Errorf("%w: bad address", ErrMalformed)
	}
	addr, pos, err := readString(data, 0)
	if err != nil {
		return "", nil, err
	}
	if pos >= len(data) || data[pos] != ',' {
		return addr, nil, nil
	}
	tags, pos, err := readString(data, pos)
	if err != nil {
		return addr, nil, err
	}

	need := func(n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("%w: truncated argument", ErrMalformed)
		}
		return nil
	}
	for _, tag := range tags[1:] {
		switch tag {
		case 'i':
			if err := need(4); err != nil {
				return addr, args, err
			}
			args = append(args, int32(binary.BigEndian.Uint32(data[pos:])))
			pos += 4
		case 'f':
			if err := need(4); err != nil {
				return addr, args, err
			}
			args = append(args, math.Float32frombits(binary.BigEndian.Uint32(data[pos:])))
			pos += 4
		case 'h':
			if err := need(8); err != nil {
				return addr, args, err
			}
			args = append(args, int64(binary.BigEndian.Uint64(data[pos:])))
			pos += 8
		case 'd':
			if err := need(8); err != nil {
				return addr, args, err
			}
			args = append(args, math.Float64frombits(binary.BigEndian.Uint64(data[pos:])))
			pos += 8
		case 's':
			var s string
			if s, pos, err = readString(data, pos); err != nil {
				return addr, args, err
			}
			args = append(args, s)
		case 'b':
			if err := need(4); err != nil {
				return addr, args, err
			}
			size := int(binary.BigEndian.Uint32(data[pos:]))
			pos += 4
			if err := need(size); err != nil {
				return addr, args, err
			}
			args = append(args, append([]byte(nil), data[pos:pos+size]...))
			pos += size + pad(size)
		case 'T':
			args = append(args, true)
		case 'F':
			args = append(args, false)
		case 'N':
			args = append(args, nil)
		default:
			return addr, args, fmt.Errorf("%w: unsupported type tag %q", ErrMalformed, tag)
		}
	}
	return addr, args, nil
}
