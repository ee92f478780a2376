package osc

import "bytes"

const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// frame wraps data in SLIP END bytes, escaping any it contains.
func frame(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, slipEnd)
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

func unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == slipEsc && i+1 < len(data) {
			switch data[i+1] {
			case slipEscEnd:
				out = append(out, slipEnd)
			case slipEscEsc:
				out = append(out, slipEsc)
			}
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}

// scanFrames is a bufio.SplitFunc yielding unescaped SLIP payloads. Empty
// frames between back-to-back END bytes are skipped.
func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && data[start] == slipEnd {
		start++
	}
	if i := bytes.IndexByte(data[start:], slipEnd); i >= 0 {
		return start + i + 1, unescape(data[start : start+i]), nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return start, nil, nil
}
