package protocol

import "encoding/binary"

// Default ceiling for the total size of a response frame, large enough for a full 64K memory read
const DefaultMaxResponseSize = 0x10100

// Outcome of a framing scan
type ProcessResult struct {
	// Framed response, nil if no complete response was found
	Response *Response
	// Offset where the response (or the pending partial frame) starts
	Start int
	// Offset the caller should continue from. Bytes before Next are consumed.
	Next int
	// True if a partial frame starting at Start was kept for the next scan
	Pending bool
}

// Bytes skipped as noise before Start
func (r ProcessResult) Discarded() int {
	return r.Start
}

// Scans buf for the first valid response frame.
//
// Every offset is tried in turn. A candidate header is accepted if it carries
// the magic value, its total size is below maxSize, and its kind is known.
// When a complete frame is found it is returned and Next points past it. A
// valid header whose frame is still incomplete does not stop the scan: a
// complete frame at a later offset wins, since the incomplete one may be noise
// that happens to look like a header. Only when no complete frame follows is
// the first incomplete candidate kept, with Response nil and Next equal to
// Start. When no candidate is found, Next is set so that only a trailing
// prefix that could still become a header is kept.
//
// The scan never reads past len(buf).
func Process(buf []byte, maxSize int) ProcessResult {
	if maxSize <= ResponseHeaderSize {
		maxSize = DefaultMaxResponseSize
	}

	pending := -1

	for start := 0; start < len(buf); start++ {
		remaining := len(buf) - start

		if remaining < ResponseHeaderSize {
			if pending < 0 && couldBeHeader(buf[start:]) {
				pending = start
			}

			continue
		}

		size, ok := validHeader(buf[start:], maxSize)
		if !ok {
			continue
		}

		if remaining < size {
			if pending < 0 {
				pending = start
			}

			continue
		}

		frame := buf[start : start+size]

		return ProcessResult{
			Response: &Response{
				kind:      Kind(frame[6]),
				errorCode: ErrorCode(frame[7]),
				id:        binary.LittleEndian.Uint32(frame[8:]),
				body:      append([]byte(nil), frame[ResponseHeaderSize:]...),
			},
			Start: start,
			Next:  start + size,
		}
	}

	if pending >= 0 {
		return ProcessResult{Start: pending, Next: pending, Pending: true}
	}

	return ProcessResult{Start: len(buf), Next: len(buf)}
}

// Validates a candidate header, returning the total frame size
func validHeader(candidate []byte, maxSize int) (int, bool) {
	if binary.LittleEndian.Uint16(candidate) != Magic {
		return 0, false
	}

	bodyLen := uint64(binary.LittleEndian.Uint32(candidate[2:]))
	size := bodyLen + ResponseHeaderSize

	if size >= uint64(maxSize) {
		return 0, false
	}

	if !responseKind(Kind(candidate[6])) {
		return 0, false
	}

	return int(size), true
}

// Checks whether a buffer shorter than a header may be the start of one
func couldBeHeader(partial []byte) bool {
	if partial[0] != byte(Magic&0xFF) || (len(partial) > 1 && partial[1] != byte(Magic>>8)) {
		return false
	}

	if len(partial) > 6 && !responseKind(Kind(partial[6])) {
		return false
	}

	return true
}

// The emulator never answers with kind NONE, so a zero there is treated as noise
func responseKind(kind Kind) bool {
	return kind != Kind_None && kind.Known()
}
