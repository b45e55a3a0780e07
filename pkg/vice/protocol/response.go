package protocol

import (
	"encoding/binary"
	"fmt"
)

// magic(2) + body length(4) + kind(1) + error(1) + request id(4)
const ResponseHeaderSize = 12

// A message received from the emulator. Responses are immutable once framed,
// so a single *Response may be shared by every consumer that needs it.
type Response struct {
	kind      Kind
	errorCode ErrorCode
	id        uint32
	body      []byte
}

// Builds a response. The body is copied.
func NewResponse(kind Kind, errorCode ErrorCode, id uint32, body []byte) *Response {
	return &Response{
		kind:      kind,
		errorCode: errorCode,
		id:        id,
		body:      append([]byte(nil), body...),
	}
}

func (r *Response) Kind() Kind {
	return r.kind
}

func (r *Response) ErrorCode() ErrorCode {
	return r.errorCode
}

func (r *Response) ID() uint32 {
	return r.id
}

// Returns true if the response answers a correlated command
func (r *Response) HasCommand() bool {
	return r.id != 0 && r.id != NoID
}

// Returns a copy of the body
func (r *Response) Body() []byte {
	return append([]byte(nil), r.body...)
}

func (r *Response) BodyLen() int {
	return len(r.body)
}

// Size of the encoded frame
func (r *Response) Size() int {
	return ResponseHeaderSize + len(r.body)
}

// Returns the byte at offset, or 0 if the body is too short
func (r *Response) Get8(offset int) uint8 {
	if offset < 0 || offset >= len(r.body) {
		return 0
	}

	return r.body[offset]
}

// Returns the little endian word at offset, or 0 if the body is too short
func (r *Response) Get16(offset int) uint16 {
	if offset < 0 || offset+2 > len(r.body) {
		return 0
	}

	return binary.LittleEndian.Uint16(r.body[offset:])
}

// Returns the little endian double word at offset, or 0 if the body is too short
func (r *Response) Get32(offset int) uint32 {
	if offset < 0 || offset+4 > len(r.body) {
		return 0
	}

	return binary.LittleEndian.Uint32(r.body[offset:])
}

// Returns a copy of length bytes starting at offset, clamped to the body
func (r *Response) Slice(offset, length int) []byte {
	if offset < 0 || offset >= len(r.body) || length <= 0 {
		return nil
	}

	end := min(offset+length, len(r.body))
	return append([]byte(nil), r.body[offset:end]...)
}

// Encodes the response into its wire representation
func (r *Response) Bytes() []byte {
	frame := make([]byte, 0, r.Size())
	frame = binary.LittleEndian.AppendUint16(frame, Magic)
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(r.body)))
	frame = append(frame, byte(r.kind), byte(r.errorCode))
	frame = binary.LittleEndian.AppendUint32(frame, r.id)
	return append(frame, r.body...)
}

func (r *Response) String() string {
	return fmt.Sprintf("%v %v id=%v body=%d bytes", r.kind, r.errorCode, FormatID(r.id), len(r.body))
}
