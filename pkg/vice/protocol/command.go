package protocol

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

const (
	// Magic value starting every command and response
	Magic uint16 = 0x0202
	// magic(2) + body length(4) + request id(4) + kind(1)
	CommandHeaderSize = 11
	// Default body capacity of a command
	DefaultBodySize = 0x20
	// Request id of commands that do not expect a correlated response
	NoID uint32 = 0xFFFFFFFF
	// Ids up to this value are reserved for well known commands
	ReservedIDs uint32 = 0x100
)

var lastID atomic.Uint32

func init() {
	lastID.Store(ReservedIDs)
}

// Allocates the next request id. Ids grow monotonically from ReservedIDs+1 and
// wrap back there instead of reaching NoID.
func NextID() uint32 {
	for {
		current := lastID.Load()
		next := current + 1

		if next <= ReservedIDs || next == NoID {
			next = ReservedIDs + 1
		}

		if lastID.CompareAndSwap(current, next) {
			return next
		}
	}
}

// Formats a request id for logs
func FormatID(id uint32) string {
	if id == NoID {
		return "none"
	}

	return fmt.Sprintf("0x%X", id)
}

// A request sent to the emulator. The body has a fixed capacity and Add calls
// that would overflow it are refused, so a Command always encodes to a well
// formed frame.
type Command struct {
	id       uint32
	kind     Kind
	body     []byte
	capacity int
}

// Creates a command with the default body capacity and a fresh request id
func NewCommand(kind Kind) *Command {
	return NewCommandWithID(kind, NextID())
}

// Creates a command with the default body capacity and the given request id
func NewCommandWithID(kind Kind, id uint32) *Command {
	return newCommand(kind, id, DefaultBodySize)
}

// Creates a command with a fresh request id and room for bodySize bytes
func NewSizedCommand(kind Kind, bodySize int) *Command {
	return newCommand(kind, NextID(), max(bodySize, 0))
}

func newCommand(kind Kind, id uint32, capacity int) *Command {
	return &Command{
		id:       id,
		kind:     kind,
		body:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

func (c *Command) ID() uint32 {
	return c.id
}

func (c *Command) Kind() Kind {
	return c.kind
}

func (c *Command) SetKind(kind Kind) {
	c.kind = kind
}

// Returns true if the command expects a correlated response
func (c *Command) HasID() bool {
	return c.id != 0 && c.id != NoID
}

// Returns true if the id is one of the well known command ids. Responses to
// those cannot be told apart from each other.
func (c *Command) HasReservedID() bool {
	return c.HasID() && c.id <= ReservedIDs
}

// Gives the command a fresh request id
func (c *Command) Renumber() *Command {
	c.id = NextID()
	return c
}

func (c *Command) Body() []byte {
	return c.body
}

func (c *Command) BodyLen() int {
	return len(c.body)
}

// Size of the encoded frame
func (c *Command) Size() int {
	return CommandHeaderSize + len(c.body)
}

// Maximum size of the encoded frame given the body capacity
func (c *Command) MaxSize() int {
	return CommandHeaderSize + c.capacity
}

// Remaining body capacity
func (c *Command) Free() int {
	return c.capacity - len(c.body)
}

// Clears the body so the command can be filled again. Kind and id are kept.
func (c *Command) Reset() {
	c.body = c.body[:0]
}

func (c *Command) Add8(value uint8) bool {
	if c.Free() < 1 {
		return false
	}

	c.body = append(c.body, value)
	return true
}

func (c *Command) Add16(value uint16) bool {
	if c.Free() < 2 {
		return false
	}

	c.body = binary.LittleEndian.AppendUint16(c.body, value)
	return true
}

func (c *Command) Add32(value uint32) bool {
	if c.Free() < 4 {
		return false
	}

	c.body = binary.LittleEndian.AppendUint32(c.body, value)
	return true
}

// Appends all the bytes or none of them
func (c *Command) AddBytes(data []byte) bool {
	if c.Free() < len(data) {
		return false
	}

	c.body = append(c.body, data...)
	return true
}

// Appends a null terminated string, all of it or nothing
func (c *Command) AddString(s string) bool {
	if c.Free() < len(s)+1 {
		return false
	}

	c.body = append(c.body, s...)
	c.body = append(c.body, 0)
	return true
}

// Encodes the command into its wire representation
func (c *Command) Bytes() []byte {
	frame := make([]byte, 0, c.Size())
	frame = binary.LittleEndian.AppendUint16(frame, Magic)
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(c.body)))
	frame = binary.LittleEndian.AppendUint32(frame, c.id)
	frame = append(frame, byte(c.kind))
	return append(frame, c.body...)
}

func (c *Command) String() string {
	return fmt.Sprintf("%v id=%v body=% X", c.kind, FormatID(c.id), c.body)
}

// Decodes a command frame from the start of buf, returning the command and
// the number of bytes consumed. Used by emulator fakes in tests and tools.
func DecodeCommand(buf []byte) (*Command, int, error) {
	if len(buf) < CommandHeaderSize {
		return nil, 0, makeError(ErrInvalidFrame, "%d bytes is shorter than a command header", len(buf))
	}

	if magic := binary.LittleEndian.Uint16(buf); magic != Magic {
		return nil, 0, makeError(ErrInvalidFrame, "bad magic 0x%04X", magic)
	}

	bodyLen := int(binary.LittleEndian.Uint32(buf[2:]))
	if len(buf)-CommandHeaderSize < bodyLen {
		return nil, 0, makeError(ErrInvalidFrame, "body of %d bytes is truncated", bodyLen)
	}

	c := newCommand(Kind(buf[10]), binary.LittleEndian.Uint32(buf[6:]), bodyLen)
	c.body = append(c.body, buf[CommandHeaderSize:CommandHeaderSize+bodyLen]...)

	return c, CommandHeaderSize + bodyLen, nil
}
