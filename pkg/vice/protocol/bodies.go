package protocol

import (
	"fmt"
	"strings"
)

func expect(r *Response, kind Kind, minBody int) error {
	if r.Kind() != kind {
		return makeError(ErrUnexpected, "expected %v, got %v", kind, r.Kind())
	}

	if err := r.Err(); err != nil {
		return err
	}

	if r.BodyLen() < minBody {
		return makeError(ErrShortBody, "%v needs %d bytes, got %d", kind, minBody, r.BodyLen())
	}

	return nil
}

// Body of a CHECKPOINT_INFO response
type CheckpointInfo struct {
	Number       uint32
	Hit          bool
	Start        uint16
	End          uint16
	Stop         bool
	Enabled      bool
	Op           CheckpointOp
	Temporary    bool
	HitCount     uint32
	IgnoreCount  uint32
	HasCondition bool
	Memspace     uint8
}

const checkpointInfoSize = 23

func ParseCheckpointInfo(r *Response) (CheckpointInfo, error) {
	if err := expect(r, Kind_CheckpointInfo, checkpointInfoSize); err != nil {
		return CheckpointInfo{}, err
	}

	return CheckpointInfo{
		Number:       r.Get32(0),
		Hit:          r.Get8(4) != 0,
		Start:        r.Get16(5),
		End:          r.Get16(7),
		Stop:         r.Get8(9) != 0,
		Enabled:      r.Get8(10) != 0,
		Op:           CheckpointOp(r.Get8(11)),
		Temporary:    r.Get8(12) != 0,
		HitCount:     r.Get32(13),
		IgnoreCount:  r.Get32(17),
		HasCondition: r.Get8(21) != 0,
		Memspace:     r.Get8(22),
	}, nil
}

// Encodes a CHECKPOINT_INFO body, used by emulator fakes
func (c CheckpointInfo) Bytes() []byte {
	cmd := NewSizedCommand(Kind_CheckpointInfo, checkpointInfoSize)
	cmd.Add32(c.Number)
	cmd.Add8(boolByte(c.Hit))
	cmd.Add16(c.Start)
	cmd.Add16(c.End)
	cmd.Add8(boolByte(c.Stop))
	cmd.Add8(boolByte(c.Enabled))
	cmd.Add8(uint8(c.Op))
	cmd.Add8(boolByte(c.Temporary))
	cmd.Add32(c.HitCount)
	cmd.Add32(c.IgnoreCount)
	cmd.Add8(boolByte(c.HasCondition))
	cmd.Add8(c.Memspace)
	return cmd.Body()
}

// A register value from a REGISTERS_GET response
type RegisterValue struct {
	ID    RegisterID
	Value uint16
}

// Register values by id
type Registers map[RegisterID]uint16

func (r Registers) String() string {
	var parts []string

	for _, id := range RegisterOrder {
		if value, ok := r[id]; ok {
			parts = append(parts, fmt.Sprintf("%v=%04X", id, value))
		}
	}

	return strings.Join(parts, " ")
}

// Parses the body of a REGISTERS_GET response: u16 count followed by
// {u8 size, u8 id, u16 value} items. Items are walked by their declared size.
func ParseRegisters(r *Response) (Registers, error) {
	if err := expect(r, Kind_RegistersGet, 2); err != nil {
		return nil, err
	}

	count := int(r.Get16(0))
	registers := make(Registers, count)
	offset := 2

	for i := 0; i < count; i++ {
		if offset+4 > r.BodyLen() {
			return registers, makeError(ErrShortBody, "register %d of %d", i, count)
		}

		size := int(r.Get8(offset))
		registers[RegisterID(r.Get8(offset+1))] = r.Get16(offset + 2)
		offset += 1 + max(size, 3)
	}

	return registers, nil
}

// Encodes a REGISTERS_GET body, used by emulator fakes
func (r Registers) Bytes() []byte {
	cmd := NewSizedCommand(Kind_RegistersGet, 2+4*len(r))
	cmd.Add16(uint16(len(r)))

	for _, id := range RegisterOrder {
		if value, ok := r[id]; ok {
			cmd.Add8(3)
			cmd.Add8(uint8(id))
			cmd.Add16(value)
		}
	}

	return cmd.Body()
}

// A register description from a REGISTERS_AVAIL response
type RegisterDescriptor struct {
	ID   RegisterID `yaml:"id"`
	Bits uint8      `yaml:"bits"`
	Name string     `yaml:"name"`
}

// Parses the body of a REGISTERS_AVAIL response: u16 count followed by
// {u8 size, u8 id, u8 bits, u8 name length, name} items.
func ParseRegisterDescriptors(r *Response) ([]RegisterDescriptor, error) {
	if err := expect(r, Kind_RegistersAvail, 2); err != nil {
		return nil, err
	}

	count := int(r.Get16(0))
	descriptors := make([]RegisterDescriptor, 0, count)
	offset := 2

	for i := 0; i < count; i++ {
		if offset+4 > r.BodyLen() {
			return descriptors, makeError(ErrShortBody, "register descriptor %d of %d", i, count)
		}

		size := int(r.Get8(offset))
		nameLen := int(r.Get8(offset + 3))

		if offset+4+nameLen > r.BodyLen() {
			return descriptors, makeError(ErrShortBody, "register descriptor %d name", i)
		}

		descriptors = append(descriptors, RegisterDescriptor{
			ID:   RegisterID(r.Get8(offset + 1)),
			Bits: r.Get8(offset + 2),
			Name: string(r.Slice(offset+4, nameLen)),
		})

		offset += 1 + max(size, 3+nameLen)
	}

	return descriptors, nil
}

// Parses the body of a MEMORY_GET response: u16 length followed by the data
func ParseMemory(r *Response) ([]byte, error) {
	if err := expect(r, Kind_MemoryGet, 2); err != nil {
		return nil, err
	}

	length := int(r.Get16(0))

	// A full 64K read reports a length of 0
	if length == 0 && r.BodyLen() > 2 {
		length = r.BodyLen() - 2
	}

	if r.BodyLen() < 2+length {
		return nil, makeError(ErrShortBody, "memory block of %d bytes, got %d", length, r.BodyLen()-2)
	}

	return r.Slice(2, length), nil
}

// Body of a VICE_INFO response
type Info struct {
	// Version components, most significant first
	Version     []byte
	SVNRevision uint32
}

// Formats the version as major.minor.patch, ignoring the build component
func (i Info) VersionString() string {
	parts := make([]string, 3)

	for n := range parts {
		var v byte
		if n < len(i.Version) {
			v = i.Version[n]
		}

		parts[n] = fmt.Sprint(v)
	}

	return strings.Join(parts, ".")
}

// Parses the body of a VICE_INFO response: u8 version length, version bytes,
// u8 revision length, revision
func ParseInfo(r *Response) (Info, error) {
	if err := expect(r, Kind_ViceInfo, 1); err != nil {
		return Info{}, err
	}

	versionLen := int(r.Get8(0))
	if r.BodyLen() < 1+versionLen+1 {
		return Info{}, makeError(ErrShortBody, "version of %d bytes", versionLen)
	}

	info := Info{Version: r.Slice(1, versionLen)}

	if revisionLen := int(r.Get8(1 + versionLen)); revisionLen >= 4 {
		info.SVNRevision = r.Get32(2 + versionLen)
	}

	return info, nil
}

// Returns the program counter carried by STOPPED, RESUMED and JAM notifications
func ParseProgramCounter(r *Response) (uint16, error) {
	if !r.Kind().Unsolicited() {
		return 0, makeError(ErrUnexpected, "%v does not carry a program counter", r.Kind())
	}

	if r.BodyLen() < 2 {
		return 0, makeError(ErrShortBody, "%v needs 2 bytes, got %d", r.Kind(), r.BodyLen())
	}

	return r.Get16(0), nil
}
