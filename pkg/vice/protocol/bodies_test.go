package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCheckpointInfo(t *testing.T) {
	info := CheckpointInfo{
		Number:   7,
		Hit:      true,
		Start:    0xC000,
		End:      0xC010,
		Stop:     true,
		Enabled:  true,
		Op:       CheckpointOp_Exec,
		HitCount: 3,
	}

	body := info.Bytes()
	require.Len(t, body, 23)
	assert.Equal(t, uint8(1), body[10])

	parsed, err := ParseCheckpointInfo(NewResponse(Kind_CheckpointInfo, ErrorCode_OK, 0x105, body))
	require.NoError(t, err)
	assert.Equal(t, info, parsed)

	_, err = ParseCheckpointInfo(NewResponse(Kind_CheckpointInfo, ErrorCode_OK, 0x105, body[:10]))
	assert.ErrorIs(t, err, ErrShortBody)

	_, err = ParseCheckpointInfo(NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x105, body))
	assert.ErrorIs(t, err, ErrUnexpected)

	_, err = ParseCheckpointInfo(NewResponse(Kind_CheckpointInfo, ErrorCode_NotExist, 0x105, nil))
	assert.ErrorIs(t, err, ErrResponse)
}

func TestParseRegisters(t *testing.T) {
	registers := Registers{Register_PC: 0xE5CF, Register_A: 0x12, Register_Flags: 0x22}

	parsed, err := ParseRegisters(NewResponse(Kind_RegistersGet, ErrorCode_OK, NoID, registers.Bytes()))

	require.NoError(t, err)
	assert.Equal(t, registers, parsed)
	assert.Equal(t, "PC=E5CF A=0012 FL=0022", parsed.String())

	truncated := registers.Bytes()
	_, err = ParseRegisters(NewResponse(Kind_RegistersGet, ErrorCode_OK, NoID, truncated[:len(truncated)-1]))
	assert.ErrorIs(t, err, ErrShortBody)
}

func TestParseRegisterDescriptors(t *testing.T) {
	body := []byte{
		2, 0,
		4, 0x00, 8, 1, 'A',
		5, 0x03, 16, 2, 'P', 'C',
	}

	descriptors, err := ParseRegisterDescriptors(NewResponse(Kind_RegistersAvail, ErrorCode_OK, RegistersAvailableID, body))

	require.NoError(t, err)
	assert.Equal(t, []RegisterDescriptor{
		{ID: Register_A, Bits: 8, Name: "A"},
		{ID: Register_PC, Bits: 16, Name: "PC"},
	}, descriptors)

	_, err = ParseRegisterDescriptors(NewResponse(Kind_RegistersAvail, ErrorCode_OK, RegistersAvailableID, body[:11]))
	assert.ErrorIs(t, err, ErrShortBody)
}

func TestParseMemory(t *testing.T) {
	data, err := ParseMemory(NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x101, []byte{3, 0, 0xA9, 0x01, 0x60}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA9, 0x01, 0x60}, data)

	_, err = ParseMemory(NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x101, []byte{4, 0, 0xA9}))
	assert.ErrorIs(t, err, ErrShortBody)

	full := make([]byte, 2+0x10000)
	data, err = ParseMemory(NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x101, full))
	require.NoError(t, err)
	assert.Len(t, data, 0x10000)
}

func TestParseInfo(t *testing.T) {
	body := []byte{4, 3, 7, 1, 0, 4, 0x39, 0x30, 0, 0}

	info, err := ParseInfo(NewResponse(Kind_ViceInfo, ErrorCode_OK, 0x101, body))

	require.NoError(t, err)
	assert.Equal(t, []byte{3, 7, 1, 0}, info.Version)
	assert.Equal(t, "3.7.1", info.VersionString())
	assert.Equal(t, uint32(12345), info.SVNRevision)

	_, err = ParseInfo(NewResponse(Kind_ViceInfo, ErrorCode_OK, 0x101, body[:3]))
	assert.ErrorIs(t, err, ErrShortBody)
}

func TestParseProgramCounter(t *testing.T) {
	pc, err := ParseProgramCounter(NewResponse(Kind_Resumed, ErrorCode_OK, NoID, []byte{0x34, 0x12}))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), pc)

	_, err = ParseProgramCounter(NewResponse(Kind_Stopped, ErrorCode_OK, NoID, []byte{0x34}))
	assert.ErrorIs(t, err, ErrShortBody)

	_, err = ParseProgramCounter(NewResponse(Kind_Ping, ErrorCode_OK, PingID, []byte{0x34, 0x12}))
	assert.ErrorIs(t, err, ErrUnexpected)
}

func TestParseRegisterID(t *testing.T) {
	id, err := ParseRegisterID("pc")
	require.NoError(t, err)
	assert.Equal(t, Register_PC, id)

	id, err = ParseRegisterID("01")
	require.NoError(t, err)
	assert.Equal(t, Register_Port1, id)

	_, err = ParseRegisterID("Q")
	assert.ErrorIs(t, err, ErrUnknownRegister)
}
