package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stoppedFrame(pc uint16) []byte {
	return NewResponse(Kind_Stopped, ErrorCode_OK, NoID, []byte{byte(pc), byte(pc >> 8)}).Bytes()
}

func TestProcess_SingleResponse(t *testing.T) {
	frame := NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x101, []byte{2, 0, 0xAA, 0xBB}).Bytes()

	result := Process(frame, 0)

	require.NotNil(t, result.Response)
	assert.Equal(t, 0, result.Start)
	assert.Equal(t, len(frame), result.Next)
	assert.Equal(t, Kind_MemoryGet, result.Response.Kind())
	assert.Equal(t, uint32(0x101), result.Response.ID())
	assert.True(t, result.Response.HasCommand())
	assert.Equal(t, []byte{2, 0, 0xAA, 0xBB}, result.Response.Body())
}

func TestProcess_ResyncsPastGarbage(t *testing.T) {
	frame := stoppedFrame(0xC000)
	clean := Process(frame, 0)
	require.NotNil(t, clean.Response)

	for _, garbage := range [][]byte{
		{0xFF},
		{0x02},
		{0x02, 0x02, 0x00},
		{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D},
		{0x02, 0x02, 0xFF, 0xFF, 0xFF, 0xFF, 0x62, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x02, 0x02, 0x00, 0x00, 0x00, 0x00, 0x77, 0x00, 0x00, 0x00, 0x00, 0x00},
	} {
		buf := append(append([]byte{}, garbage...), frame...)

		result := Process(buf, 0)

		require.NotNil(t, result.Response, "% X", garbage)
		assert.Equal(t, len(garbage), result.Start)
		assert.Equal(t, len(garbage), result.Discarded())
		assert.Equal(t, len(garbage)+len(frame), result.Next)
		assert.Equal(t, clean.Response, result.Response)
	}
}

func TestProcess_MultipleResponses(t *testing.T) {
	var buf []byte
	for pc := uint16(0); pc < 3; pc++ {
		buf = append(buf, stoppedFrame(0x1000+pc)...)
	}

	var pcs []uint16

	for len(buf) > 0 {
		result := Process(buf, 0)
		require.NotNil(t, result.Response)

		pc, err := ParseProgramCounter(result.Response)
		require.NoError(t, err)
		pcs = append(pcs, pc)

		buf = buf[result.Next:]
	}

	assert.Equal(t, []uint16{0x1000, 0x1001, 0x1002}, pcs)
}

func TestProcess_KeepsPartialFrame(t *testing.T) {
	frame := stoppedFrame(0xC000)

	for cut := 1; cut < len(frame); cut++ {
		buf := append([]byte{0x55, 0x66}, frame[:cut]...)

		result := Process(buf, 0)

		assert.Nil(t, result.Response, "cut %d", cut)
		assert.True(t, result.Pending, "cut %d", cut)
		assert.Equal(t, 2, result.Start, "cut %d", cut)
		assert.Equal(t, 2, result.Next, "cut %d", cut)
	}
}

func TestProcess_KeepsTrailingMagicPrefix(t *testing.T) {
	frame := stoppedFrame(0xC000)

	for _, tail := range [][]byte{{0x02}, {0x02, 0x02}} {
		buf := append(append([]byte{}, frame...), tail...)

		result := Process(buf, 0)
		require.NotNil(t, result.Response)
		assert.Equal(t, len(frame), result.Next)

		result = Process(buf[result.Next:], 0)
		assert.Nil(t, result.Response, "% X", tail)
		assert.True(t, result.Pending, "% X", tail)
		assert.Equal(t, 0, result.Start, "% X", tail)
		assert.Equal(t, 0, result.Next, "% X", tail)
	}

	result := Process([]byte{0x02, 0x03}, 0)
	assert.False(t, result.Pending)
	assert.Equal(t, 2, result.Next)
}

func TestProcess_PrefersCompleteFrameOverIncompleteHeader(t *testing.T) {
	// Looks like the header of a STOPPED response with a 0xF000 byte body
	header := []byte{0x02, 0x02, 0x00, 0xF0, 0x00, 0x00, 0x62, 0x00, 0x00, 0x00, 0x00, 0x00}
	frame := NewResponse(Kind_Ping, ErrorCode_OK, 0x101, nil).Bytes()

	result := Process(append(append([]byte{}, header...), frame...), 0)

	require.NotNil(t, result.Response)
	assert.Equal(t, Kind_Ping, result.Response.Kind())
	assert.Equal(t, uint32(0x101), result.Response.ID())
	assert.Equal(t, len(header), result.Discarded())
	assert.Equal(t, len(header)+len(frame), result.Next)

	// Nothing complete behind it: the header is kept as a partial frame
	result = Process(append(append([]byte{}, header...), frame[:5]...), 0)
	assert.Nil(t, result.Response)
	assert.True(t, result.Pending)
	assert.Equal(t, 0, result.Start)
}

func TestProcess_DiscardsNoise(t *testing.T) {
	noise := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}

	result := Process(noise, 0)

	assert.Nil(t, result.Response)
	assert.False(t, result.Pending)
	assert.Equal(t, len(noise), result.Next)
	assert.Equal(t, len(noise), result.Discarded())

	result = Process(nil, 0)
	assert.Nil(t, result.Response)
	assert.Equal(t, 0, result.Next)
}

func TestProcess_RejectsOversizedFrames(t *testing.T) {
	frame := NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x101, make([]byte, 0x200)).Bytes()

	result := Process(frame, 0x200)
	assert.Nil(t, result.Response)
	assert.False(t, result.Pending)

	result = Process(frame, 0x300)
	require.NotNil(t, result.Response)
	assert.Equal(t, 0x200, result.Response.BodyLen())
}

func TestResponse_Accessors(t *testing.T) {
	r := NewResponse(Kind_CheckpointInfo, ErrorCode_OK, 0, []byte{0x01, 0x02, 0x03, 0x04, 0x05})

	assert.False(t, r.HasCommand())
	assert.Equal(t, uint8(0x05), r.Get8(4))
	assert.Equal(t, uint8(0), r.Get8(5))
	assert.Equal(t, uint16(0x0504), r.Get16(3))
	assert.Equal(t, uint16(0), r.Get16(4))
	assert.Equal(t, uint32(0x04030201), r.Get32(0))
	assert.Equal(t, uint32(0), r.Get32(2))
	assert.Equal(t, uint8(0), r.Get8(-1))
	assert.Equal(t, []byte{0x04, 0x05}, r.Slice(3, 10))
	assert.Nil(t, r.Slice(5, 1))

	body := r.Body()
	body[0] = 0xFF
	assert.Equal(t, uint8(0x01), r.Get8(0))
}

func TestResponse_Err(t *testing.T) {
	assert.NoError(t, NewResponse(Kind_MemoryGet, ErrorCode_OK, 0x200, nil).Err())

	err := NewResponse(Kind_MemoryGet, ErrorCode_InvalidMemory, 0x200, nil).Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResponse)

	var responseErr *ResponseError
	require.ErrorAs(t, err, &responseErr)
	assert.Equal(t, ErrorCode_InvalidMemory, responseErr.Code)
	assert.Equal(t, "MEMORY_GET: MEMINVALID (request 0x200)", err.Error())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "CHECKPOINT_GET", Kind_CheckpointInfo.String())
	assert.Equal(t, "AUTOSTART", Kind_Autostart.String())
	assert.Equal(t, "unknown(0x77)", Kind(0x77).String())
	assert.False(t, Kind(0x77).Known())
	assert.True(t, Kind_Stopped.Unsolicited())
	assert.False(t, Kind_MemoryGet.Unsolicited())
	assert.Equal(t, "GENFAIL", ErrorCode_GeneralFail.String())
}
