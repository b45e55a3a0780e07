package vicetest

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/Manu343726/vicemon/pkg/vice/protocol"
)

type checkpoint struct {
	info protocol.CheckpointInfo
}

// A scripted emulator: 64K of memory, the 6502 registers and a checkpoint
// table, answering commands the way the real monitor does.
type Emulator struct {
	mu          sync.Mutex
	memory      [0x10000]byte
	registers   protocol.Registers
	checkpoints map[uint32]*checkpoint
	nextNumber  uint32
	running     bool
	autostarted []string
	resets      int
	// Version reported by VICE_INFO
	Version []byte
}

func NewEmulator() *Emulator {
	return &Emulator{
		registers: protocol.Registers{
			protocol.Register_PC:    0xE5CF,
			protocol.Register_A:     0x00,
			protocol.Register_X:     0x00,
			protocol.Register_Y:     0x0A,
			protocol.Register_SP:    0xF3,
			protocol.Register_Flags: 0x22,
		},
		checkpoints: make(map[uint32]*checkpoint),
		nextNumber:  1,
		running:     true,
		Version:     []byte{3, 7, 1, 0},
	}
}

// Adds a checkpoint as if another client had created it
func (e *Emulator) AddForeignCheckpoint(start, end uint16) protocol.CheckpointInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.addCheckpoint(start, end, true, true, protocol.CheckpointOp_Exec)
}

// Returns the checkpoints currently defined, ordered by number
func (e *Emulator) Checkpoints() []protocol.CheckpointInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]protocol.CheckpointInfo, 0, len(e.checkpoints))
	for _, cp := range e.checkpoints {
		result = append(result, cp.info)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result
}

// Returns a copy of length bytes of memory at address
func (e *Emulator) Memory(address uint16, length int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]byte, length)
	for i := range out {
		out[i] = e.memory[(int(address)+i)&0xFFFF]
	}

	return out
}

// Overwrites memory at address
func (e *Emulator) Poke(address uint16, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, b := range data {
		e.memory[(int(address)+i)&0xFFFF] = b
	}
}

func (e *Emulator) Register(id protocol.RegisterID) uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.registers[id]
}

func (e *Emulator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running
}

func (e *Emulator) Autostarted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.autostarted...)
}

func (e *Emulator) Resets() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.resets
}

// Builds a STOPPED notification at pc and marks the emulator as stopped
func (e *Emulator) Stop(pc uint16) *protocol.Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.running = false
	e.registers[protocol.Register_PC] = pc
	return e.pcEvent(protocol.Kind_Stopped)
}

func (e *Emulator) pcEvent(kind protocol.Kind) *protocol.Response {
	pc := e.registers[protocol.Register_PC]
	return protocol.NewResponse(kind, protocol.ErrorCode_OK, protocol.NoID, []byte{byte(pc), byte(pc >> 8)})
}

func (e *Emulator) addCheckpoint(start, end uint16, stop, enabled bool, op protocol.CheckpointOp) protocol.CheckpointInfo {
	info := protocol.CheckpointInfo{
		Number:  e.nextNumber,
		Start:   start,
		End:     end,
		Stop:    stop,
		Enabled: enabled,
		Op:      op,
	}

	e.checkpoints[info.Number] = &checkpoint{info: info}
	e.nextNumber++
	return info
}

func ok(c *protocol.Command, body []byte) *protocol.Response {
	return protocol.NewResponse(c.Kind(), protocol.ErrorCode_OK, c.ID(), body)
}

func fail(c *protocol.Command, code protocol.ErrorCode) *protocol.Response {
	return protocol.NewResponse(c.Kind(), code, c.ID(), nil)
}

// Handler answering commands against the emulator state
func (e *Emulator) Handle(c *protocol.Command) []*protocol.Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	body := c.Body()
	le := binary.LittleEndian

	switch c.Kind() {
	case protocol.Kind_Ping:
		return []*protocol.Response{ok(c, nil)}

	case protocol.Kind_ViceInfo:
		info := append([]byte{byte(len(e.Version))}, e.Version...)
		info = append(info, 4, 0x39, 0x30, 0, 0)
		return []*protocol.Response{ok(c, info)}

	case protocol.Kind_MemoryGet:
		if len(body) < 8 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		start, end := le.Uint16(body[1:]), le.Uint16(body[3:])
		if end < start {
			return []*protocol.Response{fail(c, protocol.ErrorCode_InvalidMemory)}
		}

		length := int(end) - int(start) + 1
		data := le.AppendUint16(nil, uint16(length))
		data = append(data, e.memory[start:int(end)+1]...)
		return []*protocol.Response{ok(c, data)}

	case protocol.Kind_MemorySet:
		if len(body) < 8 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		start, end := le.Uint16(body[1:]), le.Uint16(body[3:])
		data := body[8:]
		if end < start || len(data) != int(end)-int(start)+1 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadParam)}
		}

		copy(e.memory[start:], data)
		return []*protocol.Response{ok(c, nil)}

	case protocol.Kind_CheckpointSet:
		if len(body) < 9 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		info := e.addCheckpoint(le.Uint16(body), le.Uint16(body[2:]), body[4] != 0, body[5] != 0, protocol.CheckpointOp(body[6]))
		return []*protocol.Response{protocol.NewResponse(protocol.Kind_CheckpointInfo, protocol.ErrorCode_OK, c.ID(), info.Bytes())}

	case protocol.Kind_CheckpointGet:
		if len(body) < 4 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		cp, found := e.checkpoints[le.Uint32(body)]
		if !found {
			return []*protocol.Response{fail(c, protocol.ErrorCode_NotExist)}
		}

		return []*protocol.Response{ok(c, cp.info.Bytes())}

	case protocol.Kind_CheckpointDel:
		if len(body) < 4 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		number := le.Uint32(body)
		if _, found := e.checkpoints[number]; !found {
			return []*protocol.Response{fail(c, protocol.ErrorCode_NotExist)}
		}

		delete(e.checkpoints, number)
		return []*protocol.Response{ok(c, nil)}

	case protocol.Kind_CheckpointTgl:
		if len(body) < 5 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		cp, found := e.checkpoints[le.Uint32(body)]
		if !found {
			return []*protocol.Response{fail(c, protocol.ErrorCode_NotExist)}
		}

		cp.info.Enabled = body[4] != 0
		return []*protocol.Response{ok(c, nil)}

	case protocol.Kind_CheckpointList:
		numbers := make([]uint32, 0, len(e.checkpoints))
		for number := range e.checkpoints {
			numbers = append(numbers, number)
		}
		sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })

		var responses []*protocol.Response
		for _, number := range numbers {
			responses = append(responses, protocol.NewResponse(protocol.Kind_CheckpointInfo, protocol.ErrorCode_OK, c.ID(), e.checkpoints[number].info.Bytes()))
		}

		return append(responses, ok(c, le.AppendUint32(nil, uint32(len(numbers)))))

	case protocol.Kind_RegistersGet:
		e.running = false
		return []*protocol.Response{ok(c, e.registers.Bytes())}

	case protocol.Kind_RegistersSet:
		if len(body) < 3 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		count := int(le.Uint16(body[1:]))
		offset := 3
		for i := 0; i < count && offset+4 <= len(body); i++ {
			e.registers[protocol.RegisterID(body[offset+1])] = le.Uint16(body[offset+2:])
			offset += 1 + int(body[offset])
		}

		return []*protocol.Response{protocol.NewResponse(protocol.Kind_RegistersGet, protocol.ErrorCode_OK, c.ID(), e.registers.Bytes())}

	case protocol.Kind_RegistersAvail:
		var names []byte
		names = le.AppendUint16(names, uint16(len(protocol.RegisterOrder)))
		for _, id := range protocol.RegisterOrder {
			name := id.String()
			bits := byte(8)
			if id == protocol.Register_PC {
				bits = 16
			}
			names = append(names, byte(3+len(name)), byte(id), bits, byte(len(name)))
			names = append(names, name...)
		}

		return []*protocol.Response{ok(c, names)}

	case protocol.Kind_Advance, protocol.Kind_StepOut:
		steps := uint16(1)
		if c.Kind() == protocol.Kind_Advance && len(body) >= 3 {
			steps = max(le.Uint16(body[1:]), 1)
		}

		e.running = false
		e.registers[protocol.Register_PC] += steps
		return []*protocol.Response{ok(c, nil), e.pcEvent(protocol.Kind_Stopped)}

	case protocol.Kind_Exit:
		e.running = true
		return []*protocol.Response{ok(c, nil), e.pcEvent(protocol.Kind_Resumed)}

	case protocol.Kind_Reset:
		e.resets++
		return []*protocol.Response{ok(c, nil)}

	case protocol.Kind_Autostart:
		if len(body) < 5 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommandLen)}
		}

		nameLen := int(body[3])
		if len(body) < 4+nameLen || nameLen == 0 {
			return []*protocol.Response{fail(c, protocol.ErrorCode_BadParam)}
		}

		e.autostarted = append(e.autostarted, string(body[4:4+nameLen-1]))
		return []*protocol.Response{ok(c, nil)}

	case protocol.Kind_Quit:
		return []*protocol.Response{ok(c, nil)}
	}

	return []*protocol.Response{fail(c, protocol.ErrorCode_BadCommand)}
}
