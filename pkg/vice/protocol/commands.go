package protocol

// Request ids of the well known commands. They are meant for fire and forget
// sends; a correlated request gets a fresh id, see Command.Renumber.
const (
	ExitID               uint32 = 1
	PingID               uint32 = 2
	QuitID               uint32 = 3
	SoftResetID          uint32 = 4
	HardResetID          uint32 = 5
	RegistersAvailableID uint32 = 6
	CheckpointListID     uint32 = 7
)

// Checkpoint trigger operations, combinable as a mask
type CheckpointOp uint8

const (
	CheckpointOp_Load  CheckpointOp = 0x01
	CheckpointOp_Store CheckpointOp = 0x02
	CheckpointOp_Exec  CheckpointOp = 0x04
)

func (op CheckpointOp) String() string {
	var s string

	for _, flag := range []struct {
		op   CheckpointOp
		name byte
	}{{CheckpointOp_Load, 'L'}, {CheckpointOp_Store, 'S'}, {CheckpointOp_Exec, 'X'}} {
		if op&flag.op != 0 {
			s += string(flag.name)
		} else {
			s += "-"
		}
	}

	return s
}

// Main memory, the only memspace this client uses
const MainMemory uint8 = 0

func boolByte(b bool) uint8 {
	if b {
		return 1
	}

	return 0
}

// Requests the registers without correlation. The emulator stops while
// answering a monitor request, so this is also how execution is stopped.
func GetRegistersCommand() *Command {
	c := NewCommandWithID(Kind_RegistersGet, NoID)
	c.Add8(MainMemory)
	return c
}

// Requests the registers with a fresh request id
func RegistersCommand() *Command {
	c := NewCommand(Kind_RegistersGet)
	c.Add8(MainMemory)
	return c
}

// Leaves the monitor and resumes execution
func ExitCommand() *Command {
	return NewCommandWithID(Kind_Exit, ExitID)
}

func PingCommand() *Command {
	return NewCommandWithID(Kind_Ping, PingID)
}

// Quits the emulator
func QuitCommand() *Command {
	return NewCommandWithID(Kind_Quit, QuitID)
}

func SoftResetCommand() *Command {
	c := NewCommandWithID(Kind_Reset, SoftResetID)
	c.Add8(0)
	return c
}

func HardResetCommand() *Command {
	c := NewCommandWithID(Kind_Reset, HardResetID)
	c.Add8(1)
	return c
}

func RegistersAvailableCommand() *Command {
	c := NewCommandWithID(Kind_RegistersAvail, RegistersAvailableID)
	c.Add8(MainMemory)
	return c
}

// Lists all checkpoints. The emulator answers with one CHECKPOINT_INFO per checkpoint.
func CheckpointListCommand() *Command {
	return NewCommandWithID(Kind_CheckpointList, CheckpointListID)
}

func InfoCommand() *Command {
	return NewCommand(Kind_ViceInfo)
}

// Reads memory in [start, end] from the given bank without side effects
func MemoryGetCommand(start, end uint16, bank uint16) *Command {
	c := NewCommand(Kind_MemoryGet)
	c.Add8(0)
	c.Add16(start)
	c.Add16(end)
	c.Add8(MainMemory)
	c.Add16(bank)
	return c
}

// Writes data at start in the given bank, with side effects
func MemorySetCommand(start uint16, data []byte, bank uint16) (*Command, error) {
	if len(data) == 0 || int(start)+len(data) > 0x10000 {
		return nil, makeError(ErrPayloadSize, "%d bytes at $%04X", len(data), start)
	}

	c := NewSizedCommand(Kind_MemorySet, 8+len(data))
	c.Add8(1)
	c.Add16(start)
	c.Add16(start + uint16(len(data)-1))
	c.Add8(MainMemory)
	c.Add16(bank)
	c.AddBytes(data)
	return c, nil
}

// Creates a checkpoint on [start, end]
func CheckpointSetCommand(start, end uint16, stop, enabled bool, op CheckpointOp) *Command {
	c := NewCommand(Kind_CheckpointSet)
	c.Add16(start)
	c.Add16(end)
	c.Add8(boolByte(stop))
	c.Add8(boolByte(enabled))
	c.Add8(uint8(op))
	c.Add8(0) // not temporary
	c.Add8(MainMemory)
	return c
}

func CheckpointGetCommand(number uint32) *Command {
	c := NewCommand(Kind_CheckpointGet)
	c.Add32(number)
	return c
}

func CheckpointDeleteCommand(number uint32) *Command {
	c := NewCommand(Kind_CheckpointDel)
	c.Add32(number)
	return c
}

func CheckpointToggleCommand(number uint32, enabled bool) *Command {
	c := NewCommand(Kind_CheckpointTgl)
	c.Add32(number)
	c.Add8(boolByte(enabled))
	return c
}

// Sets a single register
func RegisterSetCommand(id RegisterID, value uint16) *Command {
	c := NewCommand(Kind_RegistersSet)
	c.Add8(MainMemory)
	c.Add16(1)
	c.Add8(3) // item size
	c.Add8(uint8(id))
	c.Add16(value)
	return c
}

// Executes count instructions, stepping over subroutine calls if stepOver is set
func AdvanceCommand(stepOver bool, count uint16) *Command {
	c := NewCommand(Kind_Advance)
	c.Add8(boolByte(stepOver))
	c.Add16(count)
	return c
}

// Runs until the current subroutine returns
func StepOutCommand() *Command {
	return NewCommand(Kind_StepOut)
}

// Loads a program file into the emulator, running it if run is set
func AutostartCommand(path string, run bool, fileIndex uint16) (*Command, error) {
	if len(path) == 0 || len(path)+1 > 0xFF {
		return nil, makeError(ErrPayloadSize, "file name of %d bytes", len(path))
	}

	c := NewSizedCommand(Kind_Autostart, 4+len(path)+1)
	c.Add8(boolByte(run))
	c.Add16(fileIndex)
	c.Add8(uint8(len(path) + 1))
	c.AddString(path)
	return c, nil
}
