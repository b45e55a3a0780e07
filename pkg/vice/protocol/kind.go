package protocol

import "fmt"

// Command kind code, shared by commands and the responses they produce
type Kind uint8

const (
	Kind_None           Kind = 0x00
	Kind_MemoryGet      Kind = 0x01
	Kind_MemorySet      Kind = 0x02
	Kind_CheckpointGet  Kind = 0x11
	Kind_CheckpointSet  Kind = 0x12
	Kind_CheckpointDel  Kind = 0x13
	Kind_CheckpointList Kind = 0x14
	Kind_CheckpointTgl  Kind = 0x15
	Kind_ConditionSet   Kind = 0x22
	Kind_RegistersGet   Kind = 0x31
	Kind_RegistersSet   Kind = 0x32
	Kind_Dump           Kind = 0x41
	Kind_Undump         Kind = 0x42
	Kind_ResourceGet    Kind = 0x51
	Kind_ResourceSet    Kind = 0x52
	// Sent by the emulator when the CPU jams
	Kind_Jam Kind = 0x61
	// Sent by the emulator when execution stops, body holds the PC
	Kind_Stopped Kind = 0x62
	// Sent by the emulator when execution resumes, body holds the PC
	Kind_Resumed        Kind = 0x63
	Kind_Advance        Kind = 0x71
	Kind_Keyboard       Kind = 0x72
	Kind_StepOut        Kind = 0x73
	Kind_Ping           Kind = 0x81
	Kind_BanksAvail     Kind = 0x82
	Kind_RegistersAvail Kind = 0x83
	Kind_DisplayGet     Kind = 0x84
	Kind_ViceInfo       Kind = 0x85
	Kind_PaletteGet     Kind = 0x91
	Kind_JoyportSet     Kind = 0xA2
	Kind_UserportSet    Kind = 0xB2
	Kind_Exit           Kind = 0xAA
	Kind_Quit           Kind = 0xBB
	Kind_Reset          Kind = 0xCC
	Kind_Autostart      Kind = 0xDD

	// Responses to checkpoint get/set/list share the checkpoint get kind
	Kind_CheckpointInfo = Kind_CheckpointGet
)

var kindNames = map[Kind]string{
	Kind_None:           "NONE",
	Kind_MemoryGet:      "MEMORY_GET",
	Kind_MemorySet:      "MEMORY_SET",
	Kind_CheckpointGet:  "CHECKPOINT_GET",
	Kind_CheckpointSet:  "CHECKPOINT_SET",
	Kind_CheckpointDel:  "CHECKPOINT_DEL",
	Kind_CheckpointList: "CHECKPOINT_LST",
	Kind_CheckpointTgl:  "CHECKPOINT_TGL",
	Kind_ConditionSet:   "CONDITION_SET",
	Kind_RegistersGet:   "REGISTERS_GET",
	Kind_RegistersSet:   "REGISTERS_SET",
	Kind_Dump:           "DUMP",
	Kind_Undump:         "UNDUMP",
	Kind_ResourceGet:    "RESOURCE_GET",
	Kind_ResourceSet:    "RESOURCE_SET",
	Kind_Jam:            "JAM",
	Kind_Stopped:        "STOPPED",
	Kind_Resumed:        "RESUMED",
	Kind_Advance:        "ADVANCE",
	Kind_Keyboard:       "KEYBOARD",
	Kind_StepOut:        "STEP_OUT",
	Kind_Ping:           "PING",
	Kind_BanksAvail:     "BANKS_AVAIL",
	Kind_RegistersAvail: "REGISTERS_AVAIL",
	Kind_DisplayGet:     "DISPLAY_GET",
	Kind_ViceInfo:       "VICE_INFO",
	Kind_PaletteGet:     "PALETTE_GET",
	Kind_JoyportSet:     "JOYPORT_SET",
	Kind_UserportSet:    "USERPORT_SET",
	Kind_Exit:           "EXIT",
	Kind_Quit:           "QUIT",
	Kind_Reset:          "RESET",
	Kind_Autostart:      "AUTOSTART",
}

// Returns true if the kind is part of the modeled command set
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Returns true for kinds the emulator sends without being asked
func (k Kind) Unsolicited() bool {
	return k == Kind_Jam || k == Kind_Stopped || k == Kind_Resumed
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("unknown(0x%02X)", uint8(k))
}
