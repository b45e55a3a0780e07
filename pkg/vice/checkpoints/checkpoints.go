// Package checkpoints mirrors the checkpoints this client created in the
// emulator. Entries are keyed by start address, so a code breakpoint and a
// memory watch cannot share an address.
package checkpoints

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
)

// Queues commands for the emulator. *transport.Transport satisfies it.
type Sender interface {
	Send(c *protocol.Command) error
}

// Client side view of an emulator checkpoint
type Checkpoint struct {
	Start   uint16
	End     uint16
	Stop    bool
	Enabled bool
	Op      protocol.CheckpointOp
	// Number assigned by the emulator, protocol.NoID until a CHECKPOINT_INFO confirms it
	Number uint32
}

// Returns true once the emulator has confirmed the checkpoint
func (c Checkpoint) Legit() bool {
	return c.Number != protocol.NoID
}

var ErrSend = errors.New("could not queue checkpoint command")

// The shadow checkpoint table.
//
// Enabling or disabling a checkpoint is not acknowledged by the emulator, so
// the Enabled flag is updated when the toggle command is queued. If that
// command is lost the flag no longer matches the emulator until the next
// CHECKPOINT_INFO for the checkpoint arrives.
type Set struct {
	sender Sender
	logger *slog.Logger

	mu      sync.Mutex
	entries map[uint16]*Checkpoint
}

func NewSet(sender Sender, logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}

	return &Set{
		sender:  sender,
		logger:  logger.With(slog.String("component", "checkpoints")),
		entries: make(map[uint16]*Checkpoint),
	}
}

// Toggles an execution breakpoint at address: removes the entry if there is
// one, creates it otherwise.
func (s *Set) Add(address uint16) error {
	return s.AddRange(address, address, true, protocol.CheckpointOp_Exec)
}

// Toggles a checkpoint on [start, end] with the given operations. An existing
// entry at start is removed instead, whatever its range.
func (s *Set) AddRange(start, end uint16, stop bool, op protocol.CheckpointOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[start]; exists {
		return s.remove(start)
	}

	if end < start {
		start, end = end, start
	}

	entry := &Checkpoint{
		Start:   start,
		End:     end,
		Stop:    stop,
		Enabled: true,
		Op:      op,
		Number:  protocol.NoID,
	}

	if err := s.send(protocol.CheckpointSetCommand(start, end, stop, true, op)); err != nil {
		return err
	}

	s.entries[start] = entry
	s.logger.Debug("checkpoint requested", slog.String("start", hex16(start)), slog.String("end", hex16(end)), slog.String("op", op.String()))
	return nil
}

// Removes the entry at address. The emulator checkpoint is deleted if it was
// confirmed. Removing a missing address does nothing.
func (s *Set) Remove(address uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(address)
}

func (s *Set) remove(address uint16) error {
	entry, exists := s.entries[address]
	if !exists {
		return nil
	}

	delete(s.entries, address)

	if !entry.Legit() {
		return nil
	}

	s.logger.Debug("checkpoint deleted", slog.String("start", hex16(address)), slog.Uint64("number", uint64(entry.Number)))
	return s.send(protocol.CheckpointDeleteCommand(entry.Number))
}

// Flips the enabled state of a confirmed checkpoint. Unconfirmed or missing
// entries are left untouched.
func (s *Set) Toggle(address uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.toggle(address)
}

func (s *Set) toggle(address uint16) error {
	entry, exists := s.entries[address]
	if !exists || !entry.Legit() {
		return nil
	}

	if err := s.send(protocol.CheckpointToggleCommand(entry.Number, !entry.Enabled)); err != nil {
		return err
	}

	entry.Enabled = !entry.Enabled
	return nil
}

// Sets the enabled state of a confirmed checkpoint
func (s *Set) Enable(address uint16, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[address]; exists && entry.Enabled != enabled {
		return s.toggle(address)
	}

	return nil
}

// Returns true if an enabled entry starts at address
func (s *Set) CheckHit(address uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[address]
	return exists && entry.Enabled
}

// Returns a copy of the entry at address
func (s *Set) Get(address uint16) (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[address]; exists {
		return *entry, true
	}

	return Checkpoint{}, false
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Calls fn for each entry in address order until it returns false. fn sees a
// snapshot taken before the first call, so it may modify the set.
func (s *Set) ForEach(fn func(address uint16, enabled bool) bool) {
	for _, entry := range s.Snapshot() {
		if !fn(entry.Start, entry.Enabled) {
			return
		}
	}
}

// Returns copies of all entries in address order
func (s *Set) Snapshot() []Checkpoint {
	s.mu.Lock()
	entries := make([]Checkpoint, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, *entry)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Start < entries[j].Start })
	return entries
}

// Reconciles a CHECKPOINT_INFO response. Entries waiting for confirmation get
// their number and enabled state. Checkpoints this client did not create, and
// duplicates of an already confirmed entry, are deleted from the emulator.
func (s *Set) ProcessInfo(r *protocol.Response) error {
	info, err := protocol.ParseCheckpointInfo(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[info.Start]

	switch {
	case !exists:
		s.logger.Debug("deleting unknown checkpoint", slog.Uint64("number", uint64(info.Number)), slog.String("start", hex16(info.Start)))
		return s.send(protocol.CheckpointDeleteCommand(info.Number))

	case entry.Legit() && entry.Number != info.Number:
		s.logger.Debug("deleting duplicated checkpoint", slog.Uint64("number", uint64(info.Number)), slog.Uint64("kept", uint64(entry.Number)))
		return s.send(protocol.CheckpointDeleteCommand(info.Number))
	}

	entry.Number = info.Number
	entry.Enabled = info.Enabled
	return nil
}

// Takes ownership of a checkpoint that already exists in the emulator, as
// listed by CHECKPOINT_INFO. Returns false if another confirmed checkpoint
// already starts at the same address.
func (s *Set) Adopt(info protocol.CheckpointInfo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[info.Start]; exists && entry.Legit() && entry.Number != info.Number {
		return false
	}

	s.entries[info.Start] = &Checkpoint{
		Start:   info.Start,
		End:     info.End,
		Stop:    info.Stop,
		Enabled: info.Enabled,
		Op:      info.Op,
		Number:  info.Number,
	}

	return true
}

// Returns true once every entry has been confirmed by the emulator
func (s *Set) Confirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if !entry.Legit() {
			return false
		}
	}

	return true
}

// Deletes every confirmed checkpoint from the emulator and clears the set
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	for address := range s.entries {
		errs = append(errs, s.remove(address))
	}

	return errors.Join(errs...)
}

// Clears the set without deleting anything from the emulator
func (s *Set) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.entries)
}

func (s *Set) send(c *protocol.Command) error {
	if err := s.sender.Send(c); err != nil {
		return utils.MakeError(ErrSend, "%v: %v", c.Kind(), err)
	}

	return nil
}

func hex16(value uint16) string {
	return utils.FormatHex(value)
}
