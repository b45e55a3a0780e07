package session

import (
	"context"
	"time"

	"github.com/Manu343726/vicemon/pkg/vice/checkpoints"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Masterminds/semver/v3"
)

// Reads length bytes starting at start. A read may wrap past $FFFF only up to
// the end of the address space.
func (s *Session) ReadMemory(ctx context.Context, start uint16, length int) ([]byte, error) {
	if length <= 0 || int(start)+length > 0x10000 {
		return nil, makeError(ErrInvalidRange, "%d bytes at $%04X", length, start)
	}

	r, err := s.Request(ctx, protocol.MemoryGetCommand(start, start+uint16(length-1), 0))
	if err != nil {
		return nil, err
	}

	return protocol.ParseMemory(r)
}

func (s *Session) WriteMemory(ctx context.Context, start uint16, data []byte) error {
	c, err := protocol.MemorySetCommand(start, data, 0)
	if err != nil {
		return err
	}

	_, err = s.Request(ctx, c)
	return err
}

func (s *Session) GetRegisters(ctx context.Context) (protocol.Registers, error) {
	r, err := s.Request(ctx, protocol.RegistersCommand())
	if err != nil {
		return nil, err
	}

	return protocol.ParseRegisters(r)
}

// Sets a register and returns the register values after the change
func (s *Session) SetRegister(ctx context.Context, id protocol.RegisterID, value uint16) (protocol.Registers, error) {
	r, err := s.Request(ctx, protocol.RegisterSetCommand(id, value))
	if err != nil {
		return nil, err
	}

	return protocol.ParseRegisters(r)
}

func (s *Session) RegistersAvailable(ctx context.Context) ([]protocol.RegisterDescriptor, error) {
	r, err := s.Request(ctx, protocol.RegistersAvailableCommand())
	if err != nil {
		return nil, err
	}

	return protocol.ParseRegisterDescriptors(r)
}

// Executes count instructions, stepping over subroutine calls if over is set.
// The emulator stays stopped afterwards.
func (s *Session) Step(ctx context.Context, over bool, count uint16) error {
	s.requestStop()

	_, err := s.Request(ctx, protocol.AdvanceCommand(over, max(count, 1)))
	return err
}

// Runs until the current subroutine returns
func (s *Session) StepOut(ctx context.Context) error {
	s.requestStop()

	_, err := s.Request(ctx, protocol.StepOutCommand())
	return err
}

// Stops the emulator. The stop completes asynchronously, see OnStopped.
func (s *Session) Stop() error {
	s.requestStop()
	return s.link.Send(protocol.GetRegistersCommand())
}

func (s *Session) requestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wantStopped = true
}

// Resumes execution if the emulator is stopped
func (s *Session) Resume() error {
	s.mu.Lock()
	stopped := s.state == State_Stopped
	s.wantStopped = false
	s.mu.Unlock()

	if !stopped {
		return nil
	}

	return s.link.Send(protocol.ExitCommand())
}

func (s *Session) Reset(ctx context.Context, hard bool) error {
	c := protocol.SoftResetCommand()
	if hard {
		c = protocol.HardResetCommand()
	}

	_, err := s.Request(ctx, c)
	return err
}

// Round trip time of a ping
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	if _, err := s.Request(ctx, protocol.PingCommand()); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

// Loads and optionally runs a program file on the emulator host
func (s *Session) Autostart(ctx context.Context, path string, run bool) error {
	c, err := protocol.AutostartCommand(path, run, 0)
	if err != nil {
		return err
	}

	_, err = s.Request(ctx, c)
	return err
}

func (s *Session) Info(ctx context.Context) (protocol.Info, error) {
	r, err := s.Request(ctx, protocol.InfoCommand())
	if err != nil {
		return protocol.Info{}, err
	}

	return protocol.ParseInfo(r)
}

// Queries the emulator version and checks it against a semver constraint such
// as ">= 3.5".
func (s *Session) CheckVersion(ctx context.Context, constraint string) (*semver.Version, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, err
	}

	info, err := s.Info(ctx)
	if err != nil {
		return nil, err
	}

	version, err := semver.NewVersion(info.VersionString())
	if err != nil {
		return nil, makeError(ErrUnsupportedVersion, "%q: %v", info.VersionString(), err)
	}

	if !c.Check(version) {
		return version, makeError(ErrUnsupportedVersion, "%v does not satisfy %q", version, constraint)
	}

	return version, nil
}

// Lists the checkpoints defined in the emulator. Checkpoints this session did
// not create are deleted as a side effect, see checkpoints.Set.ProcessInfo.
func (s *Session) ListCheckpoints(ctx context.Context) ([]protocol.CheckpointInfo, error) {
	var infos []protocol.CheckpointInfo

	_, err := s.request(ctx, protocol.CheckpointListCommand(), func(r *protocol.Response) {
		if info, err := protocol.ParseCheckpointInfo(r); err == nil {
			infos = append(infos, info)
		}
	})

	return infos, err
}

// Lists the checkpoints defined in the emulator and takes ownership of them,
// so they can be toggled or deleted through this session.
func (s *Session) AdoptCheckpoints(ctx context.Context) ([]protocol.CheckpointInfo, error) {
	var infos []protocol.CheckpointInfo

	_, err := s.request(ctx, protocol.CheckpointListCommand(), func(r *protocol.Response) {
		if info, err := protocol.ParseCheckpointInfo(r); err == nil && s.checkpoints.Adopt(info) {
			infos = append(infos, info)
		}
	})

	return infos, err
}

// Polls until the emulator confirmed every checkpoint of the session
func (s *Session) WaitCheckpoints(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.Poll()

		if s.checkpoints.Confirmed() {
			return nil
		}

		select {
		case <-ctx.Done():
			return makeError(ctx.Err(), "%d checkpoints not confirmed", s.checkpoints.Len())
		case <-ticker.C:
		}
	}
}

// Adds an execution breakpoint at address, or removes the one already there
func (s *Session) ToggleBreakpoint(address uint16) error {
	return s.checkpoints.Add(address)
}

// Enables or disables the breakpoint at address
func (s *Session) EnableBreakpoint(address uint16, enabled bool) error {
	return s.checkpoints.Enable(address, enabled)
}

// Adds a checkpoint on [start, end], or removes the one starting at start
func (s *Session) WatchRange(start, end uint16, op protocol.CheckpointOp, stop bool) error {
	return s.checkpoints.AddRange(start, end, stop, op)
}

// Adds execution breakpoints at every address that does not have a
// checkpoint yet
func (s *Session) SetBreakpoints(addresses []uint16) error {
	for _, address := range addresses {
		if _, exists := s.checkpoints.Get(address); exists {
			continue
		}

		if err := s.checkpoints.Add(address); err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) Breakpoints() []checkpoints.Checkpoint {
	return s.checkpoints.Snapshot()
}
