package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Manu343726/vicemon/pkg/vice/transport"
	"github.com/Manu343726/vicemon/pkg/vice/vicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func dial(t *testing.T, address string) *Session {
	t.Helper()

	s, err := Dial(context.Background(), Options{
		Transport: transport.Options{
			Address:        address,
			ReconnectDelay: 10 * time.Millisecond,
			SendWait:       time.Millisecond,
			ReadTimeout:    time.Millisecond,
		},
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Close(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, s.WaitConnected(ctx))

	return s
}

func connected(t *testing.T) (*vicetest.Emulator, *vicetest.Server, *Session) {
	t.Helper()

	emulator := vicetest.NewEmulator()
	server := vicetest.NewServer(t, emulator.Handle)
	return emulator, server, dial(t, server.Addr())
}

func timeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)
	return ctx
}

// Polls s until cond holds
func eventually(t *testing.T, s *Session, cond func() bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		s.Poll()
		return cond()
	}, waitFor, tick)
}

type stopRecorder struct {
	mu     sync.Mutex
	events []StopEvent
}

func (r *stopRecorder) record(event StopEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *stopRecorder) get() []StopEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]StopEvent(nil), r.events...)
}

func TestSession_ConnectsRunning(t *testing.T) {
	emulator := vicetest.NewEmulator()
	server := vicetest.NewServer(t, emulator.Handle)

	s, err := Dial(context.Background(), Options{
		Transport:    transport.Options{Address: server.Addr(), SendWait: time.Millisecond, ReadTimeout: time.Millisecond},
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close(timeout(t))

	connections := 0
	s.OnConnected(func() { connections++ })

	require.NoError(t, s.WaitConnected(timeout(t)))
	assert.Equal(t, State_Running, s.State())
	assert.Equal(t, 1, connections)

	s.Poll()
	assert.Equal(t, 1, connections)
}

func TestSession_Memory(t *testing.T) {
	emulator, _, s := connected(t)
	emulator.Poke(0xC000, []byte{0xA9, 0x01, 0x60})

	data, err := s.ReadMemory(timeout(t), 0xC000, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA9, 0x01, 0x60}, data)

	require.NoError(t, s.WriteMemory(timeout(t), 0x0400, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, emulator.Memory(0x0400, 4))

	all, err := s.ReadMemory(timeout(t), 0x0000, 0x10000)
	require.NoError(t, err)
	assert.Len(t, all, 0x10000)
	assert.Equal(t, byte(0xA9), all[0xC000])
}

func TestSession_MemoryInvalidRange(t *testing.T) {
	_, _, s := connected(t)

	_, err := s.ReadMemory(timeout(t), 0xFFFF, 2)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = s.ReadMemory(timeout(t), 0x1000, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)

	err = s.WriteMemory(timeout(t), 0x1000, nil)
	assert.ErrorIs(t, err, protocol.ErrPayloadSize)
}

func TestSession_Registers(t *testing.T) {
	emulator, _, s := connected(t)

	registers, err := s.GetRegisters(timeout(t))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xE5CF), registers[protocol.Register_PC])
	assert.Equal(t, registers, s.Registers())

	registers, err = s.SetRegister(timeout(t), protocol.Register_A, 0x42)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x42), registers[protocol.Register_A])
	assert.Equal(t, uint16(0x42), emulator.Register(protocol.Register_A))

	descriptors, err := s.RegistersAvailable(timeout(t))
	require.NoError(t, err)
	require.Len(t, descriptors, len(protocol.RegisterOrder))
}

func TestSession_InfoAndVersion(t *testing.T) {
	_, _, s := connected(t)

	info, err := s.Info(timeout(t))
	require.NoError(t, err)
	assert.Equal(t, "3.7.1", info.VersionString())

	version, err := s.CheckVersion(timeout(t), ">= 3.5")
	require.NoError(t, err)
	assert.Equal(t, "3.7.1", version.String())

	_, err = s.CheckVersion(timeout(t), ">= 4.0")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = s.CheckVersion(timeout(t), "not a constraint")
	assert.Error(t, err)
}

func TestSession_PingResetAutostart(t *testing.T) {
	emulator, _, s := connected(t)

	rtt, err := s.Ping(timeout(t))
	require.NoError(t, err)
	assert.Positive(t, rtt)

	require.NoError(t, s.Reset(timeout(t), true))
	assert.Equal(t, 1, emulator.Resets())

	require.NoError(t, s.Autostart(timeout(t), "game.prg", true))
	assert.Equal(t, []string{"game.prg"}, emulator.Autostarted())
}

func TestSession_ErrorResponse(t *testing.T) {
	_, _, s := connected(t)

	r, err := s.Request(timeout(t), protocol.CheckpointGetCommand(99))
	require.Error(t, err)
	require.NotNil(t, r)

	var responseErr *protocol.ResponseError
	require.ErrorAs(t, err, &responseErr)
	assert.Equal(t, protocol.ErrorCode_NotExist, responseErr.Code)
	assert.ErrorIs(t, err, protocol.ErrResponse)
}

func TestSession_RequestNeedsID(t *testing.T) {
	_, _, s := connected(t)

	_, err := s.Request(timeout(t), protocol.GetRegistersCommand())
	assert.ErrorIs(t, err, ErrUncorrelated)
}

func TestSession_RequestTimesOut(t *testing.T) {
	server := vicetest.NewServer(t, nil)
	s := dial(t, server.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Ping(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.mu.Lock()
	assert.Empty(t, s.pending)
	s.mu.Unlock()
}

func TestSession_BreakpointHitStops(t *testing.T) {
	emulator, server, s := connected(t)
	stops := &stopRecorder{}
	s.OnStopped(stops.record)

	require.NoError(t, s.ToggleBreakpoint(0xC000))
	eventually(t, s, func() bool {
		cp, ok := s.Checkpoints().Get(0xC000)
		return ok && cp.Legit()
	})

	server.PushResponse(emulator.Stop(0xC000))
	eventually(t, s, func() bool { return s.State() == State_Stopped })

	assert.Equal(t, []StopEvent{{PC: 0xC000, Reason: StopReason_Breakpoint}}, stops.get())
	assert.Equal(t, uint16(0xC000), s.PC())
	assert.Empty(t, server.CommandsOfKind(protocol.Kind_Exit))
}

func TestSession_UnrequestedStopResumes(t *testing.T) {
	emulator, server, s := connected(t)
	stops := &stopRecorder{}
	s.OnStopped(stops.record)

	server.PushResponse(emulator.Stop(0x1234))
	eventually(t, s, func() bool { return len(server.CommandsOfKind(protocol.Kind_Exit)) == 1 })
	eventually(t, s, emulator.Running)

	assert.Equal(t, State_Running, s.State())
	assert.Empty(t, stops.get())
}

func TestSession_StopAndResume(t *testing.T) {
	emulator, server, s := connected(t)
	stops := &stopRecorder{}
	s.OnStopped(stops.record)

	require.NoError(t, s.Stop())
	eventually(t, s, func() bool { return !emulator.Running() })
	assert.Equal(t, State_Stopped, s.State())

	server.PushResponse(emulator.Stop(0x1000))
	eventually(t, s, func() bool { return len(stops.get()) == 1 })
	assert.Equal(t, StopEvent{PC: 0x1000, Reason: StopReason_Requested}, stops.get()[0])
	assert.Empty(t, server.CommandsOfKind(protocol.Kind_Exit))

	require.NoError(t, s.Resume())
	eventually(t, s, emulator.Running)
	s.Poll()
	assert.Equal(t, State_Running, s.State())
}

func TestSession_ResumeWhileRunningDoesNothing(t *testing.T) {
	_, server, s := connected(t)

	require.NoError(t, s.Resume())
	s.Poll()

	assert.Empty(t, server.CommandsOfKind(protocol.Kind_Exit))
}

func TestSession_Step(t *testing.T) {
	emulator, _, s := connected(t)
	stops := &stopRecorder{}
	s.OnStopped(stops.record)

	require.NoError(t, s.Step(timeout(t), false, 3))
	eventually(t, s, func() bool { return len(stops.get()) == 1 })

	assert.Equal(t, StopEvent{PC: 0xE5CF + 3, Reason: StopReason_Requested}, stops.get()[0])
	assert.Equal(t, State_Stopped, s.State())
	assert.False(t, emulator.Running())

	require.NoError(t, s.StepOut(timeout(t)))
	eventually(t, s, func() bool { return len(stops.get()) == 2 })
	assert.Equal(t, State_Stopped, s.State())
}

func TestSession_Jam(t *testing.T) {
	_, server, s := connected(t)
	stops := &stopRecorder{}
	s.OnStopped(stops.record)

	server.PushResponse(protocol.NewResponse(protocol.Kind_Jam, protocol.ErrorCode_OK, protocol.NoID, []byte{0x02, 0x08}))
	eventually(t, s, func() bool { return s.State() == State_Stopped })

	assert.Equal(t, []StopEvent{{PC: 0x0802, Reason: StopReason_Jam}}, stops.get())
	assert.Empty(t, server.CommandsOfKind(protocol.Kind_Exit))
}

func TestSession_GenericHandlerGetsUncorrelatedResponses(t *testing.T) {
	_, server, s := connected(t)

	var mu sync.Mutex
	var kinds []protocol.Kind
	s.OnResponse(func(r *protocol.Response) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, r.Kind())
	})

	_, err := s.Ping(timeout(t))
	require.NoError(t, err)

	server.PushResponse(protocol.NewResponse(protocol.Kind_Resumed, protocol.ErrorCode_OK, protocol.NoID, []byte{0, 0}))
	eventually(t, s, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []protocol.Kind{protocol.Kind_Resumed}, kinds)
}

func TestSession_ListCheckpointsDeletesForeign(t *testing.T) {
	emulator, _, s := connected(t)
	foreign := emulator.AddForeignCheckpoint(0x2000, 0x2000)

	infos, err := s.ListCheckpoints(timeout(t))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, foreign.Number, infos[0].Number)

	eventually(t, s, func() bool { return len(emulator.Checkpoints()) == 0 })
}

func TestSession_SetBreakpointsSkipsExisting(t *testing.T) {
	emulator, _, s := connected(t)

	require.NoError(t, s.ToggleBreakpoint(0xC000))
	require.NoError(t, s.SetBreakpoints([]uint16{0xC000, 0xC010}))

	eventually(t, s, func() bool { return len(emulator.Checkpoints()) == 2 })
	assert.Len(t, s.Breakpoints(), 2)

	require.NoError(t, s.WatchRange(0x0400, 0x07FF, protocol.CheckpointOp_Store, false))
	eventually(t, s, func() bool { return len(emulator.Checkpoints()) == 3 })

	cp, ok := s.Checkpoints().Get(0x0400)
	require.True(t, ok)
	assert.Equal(t, uint16(0x07FF), cp.End)
	assert.False(t, cp.Stop)
}

func TestSession_EnableBreakpoint(t *testing.T) {
	emulator, _, s := connected(t)

	require.NoError(t, s.ToggleBreakpoint(0xC000))
	eventually(t, s, func() bool {
		cp, ok := s.Checkpoints().Get(0xC000)
		return ok && cp.Legit()
	})

	require.NoError(t, s.EnableBreakpoint(0xC000, false))
	eventually(t, s, func() bool {
		checkpoints := emulator.Checkpoints()
		return len(checkpoints) == 1 && !checkpoints[0].Enabled
	})
}

func TestSession_CloseCleansUp(t *testing.T) {
	emulator := vicetest.NewEmulator()
	server := vicetest.NewServer(t, emulator.Handle)
	s := dial(t, server.Addr())

	require.NoError(t, s.ToggleBreakpoint(0xC000))
	eventually(t, s, func() bool {
		cp, ok := s.Checkpoints().Get(0xC000)
		return ok && cp.Legit()
	})

	require.NoError(t, s.Stop())
	eventually(t, s, func() bool { return s.State() == State_Stopped && !emulator.Running() })

	require.NoError(t, s.Close(timeout(t)))

	require.Eventually(t, func() bool {
		return len(emulator.Checkpoints()) == 0 && emulator.Running()
	}, waitFor, tick)
	assert.Equal(t, 0, s.Checkpoints().Len())
}

// Link answering nothing, for deterministic keepalive tests
type silentLink struct {
	mu        sync.Mutex
	sent      []*protocol.Command
	connected bool
	cleared   int
}

func (l *silentLink) Send(c *protocol.Command) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sent = append(l.sent, c)
	return nil
}

func (l *silentLink) ProcessResponses(func(*protocol.Response)) int { return 0 }
func (l *silentLink) Connected() bool                               { return l.connected }
func (l *silentLink) ClearConnected()                               { l.cleared++ }
func (l *silentLink) Generation() uint64                            { return 1 }
func (l *silentLink) Flush(context.Context) error                   { return nil }
func (l *silentLink) Close() error                                  { return nil }

func (l *silentLink) pings() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, c := range l.sent {
		if c.Kind() == protocol.Kind_Ping {
			count++
		}
	}

	return count
}

func TestSession_KeepAlive(t *testing.T) {
	link := &silentLink{connected: true}
	s := New(link, Options{PingAfter: 4, LostAfter: 10})

	for i := 0; i < 3; i++ {
		s.Poll()
	}
	assert.Equal(t, 0, link.pings())

	s.Poll()
	assert.Equal(t, 1, link.pings())

	for i := 0; i < 4; i++ {
		s.Poll()
	}
	assert.Equal(t, 2, link.pings())
	assert.Equal(t, 0, link.cleared)

	s.Poll()
	s.Poll()
	assert.Equal(t, 1, link.cleared)
	assert.Equal(t, 2, link.pings())
}

func TestSession_NoKeepAliveWhileStopped(t *testing.T) {
	link := &silentLink{connected: true}
	s := New(link, Options{PingAfter: 2, LostAfter: 4})

	require.NoError(t, s.Stop())

	for i := 0; i < 10; i++ {
		s.Poll()
	}

	assert.Equal(t, 0, link.pings())
	assert.Equal(t, 0, link.cleared)
	assert.Equal(t, State_Stopped, s.State())
}

func TestSession_DisconnectedState(t *testing.T) {
	link := &silentLink{}
	s := New(link, Options{})

	s.Poll()
	assert.Equal(t, State_Disconnected, s.State())

	assert.NoError(t, s.Close(context.Background()))
	assert.Empty(t, link.sent)
}

func TestReplyKind(t *testing.T) {
	assert.Equal(t, protocol.Kind_CheckpointInfo, replyKind(protocol.Kind_CheckpointSet))
	assert.Equal(t, protocol.Kind_RegistersGet, replyKind(protocol.Kind_RegistersSet))
	assert.Equal(t, protocol.Kind_Ping, replyKind(protocol.Kind_Ping))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "stopped", State_Stopped.String())
	assert.Equal(t, "jam", StopReason_Jam.String())
	assert.True(t, errors.Is(makeError(ErrInvalidRange, "x"), ErrInvalidRange))
}

func TestSession_AdoptCheckpoints(t *testing.T) {
	emulator, _, s := connected(t)
	existing := emulator.AddForeignCheckpoint(0xC000, 0xC000)

	infos, err := s.AdoptCheckpoints(timeout(t))
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, existing.Number, infos[0].Number)

	cp, ok := s.Checkpoints().Get(0xC000)
	require.True(t, ok)
	assert.True(t, cp.Legit())

	// Adopted checkpoints survive and can be removed through the session
	s.Poll()
	require.Len(t, emulator.Checkpoints(), 1)

	require.NoError(t, s.ToggleBreakpoint(0xC000))
	eventually(t, s, func() bool { return len(emulator.Checkpoints()) == 0 })
}

func TestSession_WaitCheckpoints(t *testing.T) {
	emulator, _, s := connected(t)

	require.NoError(t, s.ToggleBreakpoint(0x1000))
	require.NoError(t, s.WaitCheckpoints(timeout(t)))

	cp, ok := s.Checkpoints().Get(0x1000)
	require.True(t, ok)
	assert.Equal(t, emulator.Checkpoints()[0].Number, cp.Number)
}

func TestSession_DetachKeepsCheckpoints(t *testing.T) {
	emulator := vicetest.NewEmulator()
	server := vicetest.NewServer(t, emulator.Handle)
	s := dial(t, server.Addr())

	require.NoError(t, s.ToggleBreakpoint(0x1000))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Detach(timeout(t)))

	require.Eventually(t, func() bool {
		return len(emulator.Checkpoints()) == 1 && !emulator.Running()
	}, waitFor, tick)
	assert.Empty(t, server.CommandsOfKind(protocol.Kind_Exit))
}

func TestSession_ReleaseKeepsCheckpointsAndResumes(t *testing.T) {
	emulator := vicetest.NewEmulator()
	server := vicetest.NewServer(t, emulator.Handle)
	s := dial(t, server.Addr())

	require.NoError(t, s.ToggleBreakpoint(0x1000))
	require.NoError(t, s.WaitCheckpoints(timeout(t)))
	require.NoError(t, s.Stop())
	eventually(t, s, func() bool { return s.State() == State_Stopped })

	require.NoError(t, s.Release(timeout(t)))

	require.Eventually(t, func() bool {
		return len(emulator.Checkpoints()) == 1 && emulator.Running()
	}, waitFor, tick)
	assert.Empty(t, server.CommandsOfKind(protocol.Kind_CheckpointDel))
}

func TestSession_PingIsNotCompletedByKeepAliveReplies(t *testing.T) {
	server := vicetest.NewServer(t, nil)
	s := dial(t, server.Addr())

	var mu sync.Mutex
	var unsolicited []uint32
	s.OnResponse(func(r *protocol.Response) {
		mu.Lock()
		defer mu.Unlock()
		unsolicited = append(unsolicited, r.ID())
	})

	done := make(chan error, 1)
	go func() {
		_, err := s.Ping(timeout(t))
		done <- err
	}()

	var ping *protocol.Command
	require.Eventually(t, func() bool {
		for _, c := range server.CommandsOfKind(protocol.Kind_Ping) {
			if c.ID() != protocol.PingID {
				ping = c
			}
		}
		return ping != nil
	}, waitFor, tick)
	assert.Greater(t, ping.ID(), protocol.ReservedIDs)

	// Reply to a keepalive ping
	server.PushResponse(protocol.NewResponse(protocol.Kind_Ping, protocol.ErrorCode_OK, protocol.PingID, nil))
	eventually(t, s, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(unsolicited) == 1
	})

	select {
	case err := <-done:
		t.Fatalf("ping completed by another reply: %v", err)
	default:
	}

	server.PushResponse(protocol.NewResponse(protocol.Kind_Ping, protocol.ErrorCode_OK, ping.ID(), nil))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("ping not completed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint32{protocol.PingID}, unsolicited)
}
