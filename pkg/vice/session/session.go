// Package session drives a connection to the emulator's binary monitor: it
// correlates responses with requests, tracks whether the emulator runs or is
// stopped, keeps the connection alive and exposes typed operations on top of
// the raw protocol.
//
// Responses are only consumed by Poll, which is either called periodically by
// the owner of the session (once per frame, for instance) or by Run. Blocking
// operations poll on their own while they wait, so they also work without a
// running poll loop.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Manu343726/vicemon/pkg/utils"
	"github.com/Manu343726/vicemon/pkg/vice/checkpoints"
	"github.com/Manu343726/vicemon/pkg/vice/protocol"
	"github.com/Manu343726/vicemon/pkg/vice/transport"
)

// Connection to the emulator. *transport.Transport satisfies it.
type Link interface {
	checkpoints.Sender
	ProcessResponses(fn func(*protocol.Response)) int
	Connected() bool
	ClearConnected()
	Generation() uint64
	Flush(ctx context.Context) error
	Close() error
}

type request struct {
	kind protocol.Kind
	done chan *protocol.Response
	// Receives intermediate responses carrying the request id, if set
	collect func(*protocol.Response)
}

type Session struct {
	link        Link
	checkpoints *checkpoints.Set
	opts        Options
	logger      *slog.Logger

	// Serializes Poll
	pollMu sync.Mutex

	mu          sync.Mutex
	pending     map[uint32][]*request
	state       State
	wantStopped bool
	generation  uint64
	idle        int
	pc          uint16
	registers   protocol.Registers
	onConnected []func()
	onStopped   []func(StopEvent)
	onResponse  []func(*protocol.Response)
}

// Creates a session on top of an already started link
func New(link Link, opts Options) *Session {
	opts = opts.withDefaults()

	return &Session{
		link:        link,
		checkpoints: checkpoints.NewSet(link, opts.Logger),
		opts:        opts,
		logger:      opts.Logger.With(slog.String("component", "session")),
		pending:     make(map[uint32][]*request),
	}
}

// Starts a transport with opts.Transport and returns a session on top of it.
// The connection is established in the background, see WaitConnected.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	t := transport.New(opts.Transport)
	if err := t.Start(ctx); err != nil {
		return nil, err
	}

	return New(t, opts), nil
}

// Registers a function called every time a connection is established,
// reconnections included.
func (s *Session) OnConnected(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onConnected = append(s.onConnected, fn)
}

// Registers a function called when the emulator stops on a breakpoint, jams
// or completes a requested stop.
func (s *Session) OnStopped(fn func(StopEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onStopped = append(s.onStopped, fn)
}

// Registers a function receiving every response that did not complete a
// request of this session.
func (s *Session) OnResponse(fn func(*protocol.Response)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onResponse = append(s.onResponse, fn)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Program counter reported by the last STOPPED, RESUMED or JAM notification
func (s *Session) PC() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pc
}

// Last register values received, nil if none arrived yet
func (s *Session) Registers() protocol.Registers {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registers == nil {
		return nil
	}

	copied := make(protocol.Registers, len(s.registers))
	for id, value := range s.registers {
		copied[id] = value
	}

	return copied
}

func (s *Session) Checkpoints() *checkpoints.Set {
	return s.checkpoints
}

// Polls every PollInterval until ctx is done
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Poll()
		}
	}
}

// Polls until the link is connected or ctx is done
func (s *Session) WaitConnected(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.Poll()

		if s.State() != State_Disconnected {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drains the responses received since the last call, updates the execution
// state and runs the registered handlers. Returns the number of responses
// processed. Handlers run after the poll completes, so they may call any
// session method.
func (s *Session) Poll() int {
	s.pollMu.Lock()

	var (
		events    []func()
		needStart bool
	)

	processed := s.link.ProcessResponses(func(r *protocol.Response) {
		events = s.dispatch(r, events, &needStart)
	})

	if needStart {
		s.logger.Debug("resuming after unrequested stop")
		s.send(protocol.ExitCommand())
	}

	events = s.keepAlive(processed, events)
	events = s.updateState(events)

	s.pollMu.Unlock()

	for _, event := range events {
		event()
	}

	return processed
}

func (s *Session) dispatch(r *protocol.Response, events []func(), needStart *bool) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := s.complete(r)

	switch r.Kind() {
	case protocol.Kind_CheckpointInfo:
		if r.Err() != nil {
			break
		}
		if err := s.checkpoints.ProcessInfo(r); err != nil {
			s.logger.Warn("invalid checkpoint info", slog.Any("error", err))
		}

	case protocol.Kind_Stopped:
		pc, err := protocol.ParseProgramCounter(r)
		if err != nil {
			s.logger.Warn("invalid stop notification", slog.Any("error", err))
			break
		}

		s.pc = pc

		if s.checkpoints.CheckHit(pc) {
			s.wantStopped = true
			*needStart = false
			events = s.stopped(events, StopEvent{PC: pc, Reason: StopReason_Breakpoint})
		} else if s.wantStopped {
			events = s.stopped(events, StopEvent{PC: pc, Reason: StopReason_Requested})
		} else {
			*needStart = true
		}

	case protocol.Kind_Resumed:
		if pc, err := protocol.ParseProgramCounter(r); err == nil {
			s.pc = pc
		}
		*needStart = false

	case protocol.Kind_Jam:
		if pc, err := protocol.ParseProgramCounter(r); err == nil {
			s.pc = pc
		}
		s.wantStopped = true
		*needStart = false
		events = s.stopped(events, StopEvent{PC: s.pc, Reason: StopReason_Jam})

	case protocol.Kind_RegistersGet:
		if r.Err() == nil {
			if registers, err := protocol.ParseRegisters(r); err == nil {
				s.registers = registers
			}
		}
	}

	if !completed {
		for _, fn := range s.onResponse {
			fn := fn
			events = append(events, func() { fn(r) })
		}
	}

	return events
}

// Hands r to the oldest request waiting on its id. Returns true if r was the
// final response of that request.
func (s *Session) complete(r *protocol.Response) bool {
	if !r.HasCommand() {
		return false
	}

	waiting := s.pending[r.ID()]
	if len(waiting) == 0 {
		return false
	}

	req := waiting[0]

	if r.Kind() != replyKind(req.kind) && r.Kind() != req.kind && r.Err() == nil {
		if req.collect != nil {
			req.collect(r)
		}

		return false
	}

	if len(waiting) == 1 {
		delete(s.pending, r.ID())
	} else {
		s.pending[r.ID()] = waiting[1:]
	}

	req.done <- r
	return true
}

// Kind of the response answering a command of the given kind
func replyKind(kind protocol.Kind) protocol.Kind {
	switch kind {
	case protocol.Kind_CheckpointSet:
		return protocol.Kind_CheckpointInfo
	case protocol.Kind_RegistersSet:
		return protocol.Kind_RegistersGet
	}

	return kind
}

func (s *Session) stopped(events []func(), event StopEvent) []func() {
	s.logger.Debug("emulator stopped", slog.String("pc", utils.FormatHex(event.PC)), slog.String("reason", event.Reason.String()))

	for _, fn := range s.onStopped {
		fn := fn
		events = append(events, func() { fn(event) })
	}

	return events
}

// Counts polls without traffic while the emulator runs. Every PingAfter idle
// polls a ping is sent, and after LostAfter the connection is dropped so the
// transport reconnects.
func (s *Session) keepAlive(processed int, events []func()) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if processed > 0 || s.wantStopped || !s.link.Connected() {
		s.idle = 0
		return events
	}

	s.idle++

	switch {
	case s.idle >= s.opts.LostAfter:
		s.logger.Warn("emulator not answering, reconnecting", slog.Int("idle_polls", s.idle))
		s.idle = 0
		s.link.ClearConnected()
	case s.idle%s.opts.PingAfter == 0:
		s.send(protocol.PingCommand())
	}

	return events
}

func (s *Session) updateState(events []func()) []func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.link.Connected() {
		if s.state != State_Disconnected {
			s.logger.Info("disconnected")
		}

		s.state = State_Disconnected
		return events
	}

	if s.wantStopped {
		s.state = State_Stopped
	} else {
		s.state = State_Running
	}

	if generation := s.link.Generation(); generation != s.generation {
		s.generation = generation
		s.logger.Info("connected", slog.Uint64("generation", generation), slog.String("state", s.state.String()))

		for _, fn := range s.onConnected {
			events = append(events, fn)
		}
	}

	return events
}

func (s *Session) send(c *protocol.Command) {
	if err := s.link.Send(c); err != nil {
		s.logger.Warn("could not queue command", slog.String("kind", c.Kind().String()), slog.Any("error", err))
	}
}

// Sends c and waits for its response. The response is returned together with
// the error it carries, if any. Commands with a reserved id are renumbered.
func (s *Session) Request(ctx context.Context, c *protocol.Command) (*protocol.Response, error) {
	return s.request(ctx, c, nil)
}

func (s *Session) request(ctx context.Context, c *protocol.Command, collect func(*protocol.Response)) (*protocol.Response, error) {
	if !c.HasID() {
		return nil, makeError(ErrUncorrelated, "%v", c)
	}

	// Keepalive pings and other fire and forget sends share the reserved ids
	if c.HasReservedID() {
		c.Renumber()
	}

	req := &request{
		kind:    c.Kind(),
		done:    make(chan *protocol.Response, 1),
		collect: collect,
	}

	s.mu.Lock()
	s.pending[c.ID()] = append(s.pending[c.ID()], req)
	s.mu.Unlock()

	if err := s.link.Send(c); err != nil {
		s.cancel(c.ID(), req)
		return nil, err
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case r := <-req.done:
			return r, r.Err()
		case <-ctx.Done():
			s.cancel(c.ID(), req)
			return nil, makeError(ctx.Err(), "waiting for %v response", c.Kind())
		case <-ticker.C:
			s.Poll()
		}
	}
}

func (s *Session) cancel(id uint32, req *request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	waiting := s.pending[id]
	for i, r := range waiting {
		if r == req {
			waiting = append(waiting[:i:i], waiting[i+1:]...)
			break
		}
	}

	if len(waiting) == 0 {
		delete(s.pending, id)
	} else {
		s.pending[id] = waiting
	}
}

// Deletes every checkpoint created by this session, resumes the emulator if
// it was stopped, waits for the queued commands to be written (bounded by
// ctx) and closes the link.
func (s *Session) Close(ctx context.Context) error {
	// Pending notifications may still ask for a resume
	s.Poll()

	s.mu.Lock()
	resume := s.wantStopped || s.state == State_Stopped
	s.wantStopped = false
	s.mu.Unlock()

	errs := []error{s.checkpoints.Close()}

	if s.link.Connected() {
		if resume {
			errs = append(errs, s.link.Send(protocol.ExitCommand()))
		}

		errs = append(errs, s.link.Flush(ctx))
	}

	errs = append(errs, s.link.Close())
	return errors.Join(errs...)
}

// Like Close, but the checkpoints stay in the emulator
func (s *Session) Release(ctx context.Context) error {
	s.checkpoints.Forget()
	return s.Close(ctx)
}

// Writes the queued commands (bounded by ctx) and closes the link, leaving the
// emulator checkpoints and execution state as they are.
func (s *Session) Detach(ctx context.Context) error {
	var errs []error

	if s.link.Connected() {
		errs = append(errs, s.link.Flush(ctx))
	}

	errs = append(errs, s.link.Close())
	return errors.Join(errs...)
}
