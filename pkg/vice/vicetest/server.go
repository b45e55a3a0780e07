// Package vicetest provides an in-process fake of the emulator's binary
// monitor for tests.
package vicetest

import (
	"encoding/binary"
	"net"
	"sync"
	"testing"

	"github.com/Manu343726/vicemon/pkg/vice/protocol"
)

// Produces the responses for a received command
type Handler func(c *protocol.Command) []*protocol.Response

// TCP server speaking the monitor framing. Every decoded command is recorded
// and passed to the handler, whose responses are written back in order.
type Server struct {
	listener net.Listener
	handler  Handler

	mu       sync.Mutex
	commands []*protocol.Command
	conns    map[net.Conn]struct{}
	accepted int

	wg sync.WaitGroup
}

// Starts a server on a random loopback port. The server is closed when the test ends.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()
	return NewServerAt(t, "127.0.0.1:0", handler)
}

// Starts a server listening on address
func NewServerAt(t testing.TB, address string, handler Handler) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", address)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		listener: listener,
		handler:  handler,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.accept()

	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Returns all commands received so far
func (s *Server) Commands() []*protocol.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*protocol.Command(nil), s.commands...)
}

// Returns the received commands of the given kind
func (s *Server) CommandsOfKind(kind protocol.Kind) []*protocol.Command {
	var result []*protocol.Command

	for _, c := range s.Commands() {
		if c.Kind() == kind {
			result = append(result, c)
		}
	}

	return result
}

// Number of connections accepted so far
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.accepted
}

// Writes raw bytes to every open connection
func (s *Server) Push(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Write(data)
	}
}

// Writes responses to every open connection
func (s *Server) PushResponse(responses ...*protocol.Response) {
	for _, r := range responses {
		s.Push(r.Bytes())
	}
}

// Closes every open connection, the listener keeps accepting new ones
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) Close() {
	s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	var pending []byte
	chunk := make([]byte, 4096)

	for {
		n, err := conn.Read(chunk)
		pending = append(pending, chunk[:n]...)

		for len(pending) >= protocol.CommandHeaderSize {
			c, consumed, decodeErr := protocol.DecodeCommand(pending)
			if decodeErr != nil {
				// Truncated bodies wait for more data, anything else is garbage
				if binary.LittleEndian.Uint16(pending) != protocol.Magic {
					pending = nil
				}
				break
			}

			pending = pending[consumed:]

			s.mu.Lock()
			s.commands = append(s.commands, c)
			s.mu.Unlock()

			if s.handler == nil {
				continue
			}

			for _, r := range s.handler(c) {
				if _, err := conn.Write(r.Bytes()); err != nil {
					return
				}
			}
		}

		if err != nil {
			return
		}
	}
}
