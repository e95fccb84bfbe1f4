// Package transport implements the Framed IPC's server and client halves
// (§4.4): a Unix-domain rendezvous socket carrying wire.Record frames,
// exactly one accepted peer at a time, strict request/response framing.
package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/alonw0/scriptdbg/internal/wire"
)

// listenBacklog is spec's literal "backlog 1": the daemon never serves
// more than one peer, so there is no value in queuing a second pending
// connection. The standard library's net.Listen does not expose a backlog
// parameter, so the listening socket is built by hand with
// golang.org/x/sys/unix and then handed back to net as a *net.UnixListener.
const listenBacklog = 1

// Server is the daemon's half of the rendezvous socket. It accepts at most
// one peer at a time; accepting a new peer while one is already attached is
// a no-op (Accept reports the existing peer as attached).
type Server struct {
	socketPath    string
	acceptTimeout time.Duration

	ln   *net.UnixListener
	peer net.Conn
}

// NewServer prepares a server for socketPath. Start must be called before
// Accept/Receive/Send.
func NewServer(socketPath string, acceptTimeout time.Duration) *Server {
	return &Server{socketPath: socketPath, acceptTimeout: acceptTimeout}
}

// Start unlinks any stale socket file left by a previous, now-dead daemon
// and binds+listens on a fresh one.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	ln, err := listenUnix(s.socketPath, listenBacklog)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.socketPath, err)
	}
	s.ln = ln
	return nil
}

// listenUnix builds a Unix-domain stream listener with an explicit accept
// backlog, since net.Listen hardcodes its own.
func listenUnix(path string, backlog int) (*net.UnixListener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("file listener: %w", err)
	}
	uln, ok := ln.(*net.UnixListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("unexpected listener type %T", ln)
	}
	return uln, nil
}

// Accept waits up to the server's accept timeout for a peer to connect. It
// returns (true, nil) once a peer is attached — whether newly accepted or
// already attached from a previous call — and (false, nil) on timeout so
// the caller (the dispatcher's stop loop) can periodically observe
// shutdown flags between attempts.
func (s *Server) Accept() (bool, error) {
	if s.peer != nil {
		return true, nil
	}
	s.ln.SetDeadline(time.Now().Add(s.acceptTimeout))
	conn, err := s.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, fmt.Errorf("transport: accept: %w", err)
	}
	s.peer = conn
	return true, nil
}

// Receive reads one framed request from the current peer. It reports
// ok=false (with a nil record) on clean EOF or reset — a mid-stop
// disconnect — and closes the peer so the next Accept call waits for a
// fresh connection; the listener itself is left standing.
func (s *Server) Receive() (wire.Record, bool) {
	if s.peer == nil {
		return nil, false
	}
	rec, err := wire.ReadRecord(s.peer)
	if err != nil {
		s.closePeer()
		return nil, false
	}
	return rec, true
}

// Send writes one framed response to the current peer. A broken pipe
// closes the peer and reports failure; the listener is unaffected.
func (s *Server) Send(rec wire.Record) error {
	if s.peer == nil {
		return fmt.Errorf("transport: send: %w", net.ErrClosed)
	}
	if err := wire.WriteRecord(s.peer, rec); err != nil {
		s.closePeer()
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (s *Server) closePeer() {
	if s.peer != nil {
		s.peer.Close()
		s.peer = nil
	}
}

// Close tears down the peer connection (if any) and the listener, and
// removes the socket file. Idempotent.
func (s *Server) Close() error {
	s.closePeer()
	var lnErr error
	if s.ln != nil {
		lnErr = s.ln.Close()
		s.ln = nil
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		if lnErr == nil {
			lnErr = err
		}
	}
	return lnErr
}
