package transport

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/alonw0/scriptdbg/internal/dbgerr"
	"github.com/alonw0/scriptdbg/internal/wire"
)

// OperationTimeout bounds the total time any single Client.SendCommand call
// may take once connected (§4.4).
const OperationTimeout = 30 * time.Second

// Client is the CLI façade's half of the rendezvous socket: connect, send
// exactly one framed request, read exactly one framed response, done.
type Client struct {
	conn net.Conn
}

// Connect polls for socketPath to exist and accepts a connection as soon as
// one succeeds, retrying until timeout elapses.
func Connect(socketPath string, timeout time.Duration) (*Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		if conn, err := net.DialTimeout("unix", socketPath, 2*time.Second); err == nil {
			return &Client{conn: conn}, nil
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			if lastErr == nil {
				lastErr = fmt.Errorf("socket %s never appeared", socketPath)
			}
			return nil, fmt.Errorf("%w: %v", dbgerr.ErrTransport, lastErr)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// SendCommand writes req as one framed record and reads back exactly one
// framed response. Timeouts, resets, and broken pipes are reported as a
// structured wire.Record carrying an "error" field rather than as an error
// return, matching the client contract's "never raises" rule — callers that
// need the Go error for logging can still inspect the second return value.
func (c *Client) SendCommand(req wire.Record) (wire.Record, error) {
	c.conn.SetDeadline(time.Now().Add(OperationTimeout))
	if err := wire.WriteRecord(c.conn, req); err != nil {
		return errorRecord(req, err), fmt.Errorf("%w: %v", dbgerr.ErrTransport, err)
	}
	resp, err := wire.ReadRecord(c.conn)
	if err != nil {
		return errorRecord(req, err), fmt.Errorf("%w: %v", dbgerr.ErrTransport, err)
	}
	return resp, nil
}

func errorRecord(req wire.Record, err error) wire.Record {
	rec := wire.Record{"error": err.Error()}
	if id, ok := req["request_id"]; ok {
		rec["request_id"] = id
	}
	return rec
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// SocketExists reports whether a session's rendezvous socket file is
// present, without connecting to it.
func SocketExists(socketPath string) bool {
	_, err := os.Stat(socketPath)
	return err == nil
}
