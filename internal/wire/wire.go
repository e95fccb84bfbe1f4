// Package wire implements the framed IPC's on-the-wire record format (§4.4):
// a 4-byte big-endian unsigned length prefix followed by that many bytes of
// a JSON-encoded structured record.
package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxRecordSize bounds a single frame's body. Generous for a debugger
// protocol whose largest payloads are formatted variable dumps, but still
// enough to reject a corrupt length prefix instead of allocating
// unboundedly.
const MaxRecordSize = 16 << 20 // 16 MiB

// Record is one request or response: a plain string-keyed map so it
// serializes directly without an intermediate struct per command. Request
// records carry "command" and "request_id"; response records echo
// "request_id" and carry either "status": "ok" plus command-specific
// fields, "error", or a paused-state status bundle (§6).
type Record map[string]any

// WriteRecord marshals rec to JSON and writes it as one length-prefixed
// frame. The length prefix and body are written as a single buffer so a
// partial write can't interleave with a concurrent frame on the same
// connection.
func WriteRecord(w io.Writer, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("wire: marshal record: %w", err)
	}
	if len(body) > MaxRecordSize {
		return fmt.Errorf("wire: record of %d bytes exceeds max %d", len(body), MaxRecordSize)
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)
	_, err = w.Write(buf)
	return err
}

// ReadRecord reads one length-prefixed frame and decodes its JSON body. It
// returns io.EOF (or an error wrapping it) unmodified when the peer closes
// cleanly before any byte of a new frame arrives, so callers can
// distinguish "no more frames" from a mid-frame reset.
func ReadRecord(r io.Reader) (Record, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxRecordSize {
		return nil, fmt.Errorf("wire: record of %d bytes exceeds max %d", n, MaxRecordSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: read body: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("wire: unmarshal record: %w", err)
	}
	return rec, nil
}
