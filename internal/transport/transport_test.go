package transport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alonw0/scriptdbg/internal/wire"
)

func TestServerClientRoundTrip(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "debug_test.sock")
	srv := NewServer(sock, 200*time.Millisecond)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			attached, err := srv.Accept()
			if err != nil {
				t.Errorf("Accept: %v", err)
				return
			}
			if !attached {
				continue
			}
			req, ok := srv.Receive()
			if !ok {
				return
			}
			srv.Send(wire.Record{"status": "ok", "request_id": req["request_id"], "echoed": req["command"]})
			return
		}
	}()

	client, err := Connect(sock, time.Second)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	resp, err := client.SendCommand(wire.Record{"command": "status", "request_id": "r-1"})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if resp["status"] != "ok" || resp["echoed"] != "status" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server goroutine did not finish")
	}
}

func TestClientConnectTimesOutWhenSocketNeverAppears(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "debug_never.sock")
	if _, err := Connect(sock, 150*time.Millisecond); err == nil {
		t.Fatal("expected connect to time out")
	}
}

func TestReceiveReportsDisconnectWithoutTearingDownListener(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "debug_disc.sock")
	srv := NewServer(sock, 200*time.Millisecond)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	go func() {
		client, err := Connect(sock, time.Second)
		if err != nil {
			return
		}
		client.Close()
	}()

	attached, err := srv.Accept()
	if err != nil || !attached {
		t.Fatalf("Accept: attached=%v err=%v", attached, err)
	}
	if _, ok := srv.Receive(); ok {
		t.Fatal("expected Receive to report disconnect")
	}

	// Listener must still be usable for a subsequent peer.
	attached, err = srv.Accept()
	if err != nil {
		t.Fatalf("second Accept errored: %v", err)
	}
	if attached {
		t.Fatal("no new peer connected yet, Accept should report false")
	}
}
