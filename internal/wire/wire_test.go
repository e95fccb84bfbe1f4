package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := Record{"command": "status", "request_id": "r-1", "depth": float64(2)}
	if err := WriteRecord(&buf, rec); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	got, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got["command"] != "status" || got["request_id"] != "r-1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestReadRecordCleanEOF(t *testing.T) {
	_, err := ReadRecord(strings.NewReader(""))
	if err != io.EOF {
		t.Fatalf("expected io.EOF on empty reader, got %v", err)
	}
}

func TestReadRecordRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadRecord(&buf); err == nil {
		t.Fatal("expected error for oversized length prefix")
	}
}

func TestMultipleFramesSequential(t *testing.T) {
	var buf bytes.Buffer
	WriteRecord(&buf, Record{"n": float64(1)})
	WriteRecord(&buf, Record{"n": float64(2)})

	first, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("first ReadRecord: %v", err)
	}
	second, err := ReadRecord(&buf)
	if err != nil {
		t.Fatalf("second ReadRecord: %v", err)
	}
	if first["n"] != 1.0 || second["n"] != 2.0 {
		t.Fatalf("unexpected frame contents: %+v %+v", first, second)
	}
}
