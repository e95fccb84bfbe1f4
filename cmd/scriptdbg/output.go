package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/alonw0/scriptdbg/internal/wire"
)

// newRequest builds a framed request record with a fresh correlation id, so
// a response can always be matched back to the request that produced it
// even though the client only ever has one in flight at a time.
func newRequest(command string, fields wire.Record) wire.Record {
	req := wire.Record{"command": command, "request_id": uuid.New().String()}
	for k, v := range fields {
		req[k] = v
	}
	return req
}

// printAndExit prints rec as JSON to stdout and exits 0 if it carries
// "status": "ok" (or is otherwise error-free), 1 if it carries an "error"
// field (§6). When stdout is a terminal the record is pretty-printed for a
// human reading it directly; piped or redirected output stays compact
// single-line JSON so scripting against this CLI never has to deal with
// indentation.
func printAndExit(rec wire.Record) {
	var data []byte
	var err error
	if term.IsTerminal(int(os.Stdout.Fd())) {
		data, err = json.MarshalIndent(rec, "", "  ")
	} else {
		data, err = json.Marshal(rec)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scriptdbg: encode response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
	if _, isErr := rec["error"]; isErr {
		os.Exit(1)
	}
	os.Exit(0)
}

// printErrorAndExit reports a local (pre-transport) failure in the same
// one-record-then-exit-1 shape as a daemon error response, so scripting
// against this CLI never needs to special-case "failed locally" vs.
// "daemon returned an error".
func printErrorAndExit(err error) {
	printAndExit(wire.Record{"error": err.Error()})
}
