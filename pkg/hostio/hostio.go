// Package hostio bridges a host application to the command dispatcher.
// Requests arrive as newline-delimited JSON on the input stream, and
// every request produces exactly one JSON response line on the output
// stream, in request order.
package hostio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/waymark3d/waymark/internal/dispatcher"
	"github.com/waymark3d/waymark/internal/handlers"
	"github.com/waymark3d/waymark/pkg/core"
)

const (
	// maxLineBytes caps one request line. Import documents arrive inline
	// as params, so the cap is generous.
	maxLineBytes = 16 << 20

	initialBufBytes = 64 << 10
)

// Request is one command line from the host application.
type Request struct {
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Bridge connects a line-oriented host stream to the dispatcher.
type Bridge struct {
	d *dispatcher.Dispatcher
}

// New creates a bridge around a dispatcher with handlers registered.
func New(d *dispatcher.Dispatcher) *Bridge {
	return &Bridge{d: d}
}

// Run reads requests from in until EOF or a read error, writing one
// response line per request to out. The host signals shutdown by closing
// the input stream.
func (b *Bridge) Run(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, initialBufBytes), maxLineBytes)

	w := bufio.NewWriter(out)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if _, err := w.Write(b.handleLine(line)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		// Hosts read line-by-line, so every response flushes.
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	return scanner.Err()
}

// handleLine decodes one request and produces its response body.
func (b *Bridge) handleLine(line []byte) []byte {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return formatResponse(nil, core.NewValidation("request", "body", "malformed request: %v", err))
	}
	if req.Command == "" {
		return formatResponse(nil, core.NewValidation("request", "command", "command is required"))
	}

	// ping answers locally so hosts can probe liveness before any
	// handlers exist.
	if req.Command == "ping" {
		return formatResponse(map[string]any{
			"ok":        true,
			"timestamp": time.Now().UTC().UnixNano(),
		}, nil)
	}

	result, err := b.d.Dispatch(dispatcher.Event{
		Command:   req.Command,
		Params:    req.Params,
		Timestamp: time.Now(),
	})
	return formatResponse(result, err)
}

// formatResponse marshals the handler result, or the wire error shape
// when the dispatch failed. A result that cannot marshal reports as an
// internal error rather than breaking the line protocol.
func formatResponse(result any, err error) []byte {
	if err != nil {
		data, mErr := json.Marshal(handlers.ErrorBody(err))
		if mErr != nil {
			return []byte(`{"ok":false,"error":{"kind":"internal","message":"unencodable error"}}`)
		}
		return data
	}
	if result == nil {
		return []byte(`{"ok":true}`)
	}
	data, mErr := json.Marshal(result)
	if mErr != nil {
		return formatResponse(nil, fmt.Errorf("unencodable result: %v", mErr))
	}
	return data
}
