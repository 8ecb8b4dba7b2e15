package hostio

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waymark3d/waymark/internal/dispatcher"
	"github.com/waymark3d/waymark/pkg/core"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...any) {}
func (nopLogger) Info(msg string, keysAndValues ...any)  {}
func (nopLogger) Error(msg string, keysAndValues ...any) {}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	d.Register("echo", func(e dispatcher.Event) (any, error) {
		var p map[string]any
		if len(e.Params) > 0 {
			require.NoError(t, json.Unmarshal(e.Params, &p))
		}
		return map[string]any{"ok": true, "echo": p}, nil
	})
	d.Register("missing", func(e dispatcher.Event) (any, error) {
		return nil, core.NewNotFound("missing", "waypoint", "wp_gone")
	})
	return New(d)
}

// runLines feeds input through the bridge and decodes every response line.
func runLines(t *testing.T, b *Bridge, input string) []map[string]any {
	t.Helper()

	var out bytes.Buffer
	require.NoError(t, b.Run(strings.NewReader(input), &out))

	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp), "line %q", line)
		responses = append(responses, resp)
	}
	return responses
}

func TestFormatResponse(t *testing.T) {
	tests := []struct {
		name     string
		result   any
		err      error
		expected string
	}{
		{
			name: "success with struct result",
			result: struct {
				OK bool   `json:"ok"`
				ID string `json:"id"`
			}{true, "wp_0a1b2c3d4e5f"},
			expected: `{"ok":true,"id":"wp_0a1b2c3d4e5f"}`,
		},
		{
			name:     "success with nil result",
			result:   nil,
			expected: `{"ok":true}`,
		},
		{
			name:     "typed validation error",
			err:      core.NewValidation("create_waypoint", "position", "position must have 3 elements"),
			expected: `{"ok":false,"error":{"kind":"validation","op":"create_waypoint","field":"position","message":"position must have 3 elements"}}`,
		},
		{
			name:     "typed not found error",
			err:      core.NewNotFound("get_waypoint", "waypoint", "wp_gone"),
			expected: `{"ok":false,"error":{"kind":"not_found","op":"get_waypoint","id":"wp_gone","message":"waypoint not found"}}`,
		},
		{
			name:     "plain error maps to internal",
			err:      errors.New("boom"),
			expected: `{"ok":false,"error":{"kind":"internal","message":"boom"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.expected, string(formatResponse(tt.result, tt.err)))
		})
	}
}

func TestRunOneResponsePerRequest(t *testing.T) {
	b := newTestBridge(t)

	input := strings.Join([]string{
		`{"command":"echo","params":{"n":1}}`,
		``,
		`{"command":"missing"}`,
		`this is not json`,
		`{"command":"nope"}`,
	}, "\n") + "\n"

	responses := runLines(t, b, input)
	require.Len(t, responses, 4)

	assert.Equal(t, true, responses[0]["ok"])
	assert.Equal(t, map[string]any{"n": float64(1)}, responses[0]["echo"])

	assert.Equal(t, false, responses[1]["ok"])
	detail := responses[1]["error"].(map[string]any)
	assert.Equal(t, "not_found", detail["kind"])
	assert.Equal(t, "wp_gone", detail["id"])

	assert.Equal(t, false, responses[2]["ok"])
	detail = responses[2]["error"].(map[string]any)
	assert.Equal(t, "validation", detail["kind"])
	assert.Equal(t, "body", detail["field"])

	assert.Equal(t, false, responses[3]["ok"])
	detail = responses[3]["error"].(map[string]any)
	assert.Equal(t, "internal", detail["kind"])
	assert.Equal(t, "unknown command: nope", detail["message"])
}

func TestRunMissingCommand(t *testing.T) {
	b := newTestBridge(t)

	responses := runLines(t, b, `{"params":{"n":1}}`+"\n")
	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["ok"])
	detail := responses[0]["error"].(map[string]any)
	assert.Equal(t, "validation", detail["kind"])
	assert.Equal(t, "command", detail["field"])
}

func TestRunPing(t *testing.T) {
	b := newTestBridge(t)

	responses := runLines(t, b, `{"command":"ping"}`+"\n")
	require.Len(t, responses, 1)
	assert.Equal(t, true, responses[0]["ok"])
	assert.Greater(t, responses[0]["timestamp"].(float64), float64(0))
}

func TestRunLargeRequestLine(t *testing.T) {
	b := newTestBridge(t)

	// Well past bufio.Scanner's default 64KB token limit.
	blob := strings.Repeat("x", 200_000)
	req, err := json.Marshal(Request{Command: "echo", Params: mustMarshal(t, map[string]any{"blob": blob})})
	require.NoError(t, err)

	responses := runLines(t, b, string(req)+"\n")
	require.Len(t, responses, 1)
	assert.Equal(t, true, responses[0]["ok"])
	echo := responses[0]["echo"].(map[string]any)
	assert.Len(t, echo["blob"], len(blob))
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}
