package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfHandler dials a Graylog endpoint and returns a handler that ships
// each record as a GELF message over UDP. Records are encoded as JSON so
// the attribute keys survive into the short message.
func NewGelfHandler(address, facility, level string) (slog.Handler, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("gelf writer for %s: %w", address, err)
	}
	w.Facility = facility
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}), nil
}
