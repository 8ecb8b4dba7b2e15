// internal/exchange/export.go
package exchange

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/waymark3d/waymark/internal/store"
)

// Build assembles a document from a snapshot. With includeGroups false the
// groups field stays null while waypoints still carry their group ids.
func Build(snap store.Snapshot, includeGroups bool) Document {
	doc := Document{
		Waypoints:  make([]WaypointRecord, 0, len(snap.Waypoints)),
		ExportedAt: snap.TakenAt.UTC(),
	}
	for _, w := range snap.Waypoints {
		doc.Waypoints = append(doc.Waypoints, newWaypointRecord(w, snap.Memberships[w.ID]))
	}
	if includeGroups {
		doc.Groups = make([]GroupRecord, 0, len(snap.Groups))
		for _, g := range snap.Groups {
			doc.Groups = append(doc.Groups, newGroupRecord(g))
		}
	}
	return doc
}

// Export snapshots the store and builds a document. The snapshot is taken
// under the store lock; serialization happens on the private copy.
func Export(st *store.Store, includeGroups bool) Document {
	return Build(st.Snapshot(), includeGroups)
}

// Marshal renders the document as indented JSON.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the document as indented JSON to w.
func Write(doc Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// WriteFile writes the document to path, creating parent directories as
// needed.
func WriteFile(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(doc, f)
}

// WriteGzipFile writes the document gzip-compressed.
func WriteGzipFile(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	return Write(doc, gz)
}

// ExportPath builds the conventional output filename for a scene export,
// e.g. studio_lot_20250601_120000.json.gz.
func ExportPath(dir, scene string, at time.Time, compress bool) string {
	name := strings.ReplaceAll(scene, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	if name == "" {
		name = "waypoints"
	}
	ext := ".json"
	if compress {
		ext = ".json.gz"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, at.Format("20060102_150405"), ext))
}
