// Package catalog loads and holds collections of two-line element sets,
// typically fetched from CelesTrak-style endpoints.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/tlefit/internal/metrics"
	"github.com/star/tlefit/internal/tle"
)

// Catalog is an immutable snapshot of decoded element sets.
type Catalog struct {
	Records   []tle.Record
	Source    string
	FetchedAt time.Time
}

// Parse reads element sets from r and returns the decoded records. Both the
// 3-line format (name line first) and the bare 2-line format are accepted,
// and the two may be mixed in one stream. Malformed entries are skipped with
// a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]tle.Record, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog data: %w", err)
	}

	var recs []tle.Record
	for i := 0; i < len(lines); {
		var line0, line1, line2 string
		switch {
		case strings.HasPrefix(lines[i], "1 ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "2 "):
			line1, line2 = lines[i], lines[i+1]
			i += 2
		case i+2 < len(lines) && strings.HasPrefix(lines[i+1], "1 ") && strings.HasPrefix(lines[i+2], "2 "):
			line0, line1, line2 = lines[i], lines[i+1], lines[i+2]
			i += 3
		default:
			logger.Warn("skipping unrecognized catalog line", "line_index", i, "line", lines[i])
			i++
			continue
		}

		rec, err := tle.Decode(line0, line1, line2)
		if err != nil {
			metrics.RecordDecodeError()
			logger.Warn("skipping malformed element set", "name", line0, "error", err)
			continue
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// Store provides thread-safe access to the current catalog snapshot.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes refresh operations
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// AgeSeconds returns the age of the current catalog in seconds.
// Returns -1 if no catalog is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.FetchedAt).Seconds()
}

// Lock acquires the refresh mutex for serializing refresh operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the refresh mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
