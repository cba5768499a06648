package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

// fileRow is the on-disk shape of one position, matching the SQL schema.
type fileRow struct {
	Ticker       string  `json:"ticker"`
	Quantity     int64   `json:"quantity"`
	AveragePrice float64 `json:"average_price"`
}

type fileDocument struct {
	Positions []fileRow `json:"positions"`
}

// FileStore keeps the whole ledger in one JSON document. Every write
// replaces the document atomically and rotates the previous copies.
type FileStore struct {
	mu       sync.Mutex
	path     string
	versions int
	rows     map[string]models.Position
	logger   *common.Logger
}

// NewFileStore opens the document at path, creating its directory.
// A missing file is an empty ledger.
func NewFileStore(logger *common.Logger, path string, versions int) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fs := &FileStore{
		path:     path,
		versions: versions,
		rows:     make(map[string]models.Position),
		logger:   logger,
	}
	if err := fs.readJSON(); err != nil {
		return nil, err
	}

	logger.Debug().Str("path", path).Int("positions", len(fs.rows)).Msg("File ledger store opened")
	return fs, nil
}

// LoadAll returns every position ordered by ticker
func (fs *FileStore) LoadAll(_ context.Context) ([]models.Position, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return sortedPositions(fs.rows), nil
}

// Upsert replaces the position for p.Ticker and rewrites the document
func (fs *FileStore) Upsert(_ context.Context, p models.Position) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, had := fs.rows[p.Ticker]
	fs.rows[p.Ticker] = p
	if err := fs.writeJSON(); err != nil {
		if had {
			fs.rows[p.Ticker] = prev
		} else {
			delete(fs.rows, p.Ticker)
		}
		return err
	}
	return nil
}

// Delete removes ticker and rewrites the document. Absent tickers are ignored.
func (fs *FileStore) Delete(_ context.Context, ticker string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, had := fs.rows[ticker]
	if !had {
		return nil
	}
	delete(fs.rows, ticker)
	if err := fs.writeJSON(); err != nil {
		fs.rows[ticker] = prev
		return err
	}
	return nil
}

// Close is a no-op; every write is already durable
func (fs *FileStore) Close() error { return nil }

func (fs *FileStore) readJSON() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fs.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", fs.path, err)
	}
	for _, r := range doc.Positions {
		fs.rows[r.Ticker] = models.Position{Ticker: r.Ticker, Quantity: r.Quantity, AverageCost: r.AveragePrice}
	}
	return nil
}

// writeJSON marshals the ledger to indented JSON and writes it atomically.
func (fs *FileStore) writeJSON() error {
	doc := fileDocument{Positions: make([]fileRow, 0, len(fs.rows))}
	for _, p := range sortedPositions(fs.rows) {
		doc.Positions = append(doc.Positions, fileRow{Ticker: p.Ticker, Quantity: p.Quantity, AveragePrice: p.AverageCost})
	}

	jsonData, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')

	if fs.versions > 0 {
		fs.rotateVersions()
	}

	// Write to temp file in the same directory, then rename
	tmpFile, err := os.CreateTemp(filepath.Dir(fs.path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(jsonData); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, fs.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// rotateVersions shifts existing versions up and copies current to v1.
// v{N} -> deleted, v{N-1} -> v{N}, ..., v1 -> v2, current -> v1
func (fs *FileStore) rotateVersions() {
	os.Remove(fmt.Sprintf("%s.v%d", fs.path, fs.versions))

	for i := fs.versions; i > 1; i-- {
		src := fmt.Sprintf("%s.v%d", fs.path, i-1)
		dst := fmt.Sprintf("%s.v%d", fs.path, i)
		os.Rename(src, dst) // may not exist yet
	}

	if data, err := os.ReadFile(fs.path); err == nil {
		if err := os.WriteFile(fs.path+".v1", data, 0644); err != nil {
			fs.logger.Warn().Err(err).Str("path", fs.path).Msg("Failed to keep previous ledger version")
		}
	}
}
