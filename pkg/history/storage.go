// Package history persists a local record of executed donations and
// subscriptions so the user can review what was sent without a block
// explorer.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"giveflow/pkg/types"
)

const (
	DefaultStorageFileName = ".giveflow-history.json"
)

// RecordKind distinguishes one-time donations from subscriptions
type RecordKind string

const (
	KindDonation     RecordKind = "donation"
	KindSubscription RecordKind = "subscription"
)

// Record is one executed donation or subscription
type Record struct {
	ID            string             `json:"id"`
	Kind          RecordKind         `json:"kind"`
	Path          types.DonationPath `json:"path"`
	SourceSymbol  string             `json:"source_symbol"`
	SourceChainID int64              `json:"source_chain_id"`
	AmountUSD     string             `json:"amount_usd"`
	TxHashes      []string           `json:"tx_hashes"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Storage handles persistence of donation records
type Storage struct {
	filePath string
	mu       sync.Mutex
	records  map[string]*Record
}

type recordFile struct {
	Records map[string]*Record `json:"records"`
}

// NewStorage creates a new storage instance. An empty filePath defaults to
// the user's home directory.
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	storage := &Storage{
		filePath: filePath,
		records:  make(map[string]*Record),
	}

	// A missing file is fine, it is created on first save
	if err := storage.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return storage, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var file recordFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = file.Records
	if s.records == nil {
		s.records = make(map[string]*Record)
	}

	return nil
}

// save writes records to a temporary file and renames it for an atomic write
func (s *Storage) save() error {
	data, err := json.MarshalIndent(recordFile{Records: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Append stores a new record
func (s *Storage) Append(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.records[record.ID] = record

	return s.save()
}

// Get retrieves a record by id
func (s *Storage) Get(id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("record '%s' not found", id)
	}

	return record, nil
}

// List returns all records, newest first
func (s *Storage) List() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records
}

// ListByKind returns records filtered by kind, newest first
func (s *Storage) ListByKind(kind RecordKind) []*Record {
	all := s.List()
	records := make([]*Record, 0)
	for _, record := range all {
		if record.Kind == kind {
			records = append(records, record)
		}
	}

	return records
}

// Count returns the total number of records
func (s *Storage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// FilePath returns the storage file path
func (s *Storage) FilePath() string {
	return s.filePath
}
