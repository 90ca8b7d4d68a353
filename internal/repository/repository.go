// Package repository persists event manager state as a JSON snapshot file.
// It uses encoding/json directly on small record types so the on-disk format
// stays independent of the in-memory model.
package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Shivanand-hulikatti/event-manager/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned when the snapshot file does not exist yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is the complete persisted state of the event manager.
type Snapshot struct {
	NextID int
	Events []model.EventSnapshot
}

type fileRecord struct {
	NextID *int          `json:"next_id"`
	Events []eventRecord `json:"events"`
}

type eventRecord struct {
	ID           int                 `json:"id"`
	Name         string              `json:"name"`
	Date         model.Date          `json:"date"`
	Location     string              `json:"location"`
	Capacity     int                 `json:"capacity"`
	Category     string              `json:"category"`
	Price        json.Number         `json:"price"`
	Participants []model.Participant `json:"participants"`
	CheckedIn    []string            `json:"checked_in"`
	Details      *model.Details      `json:"details,omitempty"`
}

// Encode writes s to w in the snapshot file format.
func Encode(w io.Writer, s Snapshot) error {
	nextID := s.NextID
	rec := fileRecord{
		NextID: &nextID,
		Events: make([]eventRecord, 0, len(s.Events)),
	}
	for _, e := range s.Events {
		er := eventRecord{
			ID:           e.ID,
			Name:         e.Name,
			Date:         e.Date,
			Location:     e.Location,
			Capacity:     e.Capacity,
			Category:     e.Category,
			Price:        json.Number(e.Price.String()),
			Participants: e.Participants,
			CheckedIn:    e.CheckedIn,
		}
		if er.Participants == nil {
			er.Participants = []model.Participant{}
		}
		if er.CheckedIn == nil {
			er.CheckedIn = []string{}
		}
		if !e.Details.IsZero() {
			d := e.Details
			er.Details = &d
		}
		rec.Events = append(rec.Events, er)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot from r. A missing next_id defaults to 1; missing
// participants and checked_in default to empty.
func Decode(r io.Reader) (Snapshot, error) {
	var rec fileRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	s := Snapshot{NextID: 1, Events: make([]model.EventSnapshot, 0, len(rec.Events))}
	if rec.NextID != nil {
		s.NextID = *rec.NextID
	}
	for _, er := range rec.Events {
		if er.Date.IsZero() {
			return Snapshot{}, fmt.Errorf("decode snapshot: event %d: missing date", er.ID)
		}
		price, err := decimal.NewFromString(string(er.Price))
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot: event %d: invalid price %q", er.ID, er.Price)
		}
		es := model.EventSnapshot{
			ID: er.ID,
			EventInfo: model.EventInfo{
				Name:     er.Name,
				Date:     er.Date,
				Location: er.Location,
				Capacity: er.Capacity,
				Category: er.Category,
				Price:    price,
			},
			Participants: er.Participants,
			CheckedIn:    er.CheckedIn,
		}
		if er.Details != nil {
			es.Details = *er.Details
		}
		s.Events = append(s.Events, es)
	}
	return s, nil
}

// SnapshotRepository reads and writes snapshot files.
type SnapshotRepository struct {
	log *zap.Logger
}

// NewSnapshotRepository constructs a SnapshotRepository.
func NewSnapshotRepository(log *zap.Logger) *SnapshotRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotRepository{log: log}
}

// Save writes s to path. The data goes to a temp file in the same directory
// first and is renamed over path, so a failed write never truncates the
// previous snapshot.
func (r *SnapshotRepository) Save(path string, s Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return err
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	r.log.Debug("snapshot written",
		zap.String("path", path),
		zap.Int("events", len(s.Events)),
		zap.Int("bytes", buf.Len()),
	)
	return nil
}

// Load reads the snapshot at path. It returns ErrNoSnapshot if the file does
// not exist.
func (r *SnapshotRepository) Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, path)
		}
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	s, err := Decode(bytes.NewReader(data))
	if err != nil {
		return Snapshot{}, err
	}

	r.log.Debug("snapshot read",
		zap.String("path", path),
		zap.Int("events", len(s.Events)),
		zap.Int("next_id", s.NextID),
	)
	return s, nil
}
