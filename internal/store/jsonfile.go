package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/pkg/types"
)

// storeDocument is the on-disk layout of a file store snapshot.
type storeDocument struct {
	Preferences []*types.PreferenceRecord `json:"preferences"`
}

// FileStore is the default PreferenceStore: a JSON document on disk with an
// in-memory working copy and linear-scan similarity search. Preference sets
// per user are small (tens to low hundreds), so an O(n) scan per query is
// the right trade against carrying an index.
//
// Every mutation rewrites the full snapshot via write-to-temp-then-rename,
// so a crash mid-write never corrupts the durable copy.
type FileStore struct {
	path      string
	embedder  llm.EmbeddingGenerator
	threshold float64

	mu      sync.Mutex
	records []*types.PreferenceRecord
}

// FileStoreOption customizes a FileStore.
type FileStoreOption func(*FileStore)

// WithMergeThreshold overrides the default cosine similarity merge threshold.
func WithMergeThreshold(threshold float64) FileStoreOption {
	return func(s *FileStore) { s.threshold = threshold }
}

// NewFileStore opens (or initializes) the store at path. A missing file is
// an empty store; an unreadable or malformed file is ErrCorruptStore.
func NewFileStore(path string, embedder llm.EmbeddingGenerator, opts ...FileStoreOption) (*FileStore, error) {
	s := &FileStore{
		path:      path,
		embedder:  embedder,
		threshold: DefaultMergeThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the persisted snapshot into memory.
func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.records = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrCorruptStore, s.path, err)
	}

	var doc storeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrCorruptStore, s.path, err)
	}
	s.records = doc.Preferences
	return nil
}

// persist writes the full snapshot atomically: marshal, write to a temp file
// in the same directory, fsync, then rename over the destination.
func (s *FileStore) persist() error {
	doc := storeDocument{Preferences: s.records}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// Upsert embeds the candidate and merges or inserts per the store contract.
//
// Merge rule when a same-category record sits at or above the threshold:
// the most recent statement wins the text field (whether it contradicts or
// elaborates), confidence rises to the max of the two, the source turn is
// appended, and the embedding is refreshed to match the new text.
func (s *FileStore) Upsert(ctx context.Context, cand types.Candidate) (*types.PreferenceRecord, error) {
	cand.Normalize()

	embedding, err := s.embedder.Embed(ctx, cand.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed candidate: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if best := s.nearestLocked(embedding, cand.Category); best != nil {
		if CosineSimilarity(embedding, best.Embedding) >= s.threshold {
			return s.mergeLocked(best, cand, embedding)
		}
	}
	return s.insertLocked(cand, embedding)
}

// nearestLocked returns the most similar record in the given category, or
// nil when the category holds no records. Caller must hold s.mu.
func (s *FileStore) nearestLocked(embedding []float64, category string) *types.PreferenceRecord {
	var best *types.PreferenceRecord
	bestSim := -1.0
	for _, rec := range s.records {
		if rec.Category != category {
			continue
		}
		if sim := CosineSimilarity(embedding, rec.Embedding); sim > bestSim {
			best, bestSim = rec, sim
		}
	}
	return best
}

func (s *FileStore) insertLocked(cand types.Candidate, embedding []float64) (*types.PreferenceRecord, error) {
	now := time.Now().UTC()
	rec := &types.PreferenceRecord{
		ID:            uuid.NewString(),
		Text:          cand.Text,
		Category:      cand.Category,
		Embedding:     embedding,
		Confidence:    cand.Confidence,
		CreatedAt:     now,
		UpdatedAt:     now,
		SourceTurnIDs: []string{cand.TurnID},
	}
	s.records = append(s.records, rec)

	if err := s.persist(); err != nil {
		// Roll back the in-memory insert so memory and disk stay in step.
		s.records = s.records[:len(s.records)-1]
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *FileStore) mergeLocked(rec *types.PreferenceRecord, cand types.Candidate, embedding []float64) (*types.PreferenceRecord, error) {
	prevRecords := s.snapshotLocked()

	rec.Text = cand.Text
	rec.Embedding = embedding
	if cand.Confidence > rec.Confidence {
		rec.Confidence = cand.Confidence
	}
	if cand.TurnID != "" && !containsString(rec.SourceTurnIDs, cand.TurnID) {
		rec.SourceTurnIDs = append(rec.SourceTurnIDs, cand.TurnID)
	}
	rec.UpdatedAt = time.Now().UTC()

	// The refreshed embedding may have pulled other same-category records
	// above the threshold; absorb them so the dedup invariant holds after
	// any sequence of upserts.
	s.absorbNeighborsLocked(rec)

	if err := s.persist(); err != nil {
		s.records = prevRecords
		return nil, err
	}
	return rec.Clone(), nil
}

// absorbNeighborsLocked folds every other same-category record at or above
// the merge threshold into rec: turn ids are unioned in observed order,
// confidence rises to the max, and the absorbed records are dropped.
// Caller must hold s.mu.
func (s *FileStore) absorbNeighborsLocked(rec *types.PreferenceRecord) {
	kept := s.records[:0:0]
	for _, other := range s.records {
		if other == rec || other.Category != rec.Category ||
			CosineSimilarity(rec.Embedding, other.Embedding) < s.threshold {
			kept = append(kept, other)
			continue
		}
		if other.Confidence > rec.Confidence {
			rec.Confidence = other.Confidence
		}
		for _, turnID := range other.SourceTurnIDs {
			if !containsString(rec.SourceTurnIDs, turnID) {
				rec.SourceTurnIDs = append(rec.SourceTurnIDs, turnID)
			}
		}
		if other.CreatedAt.Before(rec.CreatedAt) {
			rec.CreatedAt = other.CreatedAt
		}
	}
	s.records = kept
}

// snapshotLocked deep-copies the record list for rollback on persist
// failure. Caller must hold s.mu.
func (s *FileStore) snapshotLocked() []*types.PreferenceRecord {
	out := make([]*types.PreferenceRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}

// Query implements similarity retrieval over a linear scan of all records.
func (s *FileStore) Query(ctx context.Context, text string, topK int, category string) ([]*types.PreferenceRecord, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// The emptiness check and the scan share one critical section so a
	// concurrent retraction cannot empty the store between them.
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return nil, ErrEmptyStore
	}

	type scored struct {
		rec *types.PreferenceRecord
		sim float64
	}
	var matches []scored
	for _, rec := range s.records {
		if category != "" && rec.Category != category {
			continue
		}
		matches = append(matches, scored{rec: rec, sim: CosineSimilarity(embedding, rec.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].sim != matches[j].sim {
			return matches[i].sim > matches[j].sim
		}
		if matches[i].rec.Confidence != matches[j].rec.Confidence {
			return matches[i].rec.Confidence > matches[j].rec.Confidence
		}
		return matches[i].rec.CreatedAt.Before(matches[j].rec.CreatedAt)
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	out := make([]*types.PreferenceRecord, len(matches))
	for i, m := range matches {
		out[i] = m.rec.Clone()
	}
	return out, nil
}

// Retract removes records by ID or by text similarity above the matcher's
// threshold.
func (s *FileStore) Retract(ctx context.Context, m Matcher) (int, error) {
	if m.ID != "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.removeLocked(func(rec *types.PreferenceRecord) bool {
			return rec.ID == m.ID
		})
	}

	if m.Text == "" {
		return 0, fmt.Errorf("matcher requires an id or text")
	}
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultMergeThreshold
	}

	embedding, err := s.embedder.Embed(ctx, m.Text)
	if err != nil {
		return 0, fmt.Errorf("failed to embed retraction text: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(func(rec *types.PreferenceRecord) bool {
		return CosineSimilarity(embedding, rec.Embedding) >= threshold
	})
}

// removeLocked deletes all records matching the predicate and persists.
// Caller must hold s.mu.
func (s *FileStore) removeLocked(match func(*types.PreferenceRecord) bool) (int, error) {
	kept := s.records[:0:0]
	removed := 0
	for _, rec := range s.records {
		if match(rec) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, ErrNotFound
	}

	prev := s.records
	s.records = kept
	if err := s.persist(); err != nil {
		s.records = prev
		return 0, err
	}
	return removed, nil
}

// ListAll returns every record in insertion order.
func (s *FileStore) ListAll(ctx context.Context) ([]*types.PreferenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.PreferenceRecord, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out, nil
}

// Close is a no-op for the file store; every mutation already persists.
func (s *FileStore) Close() error {
	return nil
}

func containsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// Compile-time assertion.
var _ PreferenceStore = (*FileStore)(nil)
