// Package store provides durable, deduplicated storage for preference
// records with similarity-based retrieval.
//
// The storage contract is deliberately small: callers upsert extraction
// candidates and query by free text. Deduplication against the merge
// threshold happens inside Upsert, so no caller can ever create two records
// of the same category above the threshold. Implementations hide their
// search strategy behind the interface; the default JSON-file store uses a
// linear scan, and the postgres store uses a pgvector index, and callers
// cannot tell them apart.
package store

import (
	"context"
	"errors"

	"github.com/scrypster/penchant/pkg/types"
)

var (
	// ErrEmptyStore indicates a query against a store with no records at
	// all. Distinct from a short result set: if any records exist, Query
	// returns up to top-k of them regardless of how weak the matches are.
	ErrEmptyStore = errors.New("preference store is empty")

	// ErrNotFound indicates that no record matched a retraction.
	ErrNotFound = errors.New("preference not found")

	// ErrCorruptStore indicates the persisted store could not be decoded.
	// Fatal for that store: the session cannot continue with persistence,
	// and the caller must be told rather than silently losing data.
	ErrCorruptStore = errors.New("preference store is corrupt")
)

// DefaultMergeThreshold is the cosine similarity at or above which a new
// candidate merges into an existing same-category record instead of
// creating a duplicate.
const DefaultMergeThreshold = 0.85

// Matcher selects records for retraction, either by exact ID or by text
// similarity at or above a threshold. When ID is set it takes precedence.
type Matcher struct {
	ID        string
	Text      string
	Threshold float64
}

// MatchID builds a matcher for a single record by its identifier.
func MatchID(id string) Matcher {
	return Matcher{ID: id}
}

// MatchSimilar builds a matcher for all records whose similarity to text is
// at or above threshold.
func MatchSimilar(text string, threshold float64) Matcher {
	return Matcher{Text: text, Threshold: threshold}
}

// PreferenceStore is the storage contract for preference records.
//
// All mutating operations persist durably before returning and are safe for
// concurrent use; an in-flight mutation blocks later ones on the same store.
type PreferenceStore interface {
	// Upsert embeds the candidate's text and either merges it into the
	// nearest same-category record (similarity >= merge threshold) or
	// inserts a new record. The resulting record is returned either way;
	// a merge is only observable through updated_at advancing past
	// created_at.
	Upsert(ctx context.Context, cand types.Candidate) (*types.PreferenceRecord, error)

	// Query embeds text and returns up to topK records ordered by
	// descending similarity, ties broken by descending confidence then by
	// earliest created_at. category, when non-empty, restricts the scan.
	// Returns ErrEmptyStore when the store holds no records at all.
	Query(ctx context.Context, text string, topK int, category string) ([]*types.PreferenceRecord, error)

	// Retract removes the record(s) selected by the matcher and returns
	// how many were removed. Returns ErrNotFound when nothing matched.
	Retract(ctx context.Context, m Matcher) (int, error)

	// ListAll returns every record in insertion order, for display and
	// debugging.
	ListAll(ctx context.Context) ([]*types.PreferenceRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
