package types

import "time"

// PreferenceRecord is the atomic unit of stored knowledge about the user.
// Records carry the canonical statement, its embedding, and provenance back
// to the conversation turns that produced it.
type PreferenceRecord struct {
	ID       string `json:"id"`       // Unique identifier, assigned at creation, immutable
	Text     string `json:"text"`     // Canonical statement (e.g. "prefers window seats")
	Category string `json:"category"` // Coarse label (travel, food, schedule, ...)

	// Embedding is the vector representation of Text. It is recomputed
	// whenever Text changes so the two never drift apart.
	Embedding []float64 `json:"embedding"`

	// Confidence is the extraction certainty in [0,1]. It is a tie-break
	// signal for retrieval ordering, never a hard filter.
	Confidence float64 `json:"confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"` // Advances on merge

	// SourceTurnIDs lists the conversation turns that contributed evidence,
	// in the order they were observed. Grows on merge, never shrinks.
	SourceTurnIDs []string `json:"source_turn_ids"`
}

// Clone returns a deep copy of the record so callers cannot mutate
// store-owned state through returned pointers.
func (p *PreferenceRecord) Clone() *PreferenceRecord {
	dup := *p
	dup.Embedding = append([]float64(nil), p.Embedding...)
	dup.SourceTurnIDs = append([]string(nil), p.SourceTurnIDs...)
	return &dup
}

// Candidate is a preference proposal produced by the extractor for a single
// conversation turn. It has no identity yet; the store decides whether it
// becomes a new record or merges into an existing one.
type Candidate struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	TurnID     string  `json:"turn_id"`
}

// Normalize clamps Confidence into [0,1] and maps unknown categories to
// CategoryUncategorized. It is applied at the extraction boundary so the
// store only ever sees well-formed candidates.
func (c *Candidate) Normalize() {
	c.Confidence = ClampConfidence(c.Confidence)
	c.Category = NormalizeCategory(c.Category)
}

// ClampConfidence forces a confidence score into the [0,1] range.
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
