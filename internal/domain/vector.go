package domain

// VectorRecord is one row proposed to the vector index: id, text, metadata
// and a precomputed embedding. The index owns the row once upserted.
type VectorRecord struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	ProjectName string         `json:"project_name"`
	Metadata    map[string]any `json:"metadata"`
	Vector      []float32      `json:"-"`
}

// SearchHit is one nearest-neighbor match, ordered by ascending distance.
// Distance is cosine distance in [0,2]; similarity normalization is the
// retriever's concern, not the index's.
type SearchHit struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	ProjectName string         `json:"project_name"`
	Metadata    map[string]any `json:"metadata"`
	Distance    float64        `json:"distance"`
}

// Source describes where a retrieved answer fragment came from.
type Source struct {
	Project    string  `json:"project"`
	Page       int     `json:"page"`
	Source     string  `json:"source"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}
