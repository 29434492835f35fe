package model

// OriginDocument is a document from the source collection that is matched against a target collection.
// It is a value type and is never modified after construction.
type OriginDocument struct {
	ID       string `json:"id"`        // Unique within Dataset
	Title    string `json:"title"`     // Text used as the search query
	Dataset  string `json:"dataset"`   // Name of the dataset the document comes from (e.g., "wos")
	IsOrigin bool   `json:"is_origin"` // Always true for documents entering matching as origins
}

// NewOriginDocument creates an origin document for the given dataset.
func NewOriginDocument(id, title, dataset string) OriginDocument {
	return OriginDocument{
		ID:       id,
		Title:    title,
		Dataset:  dataset,
		IsOrigin: true,
	}
}

// OriginEntry is one row of a batch input: an origin identifier and its title.
// Unlike a map, a slice of entries can carry duplicate identifiers, which the
// collection matcher resolves according to its duplicate policy.
type OriginEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Candidate is a single search hit for an origin title in a target collection.
type Candidate struct {
	ID      string  `json:"id"`      // Unique within the target dataset
	Title   string  `json:"title"`   // Value of the queried text field
	Dataset string  `json:"dataset"` // Target collection the hit came from
	Score   float64 `json:"score"`   // Relevance score, higher is more relevant

	fuzzRatio   float64
	fuzzOrigin  string
	hasFuzzRate bool
}

// CachedFuzzRatio returns the fuzzy similarity between originTitle and the candidate title.
// The value is computed with compute on first use and cached for subsequent calls with
// the same origin title.
func (c *Candidate) CachedFuzzRatio(originTitle string, compute func(a, b string) float64) float64 {
	if c.hasFuzzRate && c.fuzzOrigin == originTitle {
		return c.fuzzRatio
	}
	c.fuzzRatio = compute(originTitle, c.Title)
	c.fuzzOrigin = originTitle
	c.hasFuzzRate = true
	return c.fuzzRatio
}

// FuzzRatio returns the cached fuzzy similarity and whether one has been computed.
func (c *Candidate) FuzzRatio() (float64, bool) {
	return c.fuzzRatio, c.hasFuzzRate
}
