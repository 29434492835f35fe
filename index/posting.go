package index

// PostingEntry represents a document that contains a term, the field it appeared in,
// how often it appeared there and at which token positions.
type PostingEntry struct {
	DocID     uint32 // Internal numeric ID for efficiency
	FieldName string // The name of the field where the term was found (e.g., "title")
	TermFreq  int    // Occurrences of the term within this field
	Positions []int  // Token positions, ascending, used by phrase queries
}

// PostingList is a slice of PostingEntry, kept sorted by DocID then FieldName.
type PostingList []PostingEntry
