package model

// TargetDocument is a document stored in a local target collection.
// It maps field names (e.g., "Paper_ID", "title") to their text values.
type TargetDocument map[string]string

// Get returns the value of a field and whether it is set.
func (d TargetDocument) Get(field string) (string, bool) {
	value, ok := d[field]
	return value, ok
}

// Clone returns a copy of the document.
func (d TargetDocument) Clone() TargetDocument {
	clone := make(TargetDocument, len(d))
	for k, v := range d {
		clone[k] = v
	}
	return clone
}

// Source returns the document as a generic field map, as search backends report it.
func (d TargetDocument) Source() map[string]interface{} {
	source := make(map[string]interface{}, len(d))
	for k, v := range d {
		source[k] = v
	}
	return source
}
