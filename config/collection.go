package config

import (
	"fmt"
	"strings"
)

// CollectionSettings describes a target collection held by the local index.
type CollectionSettings struct {
	Name             string   `json:"name"`
	IDField          string   `json:"id_field"`          // Field holding the document identifier
	SearchableFields []string `json:"searchable_fields"` // Fields tokenized into the inverted index
}

// ApplyDefaults applies default values to the collection settings
func (c *CollectionSettings) ApplyDefaults() {
	if c.IDField == "" {
		c.IDField = "Paper_ID"
	}
	if len(c.SearchableFields) == 0 {
		c.SearchableFields = []string{"title"}
	}
}

// Validate checks that the collection settings can be used to build an index.
func (c *CollectionSettings) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == ".." {
		return fmt.Errorf("collection name '%s' cannot contain path separators", c.Name)
	}
	if strings.TrimSpace(c.IDField) == "" {
		return fmt.Errorf("id field cannot be empty")
	}
	seen := make(map[string]bool, len(c.SearchableFields))
	for _, field := range c.SearchableFields {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("searchable field names cannot be empty")
		}
		if seen[field] {
			return fmt.Errorf("searchable field '%s' is listed twice", field)
		}
		seen[field] = true
	}
	return nil
}

// IsSearchable reports whether field is indexed.
func (c *CollectionSettings) IsSearchable(field string) bool {
	for _, f := range c.SearchableFields {
		if f == field {
			return true
		}
	}
	return false
}
