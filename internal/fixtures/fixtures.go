// Package fixtures reads origin batches and target collections from delimited text files.
//
// Tab-separated files carry no quoting: every line is split on tabs. Comma-separated files
// follow RFC 4180, so titles containing commas or quotes must be quoted.
package fixtures

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gcbaptista/go-titlematch/model"
)

// Format is the delimiter convention of a file.
type Format string

const (
	FormatTSV Format = "tsv"
	FormatCSV Format = "csv"
)

const byteOrderMark = "\ufeff"

// FormatForPath picks the format from the file extension; anything but .csv is read as TSV.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatTSV
}

// readRows returns every non-blank row of r.
func readRows(r io.Reader, format Format) ([][]string, error) {
	if format == FormatCSV {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv: %w", err)
		}
		return rows, nil
	}

	var rows [][]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, strings.Split(line, "\t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tsv: %w", err)
	}
	return rows, nil
}

// isOriginHeader reports whether a first row names its columns rather than holding data.
func isOriginHeader(row []string) bool {
	if len(row) < 2 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(row[0], byteOrderMark)))
	second := strings.ToLower(strings.TrimSpace(row[1]))
	return (first == "id" || strings.HasSuffix(first, "_id")) && second == "title"
}

// ReadOrigins reads two-column rows (identifier, title) in file order.
// A header row "id<TAB>title" (or any "*_id" first column) is skipped.
// Duplicate identifiers are kept; the collection matcher applies its duplicate policy.
func ReadOrigins(r io.Reader, format Format) ([]model.OriginEntry, error) {
	rows, err := readRows(r, format)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && isOriginHeader(rows[0]) {
		rows = rows[1:]
	}

	entries := make([]model.OriginEntry, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: expected identifier and title, got %d column(s)", i+1, len(row))
		}
		id := strings.TrimSpace(strings.TrimPrefix(row[0], byteOrderMark))
		if id == "" {
			return nil, fmt.Errorf("row %d: empty identifier", i+1)
		}
		entries = append(entries, model.OriginEntry{ID: id, Title: strings.TrimSpace(row[1])})
	}
	return entries, nil
}

// ReadTargets reads a header row followed by documents. Every column becomes a document field.
func ReadTargets(r io.Reader, format Format) ([]model.TargetDocument, error) {
	rows, err := readRows(r, format)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("target file is empty: a header row is required")
	}

	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, byteOrderMark))
		if header[i] == "" {
			return nil, fmt.Errorf("header column %d has no name", i+1)
		}
	}

	docs := make([]model.TargetDocument, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d: %d columns but the header names %d", i+2, len(row), len(header))
		}
		doc := make(model.TargetDocument, len(header))
		for col, value := range row {
			doc[header[col]] = strings.TrimSpace(value)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ReadOriginsFile opens path and reads it with ReadOrigins.
func ReadOriginsFile(path string) ([]model.OriginEntry, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open origins: %w", err)
	}
	defer file.Close()

	entries, err := ReadOrigins(file, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ReadTargetsFile opens path and reads it with ReadTargets.
func ReadTargetsFile(path string) ([]model.TargetDocument, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open targets: %w", err)
	}
	defer file.Close()

	docs, err := ReadTargets(file, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}
