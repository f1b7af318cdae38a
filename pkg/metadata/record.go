package metadata

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
)

// PathField is the record field holding the current physical location of the
// file the record describes. The file store owns this field: it is written on
// add, on remove (deleted-area path) and on restore (new live path).
const PathField = "path"

// OriginalFileField is the conventional field holding the base name a file
// had before it was added.
const OriginalFileField = "original_file"

// Record maps field names to values for one stored file.
//
// Values are strings or primitives (bool, integers, floats). Backends that
// serialize through JSON return whole numbers as float64.
type Record map[string]any

// Path returns the value of PathField, or "" if absent or not a string.
func (r Record) Path() string {
	p, _ := r[PathField].(string)
	return p
}

// Clone returns a shallow copy of the record. Nil stays nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Merge copies every field of other into r, overwriting identical keys.
func (r Record) Merge(other Record) {
	maps.Copy(r, other)
}

// String returns the value of a field as a string, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// SortedKeys returns the record's field names in lexical order.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EncodeRecord serializes a record for the key-value and SQL backends.
func EncodeRecord(r Record) ([]byte, error) {
	if r == nil {
		r = Record{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: encode record: %w", ErrPersistence, err)
	}
	return data, nil
}

// DecodeRecord is the inverse of EncodeRecord. Numbers decode as float64.
func DecodeRecord(data []byte) (Record, error) {
	rec := Record{}
	if len(data) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode record: %w", ErrPersistence, err)
	}
	return rec, nil
}
