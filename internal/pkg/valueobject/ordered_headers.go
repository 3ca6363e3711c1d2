package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ErrScanHeadersNotBytes indicates the database value is not a byte slice.
var ErrScanHeadersNotBytes = errors.New("valueobject: orderedheaders scan value is not []byte")

// HeaderPair is a single ordered key/value entry.
type HeaderPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OrderedHeaders is an insertion-order-stable string-to-string map.
//
// A plain Go map loses insertion order, and JSON object key order is not
// guaranteed by encoding/json on decode, so this stores pairs in a slice and
// round-trips through a JSON array instead of a JSON object.
type OrderedHeaders struct {
	pairs []HeaderPair
	index map[string]int
}

// NewOrderedHeaders returns an empty OrderedHeaders.
func NewOrderedHeaders() OrderedHeaders {
	return OrderedHeaders{}
}

// Set adds a new header, or updates the value of an existing one in place
// (preserving its original position).
func (h *OrderedHeaders) Set(key, value string) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[key]; ok {
		h.pairs[i].Value = value
		return
	}
	h.index[key] = len(h.pairs)
	h.pairs = append(h.pairs, HeaderPair{Key: key, Value: value})
}

// Get returns the value for key and whether it was present.
func (h OrderedHeaders) Get(key string) (string, bool) {
	if h.index == nil {
		return "", false
	}
	i, ok := h.index[key]
	if !ok {
		return "", false
	}
	return h.pairs[i].Value, true
}

// Has reports whether key is present.
func (h OrderedHeaders) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Delete removes key, if present, shifting later entries down by one.
func (h *OrderedHeaders) Delete(key string) {
	if h.index == nil {
		return
	}
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.pairs = append(h.pairs[:i], h.pairs[i+1:]...)
	delete(h.index, key)
	for k, idx := range h.index {
		if idx > i {
			h.index[k] = idx - 1
		}
	}
}

// Pairs returns the headers in insertion order. The returned slice must not
// be mutated by the caller.
func (h OrderedHeaders) Pairs() []HeaderPair {
	return h.pairs
}

// Len returns the number of headers.
func (h OrderedHeaders) Len() int {
	return len(h.pairs)
}

// Clone returns a deep copy safe for independent mutation.
func (h OrderedHeaders) Clone() OrderedHeaders {
	out := OrderedHeaders{
		pairs: make([]HeaderPair, len(h.pairs)),
		index: make(map[string]int, len(h.index)),
	}
	copy(out.pairs, h.pairs)
	for k, v := range h.index {
		out.index[k] = v
	}
	return out
}

// ---------------------------------------------------------------------
// SQL INTERFACES
// ---------------------------------------------------------------------

// Value implements driver.Valuer for OrderedHeaders.
func (h OrderedHeaders) Value() (driver.Value, error) {
	pairs := h.pairs
	if pairs == nil {
		pairs = []HeaderPair{}
	}
	return json.Marshal(pairs)
}

// Scan implements sql.Scanner for OrderedHeaders.
func (h *OrderedHeaders) Scan(value any) error {
	if value == nil {
		*h = OrderedHeaders{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrScanHeadersNotBytes
	}

	var pairs []HeaderPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return err
	}

	out := OrderedHeaders{
		pairs: make([]HeaderPair, 0, len(pairs)),
		index: make(map[string]int, len(pairs)),
	}
	for _, p := range pairs {
		out.Set(p.Key, p.Value)
	}
	*h = out
	return nil
}
