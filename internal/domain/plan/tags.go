package plan

import "strings"

// Tag is a free-form key=value annotation on a district, used among other
// things to mark community types for plan comparison.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TagSet is an ordered set of tags. Order is insertion order; a key may
// appear once.
type TagSet []Tag

// ParseTag splits "key=value" into a Tag. Input without '=' becomes a
// value-less tag.
func ParseTag(s string) Tag {
	key, value, _ := strings.Cut(s, "=")
	return Tag{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)}
}

// With returns a set with the tag added, replacing any existing value for
// the same key in place.
func (ts TagSet) With(tag Tag) TagSet {
	for i, t := range ts {
		if t.Key == tag.Key {
			out := make(TagSet, len(ts))
			copy(out, ts)
			out[i] = tag
			return out
		}
	}
	out := make(TagSet, len(ts), len(ts)+1)
	copy(out, ts)
	return append(out, tag)
}

// Without returns a set with the keyed tag removed.
func (ts TagSet) Without(key string) TagSet {
	out := make(TagSet, 0, len(ts))
	for _, t := range ts {
		if t.Key != key {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the value for a key.
func (ts TagSet) Get(key string) (string, bool) {
	for _, t := range ts {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Has reports whether the set contains the exact key=value pair.
func (ts TagSet) Has(key, value string) bool {
	v, ok := ts.Get(key)
	return ok && v == value
}

// Equal reports whether two sets hold the same pairs in the same order.
func (ts TagSet) Equal(other TagSet) bool {
	if len(ts) != len(other) {
		return false
	}
	for i := range ts {
		if ts[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the set as space-separated key=value pairs.
func (ts TagSet) String() string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.Key + "=" + t.Value
	}
	return strings.Join(parts, " ")
}
