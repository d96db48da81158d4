// Package model is the typed representation of OAL/MAL/LAL rules,
// expressions and runtime samples. It is pure data:
// construction and deterministic serialization only, no parsing or
// execution logic lives here.
package model

import (
	"sort"
	"strings"
)

// Labels is an ordered string-to-string mapping. Ordering is
// insertion order for iteration but label-set identity (used for
// grouping and equality) is always computed over the sorted keys, so
// two Labels built in different orders with the same key/value pairs
// compare equal.
type Labels struct {
	keys   []string
	values map[string]string
}

// NewLabels builds a Labels set from the given key/value pairs, preserving
// the order they were supplied in for iteration.
func NewLabels(pairs ...[2]string) Labels {
	l := Labels{values: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		l.Set(p[0], p[1])
	}
	return l
}

// Set inserts or overwrites a label; overwriting does not change its
// position in iteration order.
func (l *Labels) Set(key, value string) {
	if l.values == nil {
		l.values = make(map[string]string)
	}
	if _, ok := l.values[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.values[key] = value
}

// Delete removes a label if present.
func (l *Labels) Delete(key string) {
	if _, ok := l.values[key]; !ok {
		return
	}
	delete(l.values, key)
	for i, k := range l.keys {
		if k == key {
			l.keys = append(l.keys[:i], l.keys[i+1:]...)
			break
		}
	}
}

// Get returns the label value and whether it was present.
func (l Labels) Get(key string) (string, bool) {
	v, ok := l.values[key]
	return v, ok
}

// Len returns the number of labels.
func (l Labels) Len() int { return len(l.keys) }

// Keys returns the label keys in insertion order.
func (l Labels) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

// Clone returns an independent copy so callers can mutate it without
// affecting the sample it came from (SampleFamily operations never
// mutate their inputs).
func (l Labels) Clone() Labels {
	clone := Labels{keys: append([]string(nil), l.keys...), values: make(map[string]string, len(l.values))}
	for k, v := range l.values {
		clone.values[k] = v
	}
	return clone
}

// Project returns a new Labels containing only the given keys, in the
// order requested. Missing keys are silently skipped.
func (l Labels) Project(keys []string) Labels {
	out := Labels{values: make(map[string]string, len(keys))}
	for _, k := range keys {
		if v, ok := l.values[k]; ok {
			out.Set(k, v)
		}
	}
	return out
}

// SortKey returns a deterministic string identifying this label set,
// used both as a group-by key and for manifest ordering.
func (l Labels) SortKey() string {
	keys := append([]string(nil), l.keys...)
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(l.values[k])
	}
	return b.String()
}

// Equal reports whether two label sets carry the same keys and values,
// irrespective of insertion order.
func (l Labels) Equal(other Labels) bool {
	if len(l.values) != len(other.values) {
		return false
	}
	for k, v := range l.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Sample is a single named, labeled observation. Immutable after creation:
// all mutating-looking helpers return a new Sample.
type Sample struct {
	Name      string
	Labels    Labels
	Value     float64
	Timestamp int64 // milliseconds since epoch
}

// WithLabels returns a copy of the sample with its labels replaced.
func (s Sample) WithLabels(l Labels) Sample {
	s.Labels = l
	return s
}

// WithValue returns a copy of the sample with its value replaced.
func (s Sample) WithValue(v float64) Sample {
	s.Value = v
	return s
}

// SourceRecord is one raw observation the OAL dispatch(source) operation
// fans out to every metric class registered for SourceName: Fields holds
// the field->value pairs an OAL `from(Source.field)` clause projects from,
// Labels carries the entity-identifying tags the resulting samples are
// built with.
type SourceRecord struct {
	SourceName string
	Labels     Labels
	Fields     map[string]float64
	Timestamp  int64
}
