// Package attr provides the ordered attribute container shared by every extractor.
//
// A Builder is filled incrementally during one extractor invocation and frozen
// when the telemetry record is emitted:
//
//	b := attr.NewBuilder()
//	b.PutString(semconv.HTTPRequestMethod, "GET")
//	b.PutInt(semconv.HTTPResponseStatusCode, 200)
//	span.SetAttributes(b.Attributes()...)
//
// Keys keep the position of their first write; a later write for the same key
// replaces the value in place. Empty strings and nil slices are dropped so that
// extractors never record placeholders for missing data.
package attr

import "go.opentelemetry.io/otel/attribute"

// Builder is an ordered, last-write-wins attribute map.
// It is not safe for concurrent use; one Builder belongs to one invocation.
type Builder struct {
	kvs   []attribute.KeyValue
	index map[attribute.Key]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[attribute.Key]int, 16)}
}

// Put stores kv, replacing any previous value for the same key.
// Invalid key-values (empty key or INVALID type) are ignored.
func (b *Builder) Put(kv attribute.KeyValue) {
	if !kv.Valid() {
		return
	}
	if b.index == nil {
		b.index = make(map[attribute.Key]int, 16)
	}
	if i, ok := b.index[kv.Key]; ok {
		b.kvs[i] = kv
		return
	}
	b.index[kv.Key] = len(b.kvs)
	b.kvs = append(b.kvs, kv)
}

// PutAll stores every kv in order.
func (b *Builder) PutAll(kvs ...attribute.KeyValue) {
	for _, kv := range kvs {
		b.Put(kv)
	}
}

// PutString stores a string value. Empty values are omitted.
func (b *Builder) PutString(key attribute.Key, value string) {
	if value == "" {
		return
	}
	b.Put(key.String(value))
}

// PutInt stores an integer value.
func (b *Builder) PutInt(key attribute.Key, value int) {
	b.Put(key.Int(value))
}

// PutInt64 stores an int64 value.
func (b *Builder) PutInt64(key attribute.Key, value int64) {
	b.Put(key.Int64(value))
}

// PutFloat64 stores a float64 value.
func (b *Builder) PutFloat64(key attribute.Key, value float64) {
	b.Put(key.Float64(value))
}

// PutBool stores a boolean value.
func (b *Builder) PutBool(key attribute.Key, value bool) {
	b.Put(key.Bool(value))
}

// PutStringSlice stores a string array. Empty slices are omitted.
func (b *Builder) PutStringSlice(key attribute.Key, values []string) {
	if len(values) == 0 {
		return
	}
	b.Put(key.StringSlice(values))
}

// Get returns the current value for key.
func (b *Builder) Get(key attribute.Key) (attribute.Value, bool) {
	i, ok := b.index[key]
	if !ok {
		return attribute.Value{}, false
	}
	return b.kvs[i].Value, true
}

// Remove deletes key, keeping the order of the remaining entries.
func (b *Builder) Remove(key attribute.Key) {
	i, ok := b.index[key]
	if !ok {
		return
	}
	b.kvs = append(b.kvs[:i], b.kvs[i+1:]...)
	delete(b.index, key)
	for j := i; j < len(b.kvs); j++ {
		b.index[b.kvs[j].Key] = j
	}
}

// Len returns the number of distinct keys.
func (b *Builder) Len() int {
	return len(b.kvs)
}

// Attributes returns a copy of the entries in insertion order.
func (b *Builder) Attributes() []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(b.kvs))
	copy(out, b.kvs)
	return out
}

// Set freezes the entries into an immutable attribute.Set.
func (b *Builder) Set() attribute.Set {
	return attribute.NewSet(b.kvs...)
}

// Filter returns a new Set with only the keys accepted by keep.
// Used to derive low-cardinality metric dimensions from span attributes.
func Filter(set attribute.Set, keep map[attribute.Key]struct{}) attribute.Set {
	filtered, _ := set.Filter(func(kv attribute.KeyValue) bool {
		_, ok := keep[kv.Key]
		return ok
	})
	return filtered
}

// Merge returns the union of a and b; b wins for duplicate keys.
func Merge(a, b attribute.Set) attribute.Set {
	kvs := make([]attribute.KeyValue, 0, a.Len()+b.Len())
	kvs = append(kvs, a.ToSlice()...)
	kvs = append(kvs, b.ToSlice()...)
	return attribute.NewSet(kvs...)
}

// Keys builds a lookup set for Filter.
func Keys(keys ...attribute.Key) map[attribute.Key]struct{} {
	m := make(map[attribute.Key]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}
