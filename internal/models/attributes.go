package models

// Attributes is an ordered key=value mapping from a directive line.
// Insertion order is preserved so rewritten directives keep the
// source layout; setting an existing key updates it in place.
type Attributes struct {
	keys   []string
	values map[string]string
}

// Set stores value under key, appending the key on first insert.
func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the value for key and whether the key is present.
func (a *Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Value returns the value for key, or "" when absent.
func (a *Attributes) Value(key string) string {
	return a.values[key]
}

// Keys returns the keys in insertion order. The slice is shared;
// callers must not modify it.
func (a *Attributes) Keys() []string {
	return a.keys
}

// Len returns the number of stored keys.
func (a *Attributes) Len() int {
	return len(a.keys)
}
