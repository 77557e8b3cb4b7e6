package prefs

import "fmt"

// Store maps preference keys to tagged values. Missing keys read as Absent.
type Store map[Key]Value

// Set stores v under k after checking the variant matches the key's kind.
// Ints are accepted for float keys.
func (s Store) Set(k Key, v Value) error {
	if v.IsAbsent() {
		delete(s, k)
		return nil
	}
	want := k.Kind()
	if v.Kind() != want && !(want == KindFloat && v.Kind() == KindInt) {
		return fmt.Errorf("pref %s: want %s, got %s", k, want, v.Kind())
	}
	s[k] = v
	return nil
}

func (s Store) Get(k Key) Value {
	return s[k]
}

func (s Store) IntOr(k Key, def int64) int64 {
	if n, ok := s[k].Int(); ok {
		return n
	}
	return def
}

func (s Store) FloatOr(k Key, def float64) float64 {
	if f, ok := s[k].Float(); ok {
		return f
	}
	return def
}

func (s Store) StringOr(k Key, def string) string {
	if v, ok := s[k].Str(); ok {
		return v
	}
	return def
}
