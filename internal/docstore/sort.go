package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// Sort orders query results by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Asc sorts by field ascending.
func Asc(field string) Sort { return Sort{Field: field} }

// Desc sorts by field descending.
func Desc(field string) Sort { return Sort{Field: field, Desc: true} }

// SortDocuments stably sorts docs by the given keys, first key most significant.
// Missing values order before booleans, booleans before numbers, numbers before strings.
func SortDocuments(docs []Document, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, s := range sorts {
			c := compareValues(docs[i][s.Field], docs[j][s.Field])
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

type valueKind int

const (
	kindMissing valueKind = iota
	kindBool
	kindNumber
	kindString
	kindOther
)

func kindOf(v any) valueKind {
	switch v.(type) {
	case nil:
		return kindMissing
	case bool:
		return kindBool
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return kindNumber
	case string:
		return kindString
	default:
		return kindOther
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

// compareValues returns -1, 0 or 1.
func compareValues(a, b any) int {
	ka, kb := kindOf(a), kindOf(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}
	switch ka {
	case kindBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case kindNumber:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case kindString:
		return strings.Compare(a.(string), b.(string))
	}
	return 0
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", v)
}
