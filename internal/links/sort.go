package links

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	db "github.com/sundayezeilo/linkpool/internal/db/sqlc"
)

// DefaultSort lists the newest links first.
var DefaultSort = []SortTerm{{Field: "createdAt", Desc: true}}

// ParseSort accepts either the JSON form [{"id":"createdAt","desc":true}]
// or the compact form createdAt.desc,clicks.asc. An empty string yields nil.
func ParseSort(raw string) ([]SortTerm, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var terms []SortTerm
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &terms); err != nil {
			return nil, errors.New("sort must be a JSON array of {id, desc} objects")
		}
	} else {
		for part := range strings.SplitSeq(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			field, dir, _ := strings.Cut(part, ".")
			t := SortTerm{Field: field}
			switch strings.ToLower(dir) {
			case "", "asc":
			case "desc":
				t.Desc = true
			default:
				return nil, fmt.Errorf("invalid sort direction %q for field %q", dir, field)
			}
			terms = append(terms, t)
		}
	}

	for _, t := range terms {
		if _, ok := db.LinkColumns[t.Field]; !ok {
			return nil, fmt.Errorf("cannot sort by %q", t.Field)
		}
	}
	return terms, nil
}

// FormatSort renders terms in the compact form. It is the inverse of
// ParseSort for valid input.
func FormatSort(terms []SortTerm) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		dir := "asc"
		if t.Desc {
			dir = "desc"
		}
		parts[i] = t.Field + "." + dir
	}
	return strings.Join(parts, ",")
}

func toOrderBy(terms []SortTerm) ([]db.OrderBy, error) {
	out := make([]db.OrderBy, 0, len(terms))
	for _, t := range terms {
		col, ok := db.LinkColumns[t.Field]
		if !ok {
			return nil, fmt.Errorf("cannot sort by %q", t.Field)
		}
		out = append(out, db.OrderBy{Column: col, Desc: t.Desc})
	}
	return out, nil
}
