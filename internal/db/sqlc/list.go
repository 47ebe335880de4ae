package db

import (
	"context"
	"fmt"
	"strings"
)

// ListLinks is hand-written: sqlc cannot express a caller-chosen ORDER BY.
// Column names come from the LinkColumns whitelist, never from user input.

// LinkColumns maps sortable API field names to links columns.
var LinkColumns = map[string]string{
	"id":          "id",
	"code":        "code",
	"originalUrl": "original_url",
	"shortCode":   "short_code",
	"clicks":      "clicks",
	"status":      "status",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column string
	Desc   bool
}

type ListLinksParams struct {
	OrderBy []OrderBy
	Limit   int32
	Offset  int32
}

const listLinksSelect = `SELECT id, code, original_url, short_code, clicks, status, created_at, updated_at FROM links`

func (q *Queries) ListLinks(ctx context.Context, arg ListLinksParams) ([]Link, error) {
	orderBy, err := orderByClause(arg.OrderBy)
	if err != nil {
		return nil, err
	}

	query := listLinksSelect + " ORDER BY " + orderBy + " LIMIT $1 OFFSET $2"

	rows, err := q.db.Query(ctx, query, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Link, 0, arg.Limit)
	for rows.Next() {
		var i Link
		if err := rows.Scan(
			&i.ID,
			&i.Code,
			&i.OriginalUrl,
			&i.ShortCode,
			&i.Clicks,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// orderByClause renders terms followed by an id tie-breaker so pages are
// stable when sort keys collide.
func orderByClause(terms []OrderBy) (string, error) {
	allowed := make(map[string]bool, len(LinkColumns))
	for _, col := range LinkColumns {
		allowed[col] = true
	}

	parts := make([]string, 0, len(terms)+1)
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		if !allowed[t.Column] {
			return "", fmt.Errorf("unknown sort column %q", t.Column)
		}
		if seen[t.Column] {
			continue
		}
		seen[t.Column] = true

		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts = append(parts, t.Column+" "+dir)
	}
	if !seen["id"] {
		parts = append(parts, "id ASC")
	}
	return strings.Join(parts, ", "), nil
}
