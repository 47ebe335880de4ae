package links

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a link. Only ACTIVE links redirect.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// MatchMode selects how Track compares the requested code with stored ones.
type MatchMode string

const (
	// MatchExact requires short_code equality.
	MatchExact MatchMode = "exact"
	// MatchSuffix accepts any stored code ending with the requested one,
	// ignoring case.
	MatchSuffix MatchMode = "suffix"
)

type Link struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortCode"`
	Status      Status    `json:"status"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SortTerm orders a listing by one field. Field uses the JSON field names
// of Link. The json tags match the table widget's sort state.
type SortTerm struct {
	Field string `json:"id"`
	Desc  bool   `json:"desc"`
}

type ListParams struct {
	Page    int
	PerPage int
	Sort    []SortTerm
}

// Page is one page of a listing.
type Page struct {
	Links     []Link `json:"data"`
	Total     int64  `json:"total"`
	Page      int    `json:"page"`
	PerPage   int    `json:"perPage"`
	PageCount int    `json:"pageCount"`
}

// LinkPatch carries the mutable fields of a link. Nil fields are left as is.
type LinkPatch struct {
	OriginalURL *string
	Status      *Status
}
