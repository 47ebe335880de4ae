package db

import "testing"

func TestOrderByClause(t *testing.T) {
	tests := []struct {
		name    string
		terms   []OrderBy
		want    string
		wantErr bool
	}{
		{
			name:  "no terms orders by id",
			terms: nil,
			want:  "id ASC",
		},
		{
			name:  "descending created_at with tie-breaker",
			terms: []OrderBy{{Column: "created_at", Desc: true}},
			want:  "created_at DESC, id ASC",
		},
		{
			name:  "multiple terms keep order",
			terms: []OrderBy{{Column: "clicks", Desc: true}, {Column: "original_url"}},
			want:  "clicks DESC, original_url ASC, id ASC",
		},
		{
			name:  "explicit id suppresses tie-breaker",
			terms: []OrderBy{{Column: "id", Desc: true}},
			want:  "id DESC",
		},
		{
			name:  "duplicate column keeps the first direction",
			terms: []OrderBy{{Column: "clicks"}, {Column: "clicks", Desc: true}},
			want:  "clicks ASC, id ASC",
		},
		{
			name:    "unknown column is rejected",
			terms:   []OrderBy{{Column: "clicks; DROP TABLE links"}},
			wantErr: true,
		},
		{
			name:    "api field names are not columns",
			terms:   []OrderBy{{Column: "createdAt"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orderByClause(tt.terms)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("orderByClause() expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("orderByClause() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("orderByClause() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinkColumns_CoverEveryField(t *testing.T) {
	fields := []string{"id", "code", "originalUrl", "shortCode", "clicks", "status", "createdAt", "updatedAt"}
	for _, f := range fields {
		if _, ok := LinkColumns[f]; !ok {
			t.Errorf("LinkColumns missing %q", f)
		}
	}
	if len(LinkColumns) != len(fields) {
		t.Errorf("LinkColumns has %d entries, want %d", len(LinkColumns), len(fields))
	}
}
