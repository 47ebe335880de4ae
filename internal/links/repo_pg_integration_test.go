package links

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/linkpool/internal/errx"
	"github.com/sundayezeilo/linkpool/internal/migrate"
	"github.com/sundayezeilo/linkpool/internal/pgtest"
)

func setupTestRepo(t *testing.T) (Repository, *pgxpool.Pool) {
	t.Helper()

	pool := pgtest.Start(t)
	if _, err := migrate.Up(context.Background(), pool); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewRepository(pool, nil), pool
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), `TRUNCATE links`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func testLink(i int) Link {
	return Link{
		Code:        fmt.Sprintf("LINK-%04d", i),
		OriginalURL: fmt.Sprintf("https://example.com/%d", i),
		ShortCode:   fmt.Sprintf("code%04d", i),
	}
}

func countLinks(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(context.Background(), `SELECT count(*) FROM links`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRepository_Integration(t *testing.T) {
	repo, pool := setupTestRepo(t)
	ctx := context.Background()

	t.Run("create evicts the oldest link once the pool is full", func(t *testing.T) {
		truncate(t, pool)

		var created []Link
		for i := range 3 {
			l, evicted, err := repo.Create(ctx, testLink(i), 3)
			if err != nil {
				t.Fatalf("Create(%d) unexpected error: %v", i, err)
			}
			if evicted {
				t.Errorf("Create(%d) evicted below the pool size", i)
			}
			created = append(created, l)
		}

		_, evicted, err := repo.Create(ctx, testLink(3), 3)
		if err != nil {
			t.Fatalf("Create(3) unexpected error: %v", err)
		}
		if !evicted {
			t.Error("Create(3) should evict")
		}
		if n := countLinks(t, pool); n != 3 {
			t.Errorf("count = %d, want 3", n)
		}
		if _, err := repo.Get(ctx, created[0].ID); errx.KindOf(err) != errx.NotFound {
			t.Errorf("oldest link should be gone, Get() err = %v", err)
		}
		if _, err := repo.Get(ctx, created[1].ID); err != nil {
			t.Errorf("second link should remain, Get() err = %v", err)
		}
	})

	t.Run("pool size one keeps only the newest link", func(t *testing.T) {
		truncate(t, pool)

		var last Link
		for i := range 4 {
			l, evicted, err := repo.Create(ctx, testLink(i), 1)
			if err != nil {
				t.Fatalf("Create(%d) unexpected error: %v", i, err)
			}
			if evicted != (i > 0) {
				t.Errorf("Create(%d) evicted = %v, want %v", i, evicted, i > 0)
			}
			if n := countLinks(t, pool); n != 1 {
				t.Fatalf("after Create(%d) count = %d, want 1", i, n)
			}
			if _, err := repo.Get(ctx, l.ID); err != nil {
				t.Errorf("new link %d should remain, Get() err = %v", i, err)
			}
			if i > 0 {
				if _, err := repo.Get(ctx, last.ID); errx.KindOf(err) != errx.NotFound {
					t.Errorf("previous link should be evicted by Create(%d), Get() err = %v", i, err)
				}
			}
			last = l
		}
	})

	t.Run("pool size zero never evicts", func(t *testing.T) {
		truncate(t, pool)

		for i := range 5 {
			if _, evicted, err := repo.Create(ctx, testLink(i), 0); err != nil || evicted {
				t.Fatalf("Create(%d) = evicted %v, err %v", i, evicted, err)
			}
		}
		if n := countLinks(t, pool); n != 5 {
			t.Errorf("count = %d, want 5", n)
		}
	})

	t.Run("duplicate short code is Conflict", func(t *testing.T) {
		truncate(t, pool)

		if _, _, err := repo.Create(ctx, testLink(1), 0); err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		dup := testLink(2)
		dup.ShortCode = testLink(1).ShortCode
		_, _, err := repo.Create(ctx, dup, 0)
		if errx.KindOf(err) != errx.Conflict {
			t.Errorf("KindOf(err) = %v, want Conflict", errx.KindOf(err))
		}
	})

	t.Run("negative clicks violate the check constraint", func(t *testing.T) {
		truncate(t, pool)

		l := testLink(1)
		l.Clicks = -1
		_, _, err := repo.Create(ctx, l, 0)
		if errx.KindOf(err) != errx.Invalid {
			t.Errorf("KindOf(err) = %v, want Invalid", errx.KindOf(err))
		}
	})

	t.Run("list sorts and paginates with a consistent total", func(t *testing.T) {
		truncate(t, pool)

		for i := range 7 {
			l := testLink(i)
			l.Clicks = int64(i * 10)
			if _, _, err := repo.Create(ctx, l, 0); err != nil {
				t.Fatalf("Create(%d) unexpected error: %v", i, err)
			}
		}

		page, err := repo.List(ctx, ListParams{Page: 2, PerPage: 3, Sort: []SortTerm{{Field: "clicks", Desc: true}}})
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if page.Total != 7 || page.PageCount != 3 {
			t.Errorf("Total/PageCount = %d/%d, want 7/3", page.Total, page.PageCount)
		}
		if len(page.Links) != 3 {
			t.Fatalf("len(Links) = %d, want 3", len(page.Links))
		}
		for i, want := range []int64{30, 20, 10} {
			if page.Links[i].Clicks != want {
				t.Errorf("Links[%d].Clicks = %d, want %d", i, page.Links[i].Clicks, want)
			}
		}

		last, err := repo.List(ctx, ListParams{Page: 3, PerPage: 3, Sort: DefaultSort})
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(last.Links) != 1 || last.Links[0].Code != "LINK-0000" {
			t.Errorf("last page = %+v, want only the oldest link", last.Links)
		}

		beyond, err := repo.List(ctx, ListParams{Page: 9, PerPage: 3, Sort: DefaultSort})
		if err != nil {
			t.Fatalf("List() unexpected error: %v", err)
		}
		if len(beyond.Links) != 0 || beyond.Total != 7 {
			t.Errorf("beyond page = %+v", beyond)
		}
	})

	t.Run("update changes only the given fields", func(t *testing.T) {
		truncate(t, pool)

		l, _, err := repo.Create(ctx, testLink(1), 0)
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}

		status := StatusInactive
		got, err := repo.Update(ctx, l.ID, LinkPatch{Status: &status})
		if err != nil {
			t.Fatalf("Update() unexpected error: %v", err)
		}
		if got.Status != StatusInactive || got.OriginalURL != l.OriginalURL {
			t.Errorf("Update() = %+v", got)
		}
		if !got.UpdatedAt.After(l.UpdatedAt) && !got.UpdatedAt.Equal(l.UpdatedAt) {
			t.Errorf("UpdatedAt went backwards: %v -> %v", l.UpdatedAt, got.UpdatedAt)
		}

		if _, err := repo.Update(ctx, uuid.New(), LinkPatch{Status: &status}); errx.KindOf(err) != errx.NotFound {
			t.Errorf("missing id: KindOf(err) = %v, want NotFound", errx.KindOf(err))
		}
	})

	t.Run("delete reports missing links", func(t *testing.T) {
		truncate(t, pool)

		l, _, err := repo.Create(ctx, testLink(1), 0)
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		if err := repo.Delete(ctx, l.ID); err != nil {
			t.Fatalf("Delete() unexpected error: %v", err)
		}
		if err := repo.Delete(ctx, l.ID); errx.KindOf(err) != errx.NotFound {
			t.Errorf("second Delete(): KindOf(err) = %v, want NotFound", errx.KindOf(err))
		}
	})

	t.Run("concurrent tracks never lose clicks", func(t *testing.T) {
		truncate(t, pool)

		l, _, err := repo.Create(ctx, testLink(1), 0)
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Track(ctx, l.ShortCode, MatchExact); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("Track() unexpected error: %v", err)
		}

		got, err := repo.Get(ctx, l.ID)
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if got.Clicks != n {
			t.Errorf("Clicks = %d, want %d", got.Clicks, n)
		}
	})

	t.Run("inactive links do not resolve", func(t *testing.T) {
		truncate(t, pool)

		l := testLink(1)
		l.Status = StatusInactive
		if _, _, err := repo.Create(ctx, l, 0); err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		if _, err := repo.Track(ctx, l.ShortCode, MatchExact); errx.KindOf(err) != errx.NotFound {
			t.Errorf("KindOf(err) = %v, want NotFound", errx.KindOf(err))
		}
	})

	t.Run("exact and suffix matching", func(t *testing.T) {
		truncate(t, pool)

		l := testLink(1)
		l.ShortCode = "AbCdEf12"
		if _, _, err := repo.Create(ctx, l, 0); err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}

		if _, err := repo.Track(ctx, "Ef12", MatchExact); errx.KindOf(err) != errx.NotFound {
			t.Errorf("exact partial: KindOf(err) = %v, want NotFound", errx.KindOf(err))
		}
		got, err := repo.Track(ctx, "ef12", MatchSuffix)
		if err != nil {
			t.Fatalf("suffix Track() unexpected error: %v", err)
		}
		if got.ShortCode != "AbCdEf12" || got.Clicks != 1 {
			t.Errorf("suffix Track() = %+v", got)
		}
		if _, err := repo.Track(ctx, "AbCdEf12", MatchExact); err != nil {
			t.Errorf("exact Track() unexpected error: %v", err)
		}
	})

	t.Run("delete many replenishes deleted rows and ignores unknown ids", func(t *testing.T) {
		truncate(t, pool)

		var ids []uuid.UUID
		for i := range 4 {
			l, _, err := repo.Create(ctx, testLink(i), 0)
			if err != nil {
				t.Fatalf("Create(%d) unexpected error: %v", i, err)
			}
			ids = append(ids, l.ID)
		}

		var asked int
		replace := func(n int) ([]Link, error) {
			asked = n
			out := make([]Link, n)
			for i := range out {
				out[i] = testLink(100 + i)
			}
			return out, nil
		}

		deleted, err := repo.DeleteMany(ctx, []uuid.UUID{ids[0], ids[1], uuid.New()}, replace)
		if err != nil {
			t.Fatalf("DeleteMany() unexpected error: %v", err)
		}
		if deleted != 2 || asked != 2 {
			t.Errorf("deleted = %d, replacements asked = %d; want 2, 2", deleted, asked)
		}
		if n := countLinks(t, pool); n != 4 {
			t.Errorf("count = %d, want 4", n)
		}

		deleted, err = repo.DeleteMany(ctx, []uuid.UUID{ids[2]}, nil)
		if err != nil {
			t.Fatalf("DeleteMany() unexpected error: %v", err)
		}
		if deleted != 1 {
			t.Errorf("deleted = %d, want 1", deleted)
		}
		if n := countLinks(t, pool); n != 3 {
			t.Errorf("count = %d, want 3", n)
		}
	})

	t.Run("delete many rolls back when replacements collide", func(t *testing.T) {
		truncate(t, pool)

		a, _, err := repo.Create(ctx, testLink(1), 0)
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}
		b, _, err := repo.Create(ctx, testLink(2), 0)
		if err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}

		replace := func(int) ([]Link, error) {
			dup := testLink(3)
			dup.ShortCode = b.ShortCode
			return []Link{dup}, nil
		}
		if _, err := repo.DeleteMany(ctx, []uuid.UUID{a.ID}, replace); errx.KindOf(err) != errx.Conflict {
			t.Errorf("KindOf(err) = %v, want Conflict", errx.KindOf(err))
		}
		if _, err := repo.Get(ctx, a.ID); err != nil {
			t.Errorf("deleted row should be restored by rollback, Get() err = %v", err)
		}
	})

	t.Run("seed replaces every link", func(t *testing.T) {
		truncate(t, pool)

		if _, _, err := repo.Create(ctx, testLink(999), 0); err != nil {
			t.Fatalf("Create() unexpected error: %v", err)
		}

		seed := make([]Link, 5)
		for i := range seed {
			seed[i] = testLink(i)
			seed[i].Clicks = int64(i)
			if i%2 == 1 {
				seed[i].Status = StatusInactive
			}
		}
		n, err := repo.Seed(ctx, seed)
		if err != nil {
			t.Fatalf("Seed() unexpected error: %v", err)
		}
		if n != 5 {
			t.Errorf("Seed() = %d, want 5", n)
		}

		codes, err := repo.ShortCodes(ctx)
		if err != nil {
			t.Fatalf("ShortCodes() unexpected error: %v", err)
		}
		if len(codes) != 5 {
			t.Errorf("ShortCodes() = %v, want 5 codes", codes)
		}
		for _, c := range codes {
			if c == testLink(999).ShortCode {
				t.Error("seed should remove existing links")
			}
		}

		var inactive int64
		if err := pool.QueryRow(ctx, `SELECT count(*) FROM links WHERE status = 'INACTIVE'`).Scan(&inactive); err != nil {
			t.Fatalf("query: %v", err)
		}
		if inactive != 2 {
			t.Errorf("inactive = %d, want 2", inactive)
		}

		if n, err := repo.Seed(ctx, nil); err != nil || n != 0 {
			t.Errorf("Seed(nil) = %d, %v; want 0, nil", n, err)
		}
		if c := countLinks(t, pool); c != 0 {
			t.Errorf("count after empty seed = %d, want 0", c)
		}
	})
}
