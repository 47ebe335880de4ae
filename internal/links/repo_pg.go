package links

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/linkpool/internal/db/sqlc"
	"github.com/sundayezeilo/linkpool/internal/errx"
	"github.com/sundayezeilo/linkpool/internal/idgen"
)

// querier is the subset of *db.Queries used outside explicit transactions.
// Each of these is a single statement and therefore atomic on its own.
type querier interface {
	GetLink(ctx context.Context, id uuid.UUID) (db.Link, error)
	UpdateLink(ctx context.Context, arg db.UpdateLinkParams) (db.Link, error)
	DeleteLink(ctx context.Context, id uuid.UUID) (int64, error)
	TrackLinkByShortCode(ctx context.Context, shortCode string) (db.Link, error)
	TrackLinkByShortCodeSuffix(ctx context.Context, suffix string) (db.Link, error)
	ListShortCodes(ctx context.Context) ([]string, error)
}

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type repo struct {
	q   querier
	db  txBeginner
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Postgres-backed Repository. pool is usually a
// *pgxpool.Pool.
func NewRepository(pool interface {
	db.DBTX
	txBeginner
}, config *RepositoryConfig) Repository {
	return newRepo(db.New(pool), pool, config)
}

func newRepo(q querier, tx txBeginner, config *RepositoryConfig) *repo {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Ordered v7 ids keep inserts index-local and make id a usable FIFO
	// tie-breaker within one batch insert.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewOrdered(idgen.DefaultAttempts)
	}

	return &repo{
		q:   q,
		db:  tx,
		ids: config.IDGenerator,
	}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:          x.ID,
		Code:        x.Code,
		OriginalURL: x.OriginalUrl,
		ShortCode:   x.ShortCode,
		Status:      Status(x.Status),
		Clicks:      x.Clicks,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func toDomainLinks(rows []db.Link) ([]Link, error) {
	out := make([]Link, 0, len(rows))
	for _, row := range rows {
		l, err := toDomainLink(row)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, errors.New("link not found"))

	case isShortCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	case isInvalidInput(err):
		return errx.E(op, errx.Invalid, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (r *repo) assignID(link *Link) error {
	if link.ID != uuid.Nil {
		return nil
	}
	id, err := r.ids.Generate()
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

func (r *repo) Create(ctx context.Context, link Link, poolSize int) (Link, bool, error) {
	const op = "links.repo.Create"

	if err := r.assignID(&link); err != nil {
		return Link{}, false, errx.E(op, errx.Unavailable, err)
	}
	if link.Status == "" {
		link.Status = StatusActive
	}

	var (
		row     db.Link
		evicted bool
	)
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := db.New(tx)

		var err error
		row, err = q.CreateLink(ctx, db.CreateLinkParams{
			ID:          link.ID,
			Code:        link.Code,
			OriginalUrl: link.OriginalURL,
			ShortCode:   link.ShortCode,
			Clicks:      link.Clicks,
			Status:      db.LinkStatus(link.Status),
		})
		if err != nil {
			return err
		}

		if poolSize <= 0 {
			return nil
		}
		count, err := q.CountLinks(ctx)
		if err != nil {
			return err
		}
		if count <= int64(poolSize) {
			return nil
		}

		// A concurrent creator may already have removed the candidate.
		_, err = q.DeleteOldestLinkExcept(ctx, link.ID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil
		case err != nil:
			return err
		}
		evicted = true
		return nil
	})
	if err != nil {
		return Link{}, false, mapRepoError(op, err)
	}

	created, err := toDomainLink(row)
	if err != nil {
		return Link{}, false, errx.E(op, errx.Internal, err)
	}
	return created, evicted, nil
}

func (r *repo) Get(ctx context.Context, id uuid.UUID) (Link, error) {
	const op = "links.repo.Get"

	row, err := r.q.GetLink(ctx, id)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) List(ctx context.Context, params ListParams) (Page, error) {
	const op = "links.repo.List"

	orderBy, err := toOrderBy(params.Sort)
	if err != nil {
		return Page{}, errx.E(op, errx.Invalid, err)
	}
	limit, offset, err := pageWindow(params.Page, params.PerPage)
	if err != nil {
		return Page{}, errx.E(op, errx.Invalid, err)
	}

	var (
		rows  []db.Link
		total int64
	)
	// Page and total come from one snapshot so they agree with each other.
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err = pgx.BeginTxFunc(ctx, r.db, opts, func(tx pgx.Tx) error {
		q := db.New(tx)

		var err error
		rows, err = q.ListLinks(ctx, db.ListLinksParams{
			OrderBy: orderBy,
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			return err
		}
		total, err = q.CountLinks(ctx)
		return err
	})
	if err != nil {
		return Page{}, mapRepoError(op, err)
	}

	items, err := toDomainLinks(rows)
	if err != nil {
		return Page{}, errx.E(op, errx.Internal, err)
	}

	return Page{
		Links:     items,
		Total:     total,
		Page:      params.Page,
		PerPage:   params.PerPage,
		PageCount: pageCount(total, params.PerPage),
	}, nil
}

// pageWindow converts a page number to LIMIT and OFFSET. Both are int32
// query parameters, so pages past math.MaxInt32 rows are rejected rather
// than wrapped.
func pageWindow(page, perPage int) (limit, offset int32, err error) {
	if page < 1 || perPage < 1 || perPage > math.MaxInt32 {
		return 0, 0, errors.New("page and perPage must be >= 1")
	}
	if page-1 > math.MaxInt32/perPage {
		return 0, 0, fmt.Errorf("page %d is out of range for perPage %d", page, perPage)
	}
	return int32(perPage), int32((page - 1) * perPage), nil
}

func pageCount(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, patch LinkPatch) (Link, error) {
	const op = "links.repo.Update"

	params := db.UpdateLinkParams{ID: id}
	if patch.OriginalURL != nil {
		params.OriginalUrl = pgtype.Text{String: *patch.OriginalURL, Valid: true}
	}
	if patch.Status != nil {
		params.Status = pgtype.Text{String: string(*patch.Status), Valid: true}
	}

	row, err := r.q.UpdateLink(ctx, params)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "links.repo.Delete"

	n, err := r.q.DeleteLink(ctx, id)
	if err != nil {
		return mapRepoError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return nil
}

func (r *repo) DeleteMany(ctx context.Context, ids []uuid.UUID, replacements func(n int) ([]Link, error)) (int, error) {
	const op = "links.repo.DeleteMany"

	var deleted int
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := db.New(tx)

		gone, err := q.DeleteLinks(ctx, ids)
		if err != nil {
			return err
		}
		deleted = len(gone)

		if replacements == nil || deleted == 0 {
			return nil
		}
		fresh, err := replacements(deleted)
		if err != nil {
			return errx.E(op, errx.Internal, err)
		}
		params, err := r.insertParams(fresh)
		if err != nil {
			return errx.E(op, errx.Unavailable, err)
		}
		_, err = q.InsertLinks(ctx, params)
		return err
	})
	if err != nil {
		if errx.KindOf(err) != errx.Unknown {
			return 0, err
		}
		return 0, mapRepoError(op, err)
	}
	return deleted, nil
}

func (r *repo) insertParams(links []Link) (db.InsertLinksParams, error) {
	p := db.InsertLinksParams{
		Ids:          make([]uuid.UUID, len(links)),
		Codes:        make([]string, len(links)),
		OriginalUrls: make([]string, len(links)),
		ShortCodes:   make([]string, len(links)),
		Clicks:       make([]int64, len(links)),
		Statuses:     make([]string, len(links)),
	}
	for i := range links {
		if err := r.assignID(&links[i]); err != nil {
			return db.InsertLinksParams{}, err
		}
		l := links[i]
		if l.Status == "" {
			l.Status = StatusActive
		}
		p.Ids[i] = l.ID
		p.Codes[i] = l.Code
		p.OriginalUrls[i] = l.OriginalURL
		p.ShortCodes[i] = l.ShortCode
		p.Clicks[i] = l.Clicks
		p.Statuses[i] = string(l.Status)
	}
	return p, nil
}

func (r *repo) Track(ctx context.Context, shortCode string, mode MatchMode) (Link, error) {
	const op = "links.repo.Track"

	var (
		row db.Link
		err error
	)
	// The UPDATE locks the matched row, so concurrent tracks of the same
	// link serialize and every increment lands.
	switch mode {
	case MatchSuffix:
		row, err = r.q.TrackLinkByShortCodeSuffix(ctx, shortCode)
	default:
		row, err = r.q.TrackLinkByShortCode(ctx, shortCode)
	}
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (r *repo) Seed(ctx context.Context, links []Link) (int, error) {
	const op = "links.repo.Seed"

	params, err := r.insertParams(links)
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}

	var inserted int64
	err = pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := db.New(tx)
		if _, err := q.DeleteAllLinks(ctx); err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		var err error
		inserted, err = q.InsertLinks(ctx, params)
		return err
	})
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return int(inserted), nil
}

func (r *repo) ShortCodes(ctx context.Context) ([]string, error) {
	const op = "links.repo.ShortCodes"

	codes, err := r.q.ListShortCodes(ctx)
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return codes, nil
}
