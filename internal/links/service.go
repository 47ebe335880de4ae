package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sundayezeilo/linkpool/internal/cache"
	"github.com/sundayezeilo/linkpool/internal/errx"
	"github.com/sundayezeilo/linkpool/internal/observability"
	"github.com/sundayezeilo/linkpool/sluggen"
)

const (
	DefaultShortCodeLength     = 8
	MinShortCodeLength         = 4
	MaxShortCodeLength         = 32
	DefaultShortCodeMaxRetries = 3
	DefaultPoolSize            = 100
	DefaultMaxBatchDelete      = 100
	MaxURLLength               = 2048
	MaxSeedCount               = 10000

	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100

	// MaxTrackCodeLength bounds the code accepted on the redirect path.
	MaxTrackCodeLength = 64

	// DefaultFilterRecheck is how old the code filter must be before a miss
	// reloads it from the store.
	DefaultFilterRecheck = time.Second

	codePrefix      = "LINK-"
	codeDigits      = 4
	maxSeedClicks   = 1337
	listCacheFormat = "page=%d&perPage=%d&sort=%s"
)

// CreateLinkRequest represents the parameters for creating a new link.
// Clicks and Status are optional and default to 0 and ACTIVE.
type CreateLinkRequest struct {
	OriginalURL string
	Clicks      *int64
	Status      *Status
}

// UpdateLinkRequest holds the fields to change. At least one must be set.
type UpdateLinkRequest struct {
	OriginalURL *string
	Status      *Status
}

// Service defines the business logic operations of the link pool.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Get(ctx context.Context, id uuid.UUID) (Link, error)
	List(ctx context.Context, params ListParams) (Page, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateLinkRequest) (Link, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error)
	// Track resolves shortCode to its ACTIVE link and records one click.
	Track(ctx context.Context, shortCode string) (Link, error)
	// Seed replaces every link with count random ones.
	Seed(ctx context.Context, count int) (int, error)
	// WarmFilter loads every stored short code into the code filter.
	WarmFilter(ctx context.Context) error
	// RefreshFilter reloads the code filter every interval until ctx is done.
	RefreshFilter(ctx context.Context, interval time.Duration)
}

// service implements the Service interface.
type service struct {
	repo     Repository
	codes    sluggen.Generator
	labels   sluggen.Generator
	random   *randomLinks
	cache    cache.ListCache
	filter   *cache.CodeFilter
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *slog.Logger

	shortCodeLength   int
	maxRetries        int
	poolSize          int
	matchMode         MatchMode
	replenishOnDelete bool
	maxBatchDelete    int
	filterRecheck     time.Duration
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	ShortCodeGenerator  sluggen.Generator // default: sluggen.NewURLSafe()
	LabelGenerator      sluggen.Generator // default: sluggen.NewDigits()
	ShortCodeLength     int
	ShortCodeMaxRetries int // attempts when generating a unique short code (default: 3)

	// PoolSize bounds the number of links; nil means DefaultPoolSize and
	// 0 disables eviction.
	PoolSize          *int
	MatchMode         MatchMode
	ReplenishOnDelete bool
	MaxBatchDelete    int

	Cache  cache.ListCache   // default: cache.Noop{}
	Filter *cache.CodeFilter // nil disables the negative lookup filter
	// FilterRecheck is the minimum filter age before a miss reloads it.
	// Zero means DefaultFilterRecheck; negative never reloads on a miss.
	FilterRecheck time.Duration
	Seed          uint64 // 0 seeds random links from the clock
	Logger        *slog.Logger
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	return newService(repo, config)
}

func newService(repo Repository, config *ServiceConfig) *service {
	if config == nil {
		config = &ServiceConfig{}
	}

	shortCodes := config.ShortCodeGenerator
	if shortCodes == nil {
		shortCodes = sluggen.NewURLSafe()
	}
	labels := config.LabelGenerator
	if labels == nil {
		labels = sluggen.NewDigits()
	}

	length := config.ShortCodeLength
	if length < MinShortCodeLength || length > MaxShortCodeLength {
		length = DefaultShortCodeLength
	}

	retries := config.ShortCodeMaxRetries
	if retries <= 0 {
		retries = DefaultShortCodeMaxRetries
	}

	poolSize := DefaultPoolSize
	if config.PoolSize != nil && *config.PoolSize >= 0 {
		poolSize = *config.PoolSize
	}

	mode := config.MatchMode
	if mode != MatchSuffix {
		mode = MatchExact
	}

	maxBatch := config.MaxBatchDelete
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchDelete
	}

	recheck := config.FilterRecheck
	if recheck == 0 {
		recheck = DefaultFilterRecheck
	}

	lc := config.Cache
	if lc == nil {
		lc = cache.Noop{}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		repo:              repo,
		codes:             shortCodes,
		labels:            labels,
		random:            newRandomLinks(config.Seed),
		cache:             lc,
		filter:            config.Filter,
		validate:          newValidator(),
		tracer:            otel.Tracer(observability.TracerName),
		logger:            logger,
		shortCodeLength:   length,
		maxRetries:        retries,
		poolSize:          poolSize,
		matchMode:         mode,
		replenishOnDelete: config.ReplenishOnDelete,
		maxBatchDelete:    maxBatch,
		filterRecheck:     recheck,
	}
}

/***************
 * Validation
 ***************/

type linkInput struct {
	OriginalURL string `json:"originalUrl" validate:"required,max=2048,http_url"`
	Clicks      int64  `json:"clicks" validate:"gte=0"`
	Status      Status `json:"status" validate:"oneof=ACTIVE INACTIVE"`
}

type patchInput struct {
	OriginalURL *string `json:"originalUrl" validate:"omitnil,required,max=2048,http_url"`
	Status      *Status `json:"status" validate:"omitnil,oneof=ACTIVE INACTIVE"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns validator output into a single user-facing error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "http_url":
			msgs = append(msgs, fe.Field()+" must be an absolute http or https URL")
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

/***************
 * Tracing
 ***************/

func (s *service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errx.KindOf(err).String())
	}
	span.End()
}

/***************
 * Operations
 ***************/

// newLink fills in the generated fields of a link.
func (s *service) newLink(originalURL string, clicks int64, status Status) (Link, error) {
	label, err := s.labels.Generate(codeDigits)
	if err != nil {
		return Link{}, err
	}
	shortCode, err := s.codes.Generate(s.shortCodeLength)
	if err != nil {
		return Link{}, err
	}
	return Link{
		Code:        codePrefix + label,
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		Status:      status,
		Clicks:      clicks,
	}, nil
}

// Create creates a new link, evicting the oldest one when the pool is full.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (link Link, err error) {
	const op = "links.service.Create"

	ctx, span := s.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	in := linkInput{
		OriginalURL: strings.TrimSpace(req.OriginalURL),
		Status:      StatusActive,
	}
	if req.Clicks != nil {
		in.Clicks = *req.Clicks
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if err := s.validate.Struct(in); err != nil {
		return Link{}, errx.E(op, errx.Invalid, validationError(err))
	}

	// Generated short code path: retry on conflicts
	for range s.maxRetries {
		candidate, err := s.newLink(in.OriginalURL, in.Clicks, in.Status)
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}

		created, evicted, err := s.repo.Create(ctx, candidate, s.poolSize)
		if err == nil {
			if evicted {
				observability.LinkEvictionsTotal.Inc()
			}
			s.remember(created.ShortCode)
			s.invalidate(ctx)
			span.SetAttributes(attribute.String("link.id", created.ID.String()), attribute.Bool("link.evicted", evicted))
			return created, nil
		}

		// Retry on conflict, fail on other errors
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		s.logger.WarnContext(ctx, "short code collision, retrying", "short_code", candidate.ShortCode)
	}

	return Link{}, errx.E(op, errx.Unavailable,
		errors.New("could not generate unique short code after retries"))
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (link Link, err error) {
	const op = "links.service.Get"

	ctx, span := s.startSpan(ctx, op, attribute.String("link.id", id.String()))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return Link{}, errx.E(op, errx.Invalid, errors.New("id cannot be empty"))
	}

	link, err = s.repo.Get(ctx, id)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// normalizeListParams applies defaults and bounds.
func normalizeListParams(p ListParams) (ListParams, error) {
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.PerPage == 0 {
		p.PerPage = DefaultPerPage
	}
	if p.Page < 1 {
		return ListParams{}, errors.New("page must be >= 1")
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		return ListParams{}, fmt.Errorf("perPage must be between 1 and %d", MaxPerPage)
	}
	if _, _, err := pageWindow(p.Page, p.PerPage); err != nil {
		return ListParams{}, err
	}
	if len(p.Sort) == 0 {
		p.Sort = DefaultSort
	}
	if _, err := toOrderBy(p.Sort); err != nil {
		return ListParams{}, err
	}
	return p, nil
}

func listCacheKey(p ListParams) string {
	return fmt.Sprintf(listCacheFormat, p.Page, p.PerPage, FormatSort(p.Sort))
}

// List returns one page of links. Store failures are returned, never
// reported as an empty page.
func (s *service) List(ctx context.Context, params ListParams) (page Page, err error) {
	const op = "links.service.List"

	ctx, span := s.startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	params, err = normalizeListParams(params)
	if err != nil {
		return Page{}, errx.E(op, errx.Invalid, err)
	}

	key := listCacheKey(params)
	span.SetAttributes(attribute.String("links.list.key", key))

	// The page is stored under the generation seen before the store read,
	// so a write that invalidates meanwhile discards it.
	b, gen, ok, cerr := s.cache.Get(ctx, key)
	if cerr != nil {
		s.logger.WarnContext(ctx, "list cache read failed", "error", cerr)
	} else if ok {
		var cached Page
		if uerr := json.Unmarshal(b, &cached); uerr == nil {
			span.SetAttributes(attribute.Bool("links.list.cached", true))
			return cached, nil
		}
	}

	page, err = s.repo.List(ctx, params)
	if err != nil {
		return Page{}, errx.E(op, errx.KindOf(err), err)
	}

	if cerr != nil {
		return page, nil
	}
	if b, merr := json.Marshal(page); merr == nil {
		if cerr := s.cache.Set(ctx, gen, key, b); cerr != nil {
			s.logger.WarnContext(ctx, "list cache write failed", "error", cerr)
		}
	}
	return page, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateLinkRequest) (link Link, err error) {
	const op = "links.service.Update"

	ctx, span := s.startSpan(ctx, op, attribute.String("link.id", id.String()))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return Link{}, errx.E(op, errx.Invalid, errors.New("id cannot be empty"))
	}
	if req.OriginalURL == nil && req.Status == nil {
		return Link{}, errx.E(op, errx.Invalid, errors.New("nothing to update: set originalUrl or status"))
	}

	in := patchInput{Status: req.Status}
	if req.OriginalURL != nil {
		trimmed := strings.TrimSpace(*req.OriginalURL)
		in.OriginalURL = &trimmed
	}
	if err := s.validate.Struct(in); err != nil {
		return Link{}, errx.E(op, errx.Invalid, validationError(err))
	}

	link, err = s.repo.Update(ctx, id, LinkPatch{OriginalURL: in.OriginalURL, Status: in.Status})
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	s.invalidate(ctx)
	return link, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	const op = "links.service.Delete"

	ctx, span := s.startSpan(ctx, op, attribute.String("link.id", id.String()))
	defer func() { endSpan(span, err) }()

	if id == uuid.Nil {
		return errx.E(op, errx.Invalid, errors.New("id cannot be empty"))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	s.invalidate(ctx)
	return nil
}

// DeleteMany deletes ids and, when configured, inserts one random link per
// deleted row so the pool keeps its size.
func (s *service) DeleteMany(ctx context.Context, ids []uuid.UUID) (deleted int, err error) {
	const op = "links.service.DeleteMany"

	ctx, span := s.startSpan(ctx, op, attribute.Int("links.ids", len(ids)))
	defer func() { endSpan(span, err) }()

	if len(ids) == 0 {
		return 0, errx.E(op, errx.Invalid, errors.New("ids cannot be empty"))
	}
	if len(ids) > s.maxBatchDelete {
		return 0, errx.E(op, errx.Invalid, fmt.Errorf("at most %d ids per request", s.maxBatchDelete))
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return 0, errx.E(op, errx.Invalid, errors.New("ids cannot contain the nil UUID"))
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var (
		fresh   []Link
		replace func(n int) ([]Link, error)
	)
	if s.replenishOnDelete {
		replace = func(n int) ([]Link, error) {
			var err error
			fresh, err = s.randomLinks(n)
			return fresh, err
		}
	}

	deleted, err = s.repo.DeleteMany(ctx, unique, replace)
	if err != nil {
		return 0, errx.E(op, errx.KindOf(err), err)
	}

	for _, l := range fresh {
		s.remember(l.ShortCode)
	}
	span.SetAttributes(attribute.Int("links.deleted", deleted), attribute.Int("links.replenished", len(fresh)))
	s.invalidate(ctx)
	return deleted, nil
}

// Track is the redirect path: it resolves shortCode and counts one click.
func (s *service) Track(ctx context.Context, shortCode string) (link Link, err error) {
	const op = "links.service.Track"

	ctx, span := s.startSpan(ctx, op,
		attribute.String("link.short_code", shortCode),
		attribute.String("links.match_mode", string(s.matchMode)),
	)
	defer func() { endSpan(span, err) }()

	if shortCode == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("short code cannot be empty"))
	}
	if len(shortCode) > MaxTrackCodeLength {
		return Link{}, errx.E(op, errx.Invalid, errors.New("short code too long"))
	}

	// The filter only holds whole codes, so it cannot answer suffix lookups.
	if s.filter != nil && s.matchMode == MatchExact && !s.filterAdmits(ctx, shortCode) {
		observability.BloomRejections.Inc()
		return Link{}, errx.E(op, errx.NotFound, errors.New("link not found"))
	}

	link, err = s.repo.Track(ctx, shortCode, s.matchMode)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	observability.LinkClicksTotal.Inc()
	return link, nil
}

func (s *service) Seed(ctx context.Context, count int) (n int, err error) {
	const op = "links.service.Seed"

	ctx, span := s.startSpan(ctx, op, attribute.Int("links.count", count))
	defer func() { endSpan(span, err) }()

	if count < 0 || count > MaxSeedCount {
		return 0, errx.E(op, errx.Invalid, fmt.Errorf("count must be between 0 and %d", MaxSeedCount))
	}

	fresh, err := s.randomLinks(count)
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}

	n, err = s.repo.Seed(ctx, fresh)
	if err != nil {
		return 0, errx.E(op, errx.KindOf(err), err)
	}

	// Merged rather than replaced: codes created concurrently must stay.
	// The replaced links linger as false positives until the next rebuild.
	if s.filter != nil {
		seeded := make([]string, len(fresh))
		for i, l := range fresh {
			seeded[i] = l.ShortCode
		}
		s.filter.AddAll(seeded)
	}
	s.invalidate(ctx)
	return n, nil
}

// Filter rebuild triggers, used as the links_bloom_rebuilds_total label.
const (
	rebuildStartup  = "startup"
	rebuildInterval = "interval"
	rebuildMiss     = "miss"
)

func (s *service) WarmFilter(ctx context.Context) error {
	const op = "links.service.WarmFilter"

	if s.filter == nil {
		return nil
	}
	if err := s.rebuildFilter(ctx, 0, rebuildStartup); err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}
	return nil
}

// RefreshFilter picks up codes written by other processes, such as the seed
// command, and drops deleted ones.
func (s *service) RefreshFilter(ctx context.Context, interval time.Duration) {
	if s.filter == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.rebuildFilter(ctx, 0, rebuildInterval); err != nil && ctx.Err() == nil {
				s.logger.WarnContext(ctx, "short code filter refresh failed", "error", err)
			}
		}
	}
}

// filterAdmits reports whether shortCode may be stored. A miss on a filter
// older than filterRecheck reloads it once before rejecting, so codes
// written by another process resolve without waiting for the next refresh.
func (s *service) filterAdmits(ctx context.Context, shortCode string) bool {
	if s.filter.MightExist(shortCode) {
		return true
	}
	if s.filterRecheck < 0 {
		return false
	}
	if err := s.rebuildFilter(ctx, s.filterRecheck, rebuildMiss); err != nil {
		s.logger.WarnContext(ctx, "short code filter rebuild failed", "error", err)
		return true
	}
	return s.filter.MightExist(shortCode)
}

func (s *service) rebuildFilter(ctx context.Context, maxAge time.Duration, trigger string) error {
	rebuilt, err := s.filter.Rebuild(ctx, maxAge, s.repo.ShortCodes)
	if err != nil || !rebuilt {
		return err
	}

	codes := s.filter.ApproximateCount()
	observability.BloomRebuilds.WithLabelValues(trigger).Inc()
	observability.BloomFilterCodes.Set(float64(codes))

	level := slog.LevelDebug
	if trigger == rebuildStartup {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "short code filter rebuilt", "trigger", trigger, "codes", codes)
	return nil
}

func (s *service) remember(shortCode string) {
	if s.filter != nil {
		s.filter.Add(shortCode)
	}
}

// invalidate drops cached listings. A failure only delays freshness until
// the cache TTL, so it is logged and not returned.
func (s *service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "list cache invalidation failed", "error", err)
	}
}
