package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/sundayezeilo/linkpool/internal/errx"
	"github.com/sundayezeilo/linkpool/internal/httpx"
)

const (
	DefaultQRSize = 256
	MinQRSize     = 128
	MaxQRSize     = 1024
)

// HTTPCreateLinkRequest represents the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	OriginalURL string  `json:"originalUrl"`
	Clicks      *int64  `json:"clicks,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// HTTPUpdateLinkRequest represents the JSON request body for a partial update.
type HTTPUpdateLinkRequest struct {
	OriginalURL *string `json:"originalUrl,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// BatchDeleteRequest lists the ids to delete.
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

type BatchDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// LinkResponse is a Link plus its full redirect URL.
type LinkResponse struct {
	Link
	ShortURL string `json:"shortUrl"`
}

// PageResponse is one page of links as returned by the list endpoint.
type PageResponse struct {
	Data      []LinkResponse `json:"data"`
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	PerPage   int            `json:"perPage"`
	PageCount int            `json:"pageCount"`
}

// Handler provides HTTP handlers for the link pool.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Register mounts the link routes on mux. The redirect route is a
// catch-all and is matched last by the mux's precedence rules.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/links", h.ListLinks)
	mux.HandleFunc("POST /api/links", h.CreateLink)
	mux.HandleFunc("POST /api/links/batch-delete", h.BatchDelete)
	mux.HandleFunc("GET /api/links/{id}", h.GetLink)
	mux.HandleFunc("PATCH /api/links/{id}", h.UpdateLink)
	mux.HandleFunc("DELETE /api/links/{id}", h.DeleteLink)
	mux.HandleFunc("GET /api/links/{id}/qr", h.LinkQR)
	mux.HandleFunc("GET /{shortCode}", h.Redirect)
}

func (h *Handler) shortURL(shortCode string) string {
	return fmt.Sprintf("%s/%s", h.baseURL, shortCode)
}

func (h *Handler) toResponse(l Link) LinkResponse {
	return LinkResponse{Link: l, ShortURL: h.shortURL(l.ShortCode)}
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// CreateLink handles POST /api/links.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		OriginalURL: req.OriginalURL,
		Clicks:      req.Clicks,
		Status:      req.Status,
	})
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"link_id", link.ID.String(),
		"short_code", link.ShortCode,
	)

	httpx.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

// ListLinks handles GET /api/links?page=&perPage=&sort=.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	params, err := parseListParams(r)
	if err != nil {
		logger.WarnContext(ctx, "invalid list parameters", "error", err.Error())
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidInput, err.Error())
		return
	}

	page, err := h.service.List(ctx, params)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	resp := PageResponse{
		Data:      make([]LinkResponse, 0, len(page.Links)),
		Total:     page.Total,
		Page:      page.Page,
		PerPage:   page.PerPage,
		PageCount: page.PageCount,
	}
	for _, l := range page.Links {
		resp.Data = append(resp.Data, h.toResponse(l))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// GetLink handles GET /api/links/{id}.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(ctx, logger, w, r)
	if !ok {
		return
	}

	link, err := h.service.Get(ctx, id)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// UpdateLink handles PATCH /api/links/{id}.
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(ctx, logger, w, r)
	if !ok {
		return
	}

	req, err := httpx.DecodeJSON[HTTPUpdateLinkRequest](r)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	link, err := h.service.Update(ctx, id, UpdateLinkRequest(req))
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	logger.InfoContext(ctx, "link updated", "link_id", link.ID.String(), "status", link.Status)

	httpx.WriteJSON(w, http.StatusOK, h.toResponse(link))
}

// DeleteLink handles DELETE /api/links/{id}.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(ctx, logger, w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	logger.InfoContext(ctx, "link deleted", "link_id", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// BatchDelete handles POST /api/links/batch-delete.
func (h *Handler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[BatchDeleteRequest](r)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	ids, err := parseIDs(req.IDs)
	if err != nil {
		logger.WarnContext(ctx, "invalid ids", "error", err.Error())
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidInput, err.Error())
		return
	}

	deleted, err := h.service.DeleteMany(ctx, ids)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	logger.InfoContext(ctx, "links deleted", "requested", len(ids), "deleted", deleted)
	httpx.WriteJSON(w, http.StatusOK, BatchDeleteResponse{Deleted: deleted})
}

// LinkQR handles GET /api/links/{id}/qr?size=&level= and returns a PNG of the
// link's short URL.
func (h *Handler) LinkQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	id, ok := h.pathID(ctx, logger, w, r)
	if !ok {
		return
	}

	size, level, err := parseQROptions(r)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidInput, err.Error())
		return
	}

	link, err := h.service.Get(ctx, id)
	if err != nil {
		h.handleError(w, r, logger, err)
		return
	}

	png, err := qrcode.Encode(h.shortURL(link.ShortCode), level, size)
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate QR code", "error", err.Error())
		httpx.WriteError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "failed to generate QR code")
		return
	}

	if err := httpx.WritePNG(w, link.ShortCode, png); err != nil {
		logger.WarnContext(ctx, "failed to write QR code response", "error", err.Error())
	}
}

// Redirect handles GET /{shortCode}: it counts the click and redirects.
// Any failure other than a bad request is reported as a plain 404.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	shortCode := r.PathValue("shortCode")

	link, err := h.service.Track(ctx, shortCode)
	if err != nil {
		kind := errx.KindOf(err)
		logAttrs := []any{
			"error", err.Error(),
			"error_kind", kind,
			"operation", errx.OpOf(err),
			"short_code", shortCode,
		}

		switch kind {
		case errx.NotFound, errx.Invalid:
			logger.WarnContext(ctx, "short link not found", logAttrs...)
		default:
			logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		}
		http.NotFound(w, r)
		return
	}

	logger.InfoContext(ctx, "short link resolved",
		"short_code", shortCode,
		"link_id", link.ID.String(),
		"clicks", link.Clicks,
	)

	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}

// handleError logs err by severity and answers with httpx.WriteErrx.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.NotFound, errx.Invalid, errx.Conflict:
		logger.WarnContext(ctx, "request rejected", logAttrs...)
	default:
		logger.ErrorContext(ctx, "request failed", logAttrs...)
	}

	httpx.WriteErrx(w, r, err)
}

func (h *Handler) pathID(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.WarnContext(ctx, "invalid link id", "id", raw)
		httpx.WriteError(w, r, http.StatusBadRequest, httpx.CodeInvalidInput, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseListParams(r *http.Request) (ListParams, error) {
	q := r.URL.Query()

	var p ListParams
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ListParams{}, errors.New("page must be a number")
		}
		if n < 1 {
			return ListParams{}, errors.New("page must be >= 1")
		}
		p.Page = n
	}
	if v := q.Get("perPage"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ListParams{}, errors.New("perPage must be a number")
		}
		if n < 1 || n > MaxPerPage {
			return ListParams{}, fmt.Errorf("perPage must be between 1 and %d", MaxPerPage)
		}
		p.PerPage = n
	}

	if p.Page > 0 {
		perPage := p.PerPage
		if perPage == 0 {
			perPage = DefaultPerPage
		}
		if _, _, err := pageWindow(p.Page, perPage); err != nil {
			return ListParams{}, err
		}
	}

	sort, err := ParseSort(q.Get("sort"))
	if err != nil {
		return ListParams{}, err
	}
	p.Sort = sort
	return p, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseQROptions(r *http.Request) (int, qrcode.RecoveryLevel, error) {
	q := r.URL.Query()

	size := DefaultQRSize
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("size must be a number")
		}
		if n < MinQRSize || n > MaxQRSize {
			return 0, 0, fmt.Errorf("size must be between %d and %d", MinQRSize, MaxQRSize)
		}
		size = n
	}

	level := qrcode.Medium
	switch q.Get("level") {
	case "", "medium":
	case "low":
		level = qrcode.Low
	case "high":
		level = qrcode.High
	case "highest":
		level = qrcode.Highest
	default:
		return 0, 0, errors.New("level must be one of: low, medium, high, highest")
	}

	return size, level, nil
}
