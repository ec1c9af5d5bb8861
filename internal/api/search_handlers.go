package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/relovd/search-api/internal/auth"
	"github.com/relovd/search-api/internal/catalog"
	"github.com/relovd/search-api/internal/search"
	"github.com/relovd/search-api/internal/validate"
)

// clientHeader identifies the calling surface. Mobile clients default to
// the ranking path; everyone else defaults to the deterministic path.
const clientHeader = "X-Relovd-Client"

// SearchHandlers serves the listing search endpoint.
type SearchHandlers struct {
	service    *search.Service
	categories catalog.Resolver
	identity   *auth.IdentityService
	logger     *slog.Logger
}

// NewSearchHandlers creates search handlers. identity may be nil, in which
// case every request is anonymous.
func NewSearchHandlers(service *search.Service, categories catalog.Resolver, identity *auth.IdentityService, logger *slog.Logger) *SearchHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandlers{
		service:    service,
		categories: categories,
		identity:   identity,
		logger:     logger,
	}
}

// SearchListings handles GET /search/listings.
//
// Query parameters:
//   - q: free-text query (required on the non-ranking path)
//   - category: category id or name
//   - gender: men, women or unisex
//   - limit: page size, 1..50 (default 20)
//   - page: 1-based page number (default 1)
//   - seed: rank seed, any integer
//   - ranked: "true" or "false", overrides the client-header default
func (h *SearchHandlers) SearchListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseIntParam(q.Get("limit"))
	if err != nil {
		WriteError(w, r, ErrCodeValidation, "limit must be an integer")
		return
	}
	page, err := parseIntParam(q.Get("page"))
	if err != nil {
		WriteError(w, r, ErrCodeValidation, "page must be an integer")
		return
	}
	seed, err := parseIntParam(q.Get("seed"))
	if err != nil {
		WriteError(w, r, ErrCodeValidation, "seed must be an integer")
		return
	}

	useRanking, err := h.resolveRankingPath(r)
	if err != nil {
		WriteError(w, r, ErrCodeValidation, "ranked must be true or false")
		return
	}

	query, err := validate.SearchQuery(q.Get("q"))
	if err != nil {
		WriteError(w, r, ErrCodeValidation, "q must be at most 200 characters")
		return
	}

	category := q.Get("category")
	if category != "" {
		if _, idErr := strconv.ParseInt(strings.TrimSpace(category), 10, 64); idErr != nil {
			// A name that fails validation cannot match a catalog entry;
			// drop it like any other unrecognized category.
			if _, nameErr := validate.CategoryName(category); nameErr != nil {
				h.logger.DebugContext(r.Context(), "dropping invalid category parameter",
					slog.String("category", category))
				category = ""
			}
		}
	}

	params := search.Params{
		Query:              query,
		Category:           category,
		Gender:             q.Get("gender"),
		Limit:              limit,
		Page:               page,
		Seed:               seed,
		PersonalizationKey: h.identity.PersonalizationKey(r),
		UseRanking:         useRanking,
	}

	filter, err := search.BuildFilter(r.Context(), params, h.categories)
	if err != nil {
		if errors.Is(err, search.ErrQueryRequired) {
			WriteError(w, r, ErrCodeValidation, "q is required")
			return
		}
		WriteError(w, r, ErrCodeBadRequest, "invalid search parameters")
		return
	}

	result, err := h.service.Search(r.Context(), filter, useRanking)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "search request failed",
			slog.String("query", filter.SearchText),
			slog.Bool("ranked", useRanking),
			slog.String("error", err.Error()))
		WriteError(w, r, ErrCodeInternal, "search is temporarily unavailable")
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// resolveRankingPath picks the search path. An explicit ranked parameter
// wins; otherwise mobile clients get the ranking path.
func (h *SearchHandlers) resolveRankingPath(r *http.Request) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("ranked"))
	if raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return false, err
		}
		return v, nil
	}
	return strings.EqualFold(r.Header.Get(clientHeader), "mobile"), nil
}

// parseIntParam parses an optional integer parameter; empty means zero,
// which the filter builder replaces with its default.
func parseIntParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
