// Package category maps a parsed transaction's category hint onto a
// persisted category id, creating missing categories on the fly.
package category

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sheu-1/flow-sub001/internal/domain"
)

// Store is the slice of the persistence gateway the resolver needs.
type Store interface {
	ListCategories(ctx context.Context, userID string) ([]domain.CategoryAssignment, error)
	CreateCategory(ctx context.Context, userID string, c domain.CategoryAssignment) (string, error)
}

// Assignment is the resolver's result. When ID is empty the category
// could not be resolved or created and Label carries the legacy free-text
// fallback; the pipeline proceeds either way.
type Assignment struct {
	ID    string
	Label string
}

type cacheEntry struct {
	categories []domain.CategoryAssignment
	fetchedAt  time.Time
}

// Resolver resolves (hint, direction) pairs against a per-user cache of
// persisted categories, refreshed on a TTL. Safe for concurrent use.
type Resolver struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

// NewResolver creates a resolver whose cache goes stale after ttl.
// now is injectable for tests; pass nil for time.Now.
func NewResolver(store Store, ttl time.Duration, now func() time.Time, log zerolog.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		store: store,
		ttl:   ttl,
		now:   now,
		log:   log,
		cache: make(map[string]*cacheEntry),
	}
}

// Resolve returns the category assignment for the hint. A cache entry
// matching (name, direction) case-insensitively wins; on miss a new
// category is created with a deterministic icon and color. Category
// creation failure is non-fatal: the result falls back to the hint as a
// legacy free-text label and Resolve reports no error.
func (r *Resolver) Resolve(ctx context.Context, userID, hint string, dir domain.Direction) Assignment {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		hint = "Other"
	}

	categories, err := r.cached(ctx, userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("category cache refresh failed")
		return Assignment{Label: hint}
	}

	if id, ok := match(categories, hint, dir); ok {
		return Assignment{ID: id, Label: hint}
	}

	created := domain.CategoryAssignment{
		Name:      hint,
		Direction: dir,
		Icon:      iconFor(hint),
		Color:     colorFor(hint, dir),
	}
	id, err := r.store.CreateCategory(ctx, userID, created)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Str("category", hint).
			Msg("category create failed, using free-text label")
		return Assignment{Label: hint}
	}
	created.ID = id

	r.mu.Lock()
	if entry, ok := r.cache[userID]; ok {
		entry.categories = append(entry.categories, created)
	}
	r.mu.Unlock()

	return Assignment{ID: id, Label: hint}
}

// Refresh forces the next Resolve for the user to reload from the store.
func (r *Resolver) Refresh(userID string) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

func (r *Resolver) cached(ctx context.Context, userID string) ([]domain.CategoryAssignment, error) {
	r.mu.Lock()
	entry, ok := r.cache[userID]
	if ok && r.now().Sub(entry.fetchedAt) < r.ttl {
		categories := entry.categories
		r.mu.Unlock()
		return categories, nil
	}
	r.mu.Unlock()

	categories, err := r.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cached: list categories: %w", err)
	}

	r.mu.Lock()
	r.cache[userID] = &cacheEntry{categories: categories, fetchedAt: r.now()}
	r.mu.Unlock()
	return categories, nil
}

func match(categories []domain.CategoryAssignment, hint string, dir domain.Direction) (string, bool) {
	for _, c := range categories {
		if c.Direction == dir && strings.EqualFold(c.Name, hint) {
			return c.ID, true
		}
	}
	return "", false
}

// iconFor and colorFor derive a stable icon/color pair from the hint so
// the same category always renders the same way, on any device.

var icons = map[string]string{
	"salary":            "briefcase",
	"mobile money":      "smartphone",
	"airtime & data":    "wifi",
	"cash withdrawal":   "banknote",
	"bills & utilities": "file-text",
	"food & dining":     "utensils",
	"transport":         "bus",
	"shopping":          "shopping-cart",
	"healthcare":        "heart-pulse",
}

var palette = []string{
	"#E57373", "#64B5F6", "#81C784", "#FFD54F", "#BA68C8",
	"#4DB6AC", "#FF8A65", "#A1887F", "#90A4AE", "#7986CB",
}

func iconFor(hint string) string {
	if icon, ok := icons[strings.ToLower(hint)]; ok {
		return icon
	}
	return "tag"
}

func colorFor(hint string, dir domain.Direction) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(hint)))
	h.Write([]byte(dir))
	return palette[h.Sum32()%uint32(len(palette))]
}
