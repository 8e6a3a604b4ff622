// Package commerce implements the catalog, cart and checkout operations the
// assistant's tools execute.
package commerce

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/internal/cache"
	"github.com/procura/procura/plugin/vectorstore"
	"github.com/procura/procura/store"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100

	MaxItemNameLength        = 200
	MaxItemCategoryLength    = 100
	MaxItemDescriptionLength = 2000

	searchCachePrefix = "search:"
)

// Field weights for search ranking.
const (
	weightName        = 3
	weightCategory    = 2
	weightDescription = 1
)

// Index is the optional semantic index consulted when keyword search finds
// nothing.
type Index interface {
	UpsertItem(ctx context.Context, item *store.Item) error
	SearchSimilar(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)
}

// SearchQuery is a catalog search request.
type SearchQuery struct {
	Query    string
	MinPrice *float64
	MaxPrice *float64
	Category string
	Limit    int
}

// SearchResult is a ranked list of active items.
type SearchResult struct {
	Items []*store.Item
	// Semantic is set when the items came from the semantic index.
	Semantic bool
}

// RegisterItem is the payload for Catalog.RegisterItem.
type RegisterItem struct {
	Name        string
	Category    string
	Description string
	Price       float64
	// ConfirmDuplicate creates the item even when similar items exist.
	ConfirmDuplicate bool
}

// Catalog searches and maintains catalog items.
type Catalog struct {
	store  *store.Store
	cache  cache.Cache
	index  Index
	filter *itemFilter
	group  singleflight.Group
	// generation increases on every catalog change. A search fill started
	// under an older generation must not stay in the cache.
	generation atomic.Uint64
}

// NewCatalog returns a catalog over s. A nil cache disables caching and a nil
// index disables the semantic fallback.
func NewCatalog(s *store.Store, c cache.Cache, index Index) (*Catalog, error) {
	if c == nil {
		c = cache.Noop{}
	}
	filter, err := newItemFilter()
	if err != nil {
		return nil, err
	}
	return &Catalog{store: s, cache: c, index: index, filter: filter}, nil
}

func (q *SearchQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		q.Limit = MaxSearchLimit
	}
}

func (q *SearchQuery) cacheKey() string {
	bound := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f", *v)
	}
	return fmt.Sprintf("%s%s|%s|%s|%s|%d", searchCachePrefix,
		strings.Join(searchWords(q.Query), " "), bound(q.MinPrice), bound(q.MaxPrice), fold(q.Category), q.Limit)
}

// Search ranks active items by how many query words hit the name, category
// and description, in that order of weight. Results are cached by the
// normalized query and filters until the catalog changes.
func (c *Catalog) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	q.normalize()
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return nil, apperr.FieldValidation("minPrice", "must not exceed maxPrice")
	}
	key := q.cacheKey()
	if cached, ok := c.cache.Get(key); ok {
		return cached.(*SearchResult), nil
	}

	gen := c.generation.Load()
	v, err, _ := c.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		result, err := c.search(ctx, &q)
		if err != nil {
			return nil, err
		}
		c.cacheFill(key, gen, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SearchResult), nil
}

// cacheFill caches result unless the catalog changed since gen was read. The
// generation is checked again after Set because an invalidation may land
// between the check and the write.
func (c *Catalog) cacheFill(key string, gen uint64, result *SearchResult) {
	if c.generation.Load() != gen {
		return
	}
	c.cache.Set(key, result)
	if c.generation.Load() != gen {
		c.cache.Invalidate(key)
	}
}

type scoredItem struct {
	item  *store.Item
	score int
}

func (c *Catalog) search(ctx context.Context, q *SearchQuery) (*SearchResult, error) {
	words := searchWords(q.Query)
	active := store.ItemActive
	items, err := c.store.ListItems(ctx, &store.FindItem{Status: &active, Words: words})
	if err != nil {
		return nil, err
	}

	scored := make([]scoredItem, 0, len(items))
	for _, item := range items {
		ok, err := c.filter.Match(item, q)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		scored = append(scored, scoredItem{item: item, score: score(item, words)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return fold(scored[i].item.Name) < fold(scored[j].item.Name)
	})
	if len(scored) > q.Limit {
		scored = scored[:q.Limit]
	}

	result := &SearchResult{Items: make([]*store.Item, 0, len(scored))}
	for _, s := range scored {
		result.Items = append(result.Items, s.item)
	}
	if len(result.Items) == 0 && len(words) > 0 && c.index != nil {
		semantic, err := c.semanticSearch(ctx, q)
		if err != nil {
			slog.Warn("semantic catalog search failed", "err", err)
			return result, nil
		}
		return semantic, nil
	}
	return result, nil
}

func score(item *store.Item, words []string) int {
	name, category, description := fold(item.Name), fold(item.Category), fold(item.Description)
	total := 0
	for _, w := range words {
		if strings.Contains(name, w) {
			total += weightName
		}
		if strings.Contains(category, w) {
			total += weightCategory
		}
		if strings.Contains(description, w) {
			total += weightDescription
		}
	}
	return total
}

func (c *Catalog) semanticSearch(ctx context.Context, q *SearchQuery) (*SearchResult, error) {
	hits, err := c.index.SearchSimilar(ctx, q.Query, q.Limit)
	if err != nil || len(hits) == 0 {
		return &SearchResult{}, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ItemID)
	}
	active := store.ItemActive
	items, err := c.store.ListItems(ctx, &store.FindItem{IDs: ids, Status: &active})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*store.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	result := &SearchResult{Semantic: true}
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			continue
		}
		matched, err := c.filter.Match(item, q)
		if err != nil {
			return nil, err
		}
		if matched {
			result.Items = append(result.Items, item)
		}
	}
	return result, nil
}

// GetItem returns an item by id.
func (c *Catalog) GetItem(ctx context.Context, id string) (*store.Item, error) {
	item, err := c.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperr.NotFound("item %s not found", id)
	}
	return item, nil
}

// RegisterItem validates and creates a catalog item. Unless confirmed, an
// item whose name and category both approximately match an existing item is
// refused with the candidates listed.
func (c *Catalog) RegisterItem(ctx context.Context, create RegisterItem) (*store.Item, error) {
	create.Name = strings.TrimSpace(create.Name)
	create.Category = strings.TrimSpace(create.Category)
	create.Description = strings.TrimSpace(create.Description)
	if err := validateItemFields(create.Name, create.Category, create.Description, create.Price); err != nil {
		return nil, err
	}

	if !create.ConfirmDuplicate {
		candidates, err := c.duplicateCandidates(ctx, create.Name, create.Category)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return nil, apperr.Duplicate(candidates)
		}
	}

	item, err := c.store.CreateItem(ctx, &store.Item{
		Name:        create.Name,
		Category:    create.Category,
		Description: create.Description,
		Price:       store.RoundCents(create.Price),
	})
	if err != nil {
		return nil, err
	}
	c.catalogChanged(ctx, item)
	return item, nil
}

// UpdateItem applies update and refreshes the search cache and index.
func (c *Catalog) UpdateItem(ctx context.Context, update *store.UpdateItem) (*store.Item, error) {
	current, err := c.GetItem(ctx, update.ID)
	if err != nil {
		return nil, err
	}
	name, category, description, price := current.Name, current.Category, current.Description, current.Price
	if update.Name != nil {
		name = strings.TrimSpace(*update.Name)
		update.Name = &name
	}
	if update.Category != nil {
		category = strings.TrimSpace(*update.Category)
		update.Category = &category
	}
	if update.Description != nil {
		description = strings.TrimSpace(*update.Description)
		update.Description = &description
	}
	if update.Price != nil {
		price = store.RoundCents(*update.Price)
		update.Price = &price
	}
	if err := validateItemFields(name, category, description, price); err != nil {
		return nil, err
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, apperr.FieldValidation("status", "unknown status %q", *update.Status)
	}

	item, err := c.store.UpdateItem(ctx, update)
	if err != nil {
		return nil, err
	}
	c.catalogChanged(ctx, item)
	return item, nil
}

// reindexWorkers bounds concurrent embedding requests during Reindex.
const reindexWorkers = 4

// Reindex loads every catalog item into the semantic index and returns how
// many were sent. Inactive items are removed from the index.
func (c *Catalog) Reindex(ctx context.Context) (int, error) {
	if c.index == nil {
		return 0, nil
	}
	items, err := c.store.ListItems(ctx, &store.FindItem{})
	if err != nil {
		return 0, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexWorkers)
	for _, item := range items {
		g.Go(func() error {
			return c.index.UpsertItem(gctx, item)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (c *Catalog) catalogChanged(ctx context.Context, item *store.Item) {
	c.generation.Add(1)
	c.cache.Invalidate(searchCachePrefix)
	if c.index == nil {
		return
	}
	if err := c.index.UpsertItem(ctx, item); err != nil {
		slog.Warn("failed to index catalog item", "item", item.ID, "err", err)
	}
}

func (c *Catalog) duplicateCandidates(ctx context.Context, name, category string) ([]apperr.Candidate, error) {
	normName, normCategory := normalizeName(name), normalizeName(category)
	// Near matches ("widgets" vs "widget") defeat substring filters, so every
	// item is compared.
	items, err := c.store.ListItems(ctx, &store.FindItem{})
	if err != nil {
		return nil, err
	}
	var candidates []apperr.Candidate
	for _, item := range items {
		if item.Status == store.ItemInactive {
			continue
		}
		if similar(normalizeName(item.Name), normName) && similar(normalizeName(item.Category), normCategory) {
			candidates = append(candidates, apperr.Candidate{ID: item.ID, Name: item.Name, Category: item.Category})
		}
	}
	return candidates, nil
}

func validateItemFields(name, category, description string, price float64) error {
	switch {
	case name == "":
		return apperr.FieldValidation("name", "is required")
	case utf8.RuneCountInString(name) > MaxItemNameLength:
		return apperr.FieldValidation("name", "must be at most %d characters", MaxItemNameLength)
	case category == "":
		return apperr.FieldValidation("category", "is required")
	case utf8.RuneCountInString(category) > MaxItemCategoryLength:
		return apperr.FieldValidation("category", "must be at most %d characters", MaxItemCategoryLength)
	case utf8.RuneCountInString(description) > MaxItemDescriptionLength:
		return apperr.FieldValidation("description", "must be at most %d characters", MaxItemDescriptionLength)
	case math.IsNaN(price) || math.IsInf(price, 0) || price <= 0:
		return apperr.FieldValidation("price", "must be a positive amount")
	}
	return nil
}
