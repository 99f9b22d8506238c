// Package querymodule serves paginated gallery queries over the
// metadata store, with cached orderings so page N+1 agrees with page N.
package querymodule

import (
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lumengallery/lumen/internal/modules/storemodule"
)

// Sort modes accepted by Query. The zero value falls back to
// ModeChronological.
const (
	ModeChronological = "chronological"
	ModeRandom        = "random"
	ModeFirstToLast   = "firstToLast"
	ModeLastToFirst   = "lastToFirst"
)

// Page is one window of query results.
type Page struct {
	Items   []*storemodule.ImageRecord
	Total   int
	HasMore bool
}

// Engine answers search and pagination requests. Each distinct
// (term, mode) pair gets a cached id ordering, built once and reused
// until membership changes, so random mode hands out a stable
// permutation across pages.
type Engine struct {
	store    *storemodule.Store
	pageSize int

	mu    sync.Mutex
	cache map[string][]string

	// fileExists is swappable in tests; records whose file is gone are
	// dropped from results without error.
	fileExists func(path string) bool
	newSeed    func() int64
}

func NewEngine(store *storemodule.Store, pageSize int) *Engine {
	if pageSize < 1 {
		pageSize = 20
	}
	return &Engine{
		store:      store,
		pageSize:   pageSize,
		cache:      make(map[string][]string),
		fileExists: fileExists,
		newSeed:    rand.Int63,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Query returns one page of records matching term, ordered by mode.
// A limit of zero or less uses the engine's page size. Offsets past
// the end return an empty page with HasMore false.
func (e *Engine) Query(term, mode string, offset, limit int) Page {
	if limit <= 0 {
		limit = e.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	mode = normalizeMode(mode)

	ids := e.ordering(term, mode)

	page := Page{
		Items:   []*storemodule.ImageRecord{},
		Total:   len(ids),
		HasMore: offset+limit < len(ids),
	}
	if offset >= len(ids) {
		return page
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	for _, id := range ids[offset:end] {
		rec, err := e.store.Get(id)
		if err != nil {
			continue
		}
		page.Items = append(page.Items, rec)
	}
	return page
}

// TagFrequencies returns every tag containing keyword (case-insensitive
// substring, empty matches all) with its usage count, most used first
// and alphabetical within equal counts.
func (e *Engine) TagFrequencies(keyword string) []TagCount {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	counts := make(map[string]int)
	display := make(map[string]string)
	for _, rec := range e.store.GetAll() {
		for _, tag := range rec.Tags {
			lower := strings.ToLower(tag)
			if keyword != "" && !strings.Contains(lower, keyword) {
				continue
			}
			counts[lower]++
			if _, ok := display[lower]; !ok {
				display[lower] = tag
			}
		}
	}

	out := make([]TagCount, 0, len(counts))
	for lower, n := range counts {
		out = append(out, TagCount{Name: display[lower], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}

// TagCount is one entry of the tag frequency listing.
type TagCount struct {
	Name  string `json:"tag"`
	Count int    `json:"count"`
}

// Invalidate drops every cached ordering. Called when store membership
// or tag content changes.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.cache = make(map[string][]string)
	e.mu.Unlock()
}

// ordering returns the cached id list for (term, mode), building it on
// first use.
func (e *Engine) ordering(term, mode string) []string {
	key := cacheKey(term, mode)

	e.mu.Lock()
	defer e.mu.Unlock()
	if ids, ok := e.cache[key]; ok {
		return ids
	}
	ids := e.build(term, mode)
	e.cache[key] = ids
	return ids
}

// build filters the store snapshot by term, drops records whose file no
// longer exists, and orders by mode.
func (e *Engine) build(term, mode string) []string {
	needle := strings.ToLower(strings.TrimSpace(term))

	var matched []*storemodule.ImageRecord
	for _, rec := range e.store.GetAll() {
		if needle != "" && !matches(rec, needle) {
			continue
		}
		if !e.fileExists(rec.FilePath) {
			continue
		}
		matched = append(matched, rec)
	}

	switch mode {
	case ModeFirstToLast:
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].Date.Equal(matched[j].Date) {
				return matched[i].Date.Before(matched[j].Date)
			}
			return matched[i].Name < matched[j].Name
		})
	case ModeRandom:
		sortNewestFirst(matched)
		rng := rand.New(rand.NewSource(e.newSeed()))
		rng.Shuffle(len(matched), func(i, j int) {
			matched[i], matched[j] = matched[j], matched[i]
		})
	default: // chronological and lastToFirst
		sortNewestFirst(matched)
	}

	ids := make([]string, len(matched))
	for i, rec := range matched {
		ids[i] = rec.Name
	}
	return ids
}

func sortNewestFirst(recs []*storemodule.ImageRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.After(recs[j].Date)
		}
		return recs[i].Name < recs[j].Name
	})
}

// matches reports whether needle appears as a substring in the OCR
// text, description, title, or any tag. The filename is deliberately
// not searched. Needle is already lowercased.
func matches(rec *storemodule.ImageRecord, needle string) bool {
	if strings.Contains(strings.ToLower(rec.Title), needle) ||
		strings.Contains(strings.ToLower(rec.Description), needle) ||
		strings.Contains(strings.ToLower(rec.OCRText), needle) {
		return true
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func normalizeMode(mode string) string {
	switch mode {
	case ModeRandom, ModeFirstToLast, ModeLastToFirst, ModeChronological:
		return mode
	default:
		return ModeChronological
	}
}

// cacheKey folds the empty search into a shared "all" bucket.
func cacheKey(term, mode string) string {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		needle = "all"
	}
	return needle + "|" + mode
}
