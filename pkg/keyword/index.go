package keyword

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/lyralabs/lyra/pkg/logger"
	"github.com/lyralabs/lyra/pkg/store"
)

const indexFile = "keyword_index.json"

// Doc is one indexable unit from a source store. Position is the insertion
// order inside its source; higher means more recent.
type Doc struct {
	ID   string
	Text string
}

// Source provides the documents of one index class. FileName is the backing
// store document whose mtime drives incremental reindexing.
type Source interface {
	Class() string
	FileName() string
	Documents() ([]Doc, error)
}

type classTable struct {
	Keywords    map[string][]string `json:"keywords"` // keyword -> doc ids, source order
	DocOrder    []string            `json:"doc_order"`
	LastIndexed int64               `json:"last_indexed"`
}

type persisted struct {
	Classes map[string]*classTable `json:"classes"`
}

// Index is the inverted keyword index over every registered class. Readers
// always see a consistent snapshot: rebuilds assemble a fresh table and swap
// it in one step under the write lock.
type Index struct {
	store   *store.Store
	clock   interface{ Now() int64 }
	sources map[string]Source

	mu      sync.RWMutex
	classes map[string]*classTable
}

func NewIndex(st *store.Store, clk interface{ Now() int64 }) *Index {
	idx := &Index{
		store:   st,
		clock:   clk,
		sources: make(map[string]Source),
		classes: make(map[string]*classTable),
	}
	var p persisted
	if ok, _ := st.Load(indexFile, &p); ok && p.Classes != nil {
		idx.classes = p.Classes
	}
	return idx
}

func (idx *Index) Register(src Source) {
	idx.sources[src.Class()] = src
}

// EnsureCurrent reindexes any class whose source file changed since its last
// index pass. Parse failures in a source rebuild that class from scratch and
// never propagate.
func (idx *Index) EnsureCurrent() {
	dirty := false
	for class, src := range idx.sources {
		mtime := idx.store.ModTime(src.FileName())
		idx.mu.RLock()
		table, have := idx.classes[class]
		idx.mu.RUnlock()
		if have && mtime != 0 && mtime <= table.LastIndexed {
			continue
		}
		if idx.reindexClass(src) {
			dirty = true
		}
	}
	if dirty {
		idx.persist()
	}
}

// ReindexAll rebuilds every registered class unconditionally.
func (idx *Index) ReindexAll() {
	for _, src := range idx.sources {
		idx.reindexClass(src)
	}
	idx.persist()
}

func (idx *Index) reindexClass(src Source) bool {
	docs, err := src.Documents()
	if err != nil {
		logger.WarnCF("keyword", "source read failed, rebuilding empty", map[string]interface{}{
			"class": src.Class(),
			"error": err.Error(),
		})
		docs = nil
	}

	table := &classTable{
		Keywords:    make(map[string][]string),
		DocOrder:    make([]string, 0, len(docs)),
		LastIndexed: idx.clock.Now(),
	}
	for _, doc := range docs {
		table.DocOrder = append(table.DocOrder, doc.ID)
		for _, kw := range ExtractKeywords(doc.Text) {
			ids := table.Keywords[kw]
			if len(ids) > 0 && ids[len(ids)-1] == doc.ID {
				continue
			}
			table.Keywords[kw] = append(ids, doc.ID)
		}
	}

	idx.mu.Lock()
	idx.classes[src.Class()] = table
	idx.mu.Unlock()
	return true
}

// Find returns doc ids of the class matching any of the keywords, ranked by
// match count then recency. Too-common keywords are ignored. Only ids still
// present in the current table are returned.
func (idx *Index) Find(class string, keywords []string) []string {
	idx.mu.RLock()
	table, ok := idx.classes[class]
	idx.mu.RUnlock()
	if !ok || len(keywords) == 0 {
		return nil
	}

	position := make(map[string]int, len(table.DocOrder))
	for i, id := range table.DocOrder {
		position[id] = i
	}

	scores := make(map[string]int)
	for _, raw := range keywords {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if len(kw) <= 2 || isStopWord(kw) {
			continue
		}
		seen := make(map[string]bool)
		for _, variant := range keywordVariants(kw) {
			for _, id := range table.Keywords[variant] {
				if _, exists := position[id]; !exists {
					continue
				}
				if !seen[id] {
					seen[id] = true
					scores[id]++
				}
			}
		}
	}
	if len(scores) == 0 {
		return nil
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return position[ids[i]] > position[ids[j]]
	})
	return ids
}

// Stats reports per-class document and keyword counts for the dashboard.
func (idx *Index) Stats() map[string]map[string]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]map[string]int, len(idx.classes))
	for class, table := range idx.classes {
		out[class] = map[string]int{
			"documents": len(table.DocOrder),
			"keywords":  len(table.Keywords),
		}
	}
	return out
}

// persist marshals under the read lock; reindexing mutates the class
// map concurrently.
func (idx *Index) persist() {
	idx.mu.RLock()
	data, err := json.Marshal(&persisted{Classes: idx.classes})
	idx.mu.RUnlock()
	if err == nil {
		err = idx.store.Save(indexFile, json.RawMessage(data))
	}
	if err != nil {
		logger.WarnCF("keyword", "persist failed", map[string]interface{}{"error": err.Error()})
	}
}

func keywordVariants(kw string) []string {
	variants := []string{kw}
	if stem, ok := simpleStem(kw); ok {
		variants = append(variants, stem)
	}
	for _, suffix := range []string{"s", "ed", "ing"} {
		variants = append(variants, kw+suffix)
	}
	return variants
}
