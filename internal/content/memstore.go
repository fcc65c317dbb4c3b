package content

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and local runs without
// PostgreSQL; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	nextPost int64
	nextTerm int64
	posts    map[int64]*Post
	meta     map[int64]map[string]string
	terms    map[int64]*Term
	rels     map[int64]map[int64]struct{} // post id -> term ids
	now      func() time.Time

	notifier *Notifier
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[int64]*Post),
		meta:     make(map[int64]map[string]string),
		terms:    make(map[int64]*Term),
		rels:     make(map[int64]map[int64]struct{}),
		now:      time.Now,
		notifier: NewNotifier(),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, d Draft) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPost++
	now := s.now()
	p := d.Post
	p.ID = s.nextPost
	p.CreatedAt = now
	p.UpdatedAt = now
	s.posts[p.ID] = &p
	s.meta[p.ID] = make(map[string]string, len(d.Meta))

	for k, v := range d.Meta {
		s.meta[p.ID][k] = v
	}
	for tax, names := range d.Terms {
		s.setTermsLocked(p.ID, tax, names)
	}
	return p.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) Patch(ctx context.Context, id int64, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	p.UpdatedAt = s.now()

	for k, v := range patch.Meta {
		s.meta[id][k] = v
	}
	for tax, names := range patch.Terms {
		s.setTermsLocked(id, tax, names)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	p, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	ev := DeleteEvent{ID: id, Type: p.Type}
	delete(s.posts, id)
	delete(s.meta, id)
	delete(s.rels, id)
	s.mu.Unlock()

	s.notifier.Notify(ctx, ev)
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, q Query) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Post, 0, 16)
	for id, p := range s.posts {
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if !s.matchesMetaLocked(id, q.Meta) || !s.matchesTermsLocked(id, q.Terms) {
			continue
		}
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Meta(ctx context.Context, id int64) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meta[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) PostTerms(ctx context.Context, id int64, taxonomy string) ([]Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[id]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Term, 0, 1)
	for tid := range s.rels[id] {
		if t := s.terms[tid]; t.Taxonomy == taxonomy {
			out = append(out, *t)
		}
	}
	sortTerms(out)
	return out, nil
}

func (s *MemoryStore) LookupTerm(ctx context.Context, taxonomy, nameOrSlug string) (*Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t := s.findTermLocked(taxonomy, nameOrSlug); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListTerms(ctx context.Context, taxonomy string) ([]Term, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Term, 0, len(s.terms))
	for _, t := range s.terms {
		if t.Taxonomy == taxonomy {
			out = append(out, *t)
		}
	}
	sortTerms(out)
	return out, nil
}

func (s *MemoryStore) OnDelete(h DeleteHandler) func() {
	return s.notifier.Subscribe(h)
}

// findTermLocked prefers a slug match over a name match.
func (s *MemoryStore) findTermLocked(taxonomy, nameOrSlug string) *Term {
	var byName *Term
	for _, t := range s.terms {
		if t.Taxonomy != taxonomy {
			continue
		}
		if t.Slug == nameOrSlug {
			return t
		}
		if byName == nil && t.Name == nameOrSlug {
			byName = t
		}
	}
	return byName
}

func (s *MemoryStore) setTermsLocked(postID int64, taxonomy string, names []string) {
	rel := s.rels[postID]
	if rel == nil {
		rel = make(map[int64]struct{})
		s.rels[postID] = rel
	}
	for tid := range rel {
		if s.terms[tid].Taxonomy == taxonomy {
			delete(rel, tid)
		}
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := Slugify(name)
		if slug == "" {
			continue
		}
		t := s.findTermLocked(taxonomy, slug)
		if t == nil {
			s.nextTerm++
			t = &Term{ID: s.nextTerm, Taxonomy: taxonomy, Name: name, Slug: slug}
			s.terms[t.ID] = t
		}
		rel[t.ID] = struct{}{}
	}
}

func (s *MemoryStore) matchesMetaLocked(id int64, clauses []MetaClause) bool {
	for _, c := range clauses {
		if s.meta[id][c.Key] != c.Value {
			return false
		}
	}
	return true
}

func (s *MemoryStore) matchesTermsLocked(id int64, clauses []TermClause) bool {
	for _, c := range clauses {
		found := false
		for tid := range s.rels[id] {
			t := s.terms[tid]
			if t.Taxonomy == c.Taxonomy && t.Slug == c.Slug {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortTerms(ts []Term) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
}
