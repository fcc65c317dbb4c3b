// Package content is a small persistence abstraction for typed records
// ("posts") with key-value metadata and taxonomy terms. Feature packages such
// as projects build on it instead of owning their own tables.
package content

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("content: record not found")

const StatusPublish = "publish"

type Post struct {
	ID        int64
	Type      string
	Status    string
	Title     string
	Content   string
	AuthorID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Term struct {
	ID       int64  `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}

// Draft is a post to insert together with its metadata and terms.
// Terms maps a taxonomy to the term names the post should carry.
type Draft struct {
	Post
	Meta  map[string]string
	Terms map[string][]string
}

// Patch is a partial update. Nil Title/Content are left untouched, Meta keys
// are upserted, and every taxonomy named in Terms has its terms replaced.
type Patch struct {
	Title   *string
	Content *string
	Meta    map[string]string
	Terms   map[string][]string
}

type MetaClause struct {
	Key   string
	Value string
}

type TermClause struct {
	Taxonomy string
	Slug     string
}

// Query selects posts. Empty Type/Status match anything; every Meta and
// Terms clause must hold.
type Query struct {
	Type   string
	Status string
	Meta   []MetaClause
	Terms  []TermClause
}

// DeleteEvent describes a post that has been permanently deleted.
type DeleteEvent struct {
	ID   int64
	Type string
}

type DeleteHandler func(ctx context.Context, ev DeleteEvent)

// Store is implemented by the PostgreSQL repository and by MemoryStore.
type Store interface {
	Insert(ctx context.Context, d Draft) (int64, error)
	Get(ctx context.Context, id int64) (*Post, error)
	Patch(ctx context.Context, id int64, p Patch) error
	Delete(ctx context.Context, id int64) error
	Find(ctx context.Context, q Query) ([]Post, error)

	Meta(ctx context.Context, id int64) (map[string]string, error)
	PostTerms(ctx context.Context, id int64, taxonomy string) ([]Term, error)
	LookupTerm(ctx context.Context, taxonomy, nameOrSlug string) (*Term, error)
	ListTerms(ctx context.Context, taxonomy string) ([]Term, error)

	// OnDelete registers h to run after every successful Delete, whoever
	// called it. The returned func removes the subscription.
	OnDelete(h DeleteHandler) func()
}
