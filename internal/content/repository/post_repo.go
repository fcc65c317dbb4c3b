package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/project-tracker/internal/content"
)

// PostRepository is the PostgreSQL content store. Tables are created by
// postgres.EnsureSchema.
type PostRepository struct {
	db       *sql.DB
	notifier *content.Notifier
}

var _ content.Store = (*PostRepository)(nil)

// NewPostRepository creates a new post repository
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db, notifier: content.NewNotifier()}
}

const postColumns = `p.id, p.post_type, p.status, p.title, p.content, p.author_id, p.created_at, p.updated_at`

// Insert creates the post, its metadata and its terms in one transaction.
func (r *PostRepository) Insert(ctx context.Context, d content.Draft) (int64, error) {
	if strings.TrimSpace(d.Type) == "" {
		return 0, fmt.Errorf("post type required")
	}
	status := d.Status
	if status == "" {
		status = content.StatusPublish
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO posts (post_type, status, title, content, author_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`, d.Type, status, d.Title, d.Content, d.AuthorID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	if err := upsertMeta(ctx, tx, id, d.Meta); err != nil {
		return 0, err
	}
	for _, tax := range sortedKeys(d.Terms) {
		if err := replaceTerms(ctx, tx, id, tax, d.Terms[tax]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostRepository) Get(ctx context.Context, id int64) (*content.Post, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.id = $1`, id)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, content.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PostRepository) Patch(ctx context.Context, id int64, patch content.Patch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE posts
SET title = COALESCE($2, title),
    content = COALESCE($3, content),
    updated_at = now()
WHERE id = $1
`, id, nullString(patch.Title), nullString(patch.Content))
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return content.ErrNotFound
	}

	if err := upsertMeta(ctx, tx, id, patch.Meta); err != nil {
		return err
	}
	for _, tax := range sortedKeys(patch.Terms) {
		if err := replaceTerms(ctx, tx, id, tax, patch.Terms[tax]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes the post permanently; metadata and term relationships go
// with it through ON DELETE CASCADE. Subscribers are notified afterwards.
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	var postType string
	err := r.db.QueryRowContext(ctx, `DELETE FROM posts WHERE id = $1 RETURNING post_type`, id).Scan(&postType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return content.ErrNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	r.notifier.Notify(ctx, content.DeleteEvent{ID: id, Type: postType})
	return nil
}

func (r *PostRepository) Find(ctx context.Context, q content.Query) ([]content.Post, error) {
	query, args := buildFindQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]content.Post, 0, 16)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostRepository) Meta(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT meta_key, meta_value
FROM post_meta
WHERE post_id = $1
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string, 8)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *PostRepository) PostTerms(ctx context.Context, id int64, taxonomy string) ([]content.Term, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT t.id, t.taxonomy, t.name, t.slug
FROM terms t
JOIN term_relationships tr ON tr.term_id = t.id
WHERE tr.post_id = $1 AND t.taxonomy = $2
ORDER BY t.name
`, id, taxonomy)
	if err != nil {
		return nil, err
	}
	return scanTerms(rows)
}

// LookupTerm matches by slug first, then by name.
func (r *PostRepository) LookupTerm(ctx context.Context, taxonomy, nameOrSlug string) (*content.Term, error) {
	var t content.Term
	err := r.db.QueryRowContext(ctx, `
SELECT id, taxonomy, name, slug
FROM terms
WHERE taxonomy = $1 AND (slug = $2 OR name = $2)
ORDER BY (slug = $2) DESC, id
LIMIT 1
`, taxonomy, nameOrSlug).Scan(&t.ID, &t.Taxonomy, &t.Name, &t.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, content.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostRepository) ListTerms(ctx context.Context, taxonomy string) ([]content.Term, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, taxonomy, name, slug
FROM terms
WHERE taxonomy = $1
ORDER BY name
`, taxonomy)
	if err != nil {
		return nil, err
	}
	return scanTerms(rows)
}

func (r *PostRepository) OnDelete(h content.DeleteHandler) func() {
	return r.notifier.Subscribe(h)
}

func buildFindQuery(q content.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Type != "" {
		where = append(where, "p.post_type = "+arg(q.Type))
	}
	if q.Status != "" {
		where = append(where, "p.status = "+arg(q.Status))
	}
	for _, m := range q.Meta {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM post_meta m WHERE m.post_id = p.id AND m.meta_key = %s AND m.meta_value = %s)",
			arg(m.Key), arg(m.Value)))
	}
	for _, t := range q.Terms {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM term_relationships tr JOIN terms t ON t.id = tr.term_id WHERE tr.post_id = p.id AND t.taxonomy = %s AND t.slug = %s)",
			arg(t.Taxonomy), arg(t.Slug)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + postColumns + " FROM posts p")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY p.created_at DESC, p.id DESC")
	return b.String(), args
}

func upsertMeta(ctx context.Context, tx *sql.Tx, postID int64, meta map[string]string) error {
	for _, k := range sortedKeys(meta) {
		_, err := tx.ExecContext(ctx, `
INSERT INTO post_meta (post_id, meta_key, meta_value)
VALUES ($1, $2, $3)
ON CONFLICT (post_id, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
`, postID, k, meta[k])
		if err != nil {
			return fmt.Errorf("upsert meta %s: %w", k, err)
		}
	}
	return nil
}

// replaceTerms detaches every term of taxonomy from the post, then attaches
// names, creating terms that do not exist yet.
func replaceTerms(ctx context.Context, tx *sql.Tx, postID int64, taxonomy string, names []string) error {
	_, err := tx.ExecContext(ctx, `
DELETE FROM term_relationships
WHERE post_id = $1
  AND term_id IN (SELECT id FROM terms WHERE taxonomy = $2)
`, postID, taxonomy)
	if err != nil {
		return fmt.Errorf("clear %s terms: %w", taxonomy, err)
	}

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := content.Slugify(name)
		if slug == "" {
			continue
		}

		var termID int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO terms (taxonomy, name, slug)
VALUES ($1, $2, $3)
ON CONFLICT (taxonomy, slug) DO UPDATE SET name = terms.name
RETURNING id
`, taxonomy, name, slug).Scan(&termID)
		if err != nil {
			return fmt.Errorf("ensure term %q: %w", name, err)
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO term_relationships (post_id, term_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`, postID, termID)
		if err != nil {
			return fmt.Errorf("attach term %q: %w", name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*content.Post, error) {
	var p content.Post
	if err := s.Scan(&p.ID, &p.Type, &p.Status, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTerms(rows *sql.Rows) ([]content.Term, error) {
	defer rows.Close()

	out := make([]content.Term, 0, 4)
	for rows.Next() {
		var t content.Term
		if err := rows.Scan(&t.ID, &t.Taxonomy, &t.Name, &t.Slug); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
