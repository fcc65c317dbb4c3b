package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-tracker/internal/cache"
	"github.com/GoSim-25-26J-441/project-tracker/internal/content"
	"github.com/GoSim-25-26J-441/project-tracker/internal/projects/domain"
)

const (
	PostType       = "project"
	ClientTaxonomy = "client"

	// ListCacheKey holds the snapshot of the unfiltered project list.
	ListCacheKey    = "project_tracker_projects"
	DefaultCacheTTL = 60 * time.Second

	metaStartDate      = "_start_date"
	metaEndDate        = "_end_date"
	metaStatus         = "_status"
	metaBudget         = "_budget"
	metaProjectManager = "_project_manager"
)

// AccessControl answers per-user, per-record authorization questions.
type AccessControl interface {
	CanCreate(ctx context.Context, userID int64) (bool, error)
	CanEdit(ctx context.Context, userID, projectID int64) (bool, error)
	CanDelete(ctx context.Context, userID, projectID int64) (bool, error)
}

// ProjectService handles project business logic on top of the content store.
type ProjectService struct {
	store  content.Store
	cache  cache.Store
	access AccessControl
	ttl    time.Duration
	log    *zap.Logger
}

type Option func(*ProjectService)

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *ProjectService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *ProjectService) {
		if log != nil {
			s.log = log
		}
	}
}

// NewProjectService creates a new project service
func NewProjectService(store content.Store, cache cache.Store, access AccessControl, opts ...Option) *ProjectService {
	s := &ProjectService{
		store:  store,
		cache:  cache,
		access: access,
		ttl:    DefaultCacheTTL,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHooks subscribes to content deletions so that a project removed by
// any code path drops the list cache. Call it once at startup; the returned
// func unsubscribes.
func (s *ProjectService) RegisterHooks() func() {
	return s.store.OnDelete(func(ctx context.Context, ev content.DeleteEvent) {
		if ev.Type == PostType {
			s.invalidate(ctx)
		}
	})
}

// List returns published projects. Without a filter the result is served
// from, and stored into, the list cache; filtered listings always hit the
// content store.
func (s *ProjectService) List(ctx context.Context, f domain.Filter) ([]domain.Project, error) {
	f.Status = sanitizeText(f.Status)
	f.Client = sanitizeText(f.Client)

	q := content.Query{Type: PostType, Status: content.StatusPublish}

	if f.Status != "" {
		st, ok := domain.ParseStatus(f.Status)
		if !ok {
			return nil, domain.InvalidArgument("invalid_status", "invalid status, must be one of: active, on-hold, completed")
		}
		q.Meta = append(q.Meta, content.MetaClause{Key: metaStatus, Value: string(st)})
	}

	if f.Client != "" {
		term, err := s.store.LookupTerm(ctx, ClientTaxonomy, f.Client)
		if errors.Is(err, content.ErrNotFound) {
			return nil, domain.InvalidArgument("invalid_client", "invalid client")
		}
		if err != nil {
			return nil, err
		}
		q.Terms = append(q.Terms, content.TermClause{Taxonomy: ClientTaxonomy, Slug: term.Slug})
	}

	if f.IsEmpty() {
		if cached, ok := s.cachedList(ctx); ok {
			return cached, nil
		}
	}

	posts, err := s.store.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Project, 0, len(posts))
	for i := range posts {
		p, err := s.expand(ctx, &posts[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}

	if f.IsEmpty() {
		s.storeList(ctx, out)
	}
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, id int64) (*domain.Project, error) {
	post, err := s.loadPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, post)
}

// Create stores a new published project authored by actor.
func (s *ProjectService) Create(ctx context.Context, actor int64, in domain.Input) (*domain.Project, error) {
	ok, err := s.access.CanCreate(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Forbidden("you are not allowed to create projects")
	}

	var title string
	if in.Title != nil {
		title = sanitizeText(*in.Title)
	}
	if title == "" {
		return nil, domain.InvalidArgument("missing_title", "missing title")
	}

	var description string
	if in.Description != nil {
		description = sanitizeHTML(*in.Description)
	}

	id, err := s.store.Insert(ctx, content.Draft{
		Post: content.Post{
			Type:     PostType,
			Status:   content.StatusPublish,
			Title:    title,
			Content:  description,
			AuthorID: actor,
		},
		Meta:  metaFromInput(in),
		Terms: termsFromInput(in),
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info("project created", zap.Int64("project_id", id), zap.Int64("user_id", actor))

	return s.Get(ctx, id)
}

// Update applies the supplied fields of in to project id. Fields left nil
// keep their stored values, and an unknown status is ignored.
func (s *ProjectService) Update(ctx context.Context, actor, id int64, in domain.Input) (*domain.Project, error) {
	if _, err := s.loadPost(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.access.CanEdit(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Forbidden("you are not allowed to edit this project")
	}

	patch := content.Patch{
		Meta:  metaFromInput(in),
		Terms: termsFromInput(in),
	}
	if in.Title != nil {
		title := sanitizeText(*in.Title)
		if title == "" {
			return nil, domain.InvalidArgument("missing_title", "missing title")
		}
		patch.Title = &title
	}
	if in.Description != nil {
		description := sanitizeHTML(*in.Description)
		patch.Content = &description
	}

	if err := s.store.Patch(ctx, id, patch); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, domain.NotFound("project not found")
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info("project updated", zap.Int64("project_id", id), zap.Int64("user_id", actor))

	return s.Get(ctx, id)
}

// Delete permanently removes project id.
func (s *ProjectService) Delete(ctx context.Context, actor, id int64) (*domain.Deleted, error) {
	if _, err := s.loadPost(ctx, id); err != nil {
		return nil, err
	}

	ok, err := s.access.CanDelete(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Forbidden("you are not allowed to delete this project")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, domain.NotFound("project not found")
		}
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info("project deleted", zap.Int64("project_id", id), zap.Int64("user_id", actor))

	return &domain.Deleted{Deleted: true}, nil
}

// ListClients returns every term of the client taxonomy.
func (s *ProjectService) ListClients(ctx context.Context) ([]domain.Client, error) {
	terms, err := s.store.ListTerms(ctx, ClientTaxonomy)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Client, 0, len(terms))
	for _, t := range terms {
		out = append(out, domain.Client{ID: t.ID, Name: t.Name, Slug: t.Slug})
	}
	return out, nil
}

func (s *ProjectService) loadPost(ctx context.Context, id int64) (*content.Post, error) {
	post, err := s.store.Get(ctx, id)
	if errors.Is(err, content.ErrNotFound) {
		return nil, domain.NotFound("project not found")
	}
	if err != nil {
		return nil, err
	}
	if post.Type != PostType {
		return nil, domain.NotFound("project not found")
	}
	return post, nil
}

func (s *ProjectService) expand(ctx context.Context, post *content.Post) (*domain.Project, error) {
	meta, err := s.store.Meta(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	clients, err := s.store.PostTerms(ctx, post.ID, ClientTaxonomy)
	if err != nil {
		return nil, err
	}

	status, _ := domain.ParseStatus(meta[metaStatus])

	p := &domain.Project{
		ID:          post.ID,
		Title:       post.Title,
		Description: post.Content,
		StartDate:   meta[metaStartDate],
		EndDate:     meta[metaEndDate],
		Status:      status,
	}
	// CoerceFloat never yields NaN or Inf, which JSON cannot encode.
	if v, ok := meta[metaBudget]; ok {
		p.Budget = domain.CoerceFloat(v)
	}
	if v, ok := meta[metaProjectManager]; ok {
		p.ProjectManager = domain.CoerceInt(v)
	}
	if len(clients) > 0 {
		p.Client = clients[0].Name
	}
	return p, nil
}

func (s *ProjectService) cachedList(ctx context.Context) ([]domain.Project, bool) {
	data, ok, err := s.cache.Get(ctx, ListCacheKey)
	if err != nil {
		s.log.Warn("projects cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	out := make([]domain.Project, 0)
	if err := json.Unmarshal(data, &out); err != nil {
		s.log.Warn("projects cache entry unreadable", zap.Error(err))
		return nil, false
	}
	return out, true
}

func (s *ProjectService) storeList(ctx context.Context, list []domain.Project) {
	data, err := json.Marshal(list)
	if err != nil {
		s.log.Warn("projects cache encode failed", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, ListCacheKey, data, s.ttl); err != nil {
		s.log.Warn("projects cache write failed", zap.Error(err))
	}
}

// invalidate never fails the caller: by the time it runs the write is
// already committed.
func (s *ProjectService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, ListCacheKey); err != nil {
		s.log.Error("projects cache invalidation failed", zap.Error(err))
	}
}

func metaFromInput(in domain.Input) map[string]string {
	meta := make(map[string]string, 5)
	if in.StartDate != nil {
		meta[metaStartDate] = sanitizeText(*in.StartDate)
	}
	if in.EndDate != nil {
		meta[metaEndDate] = sanitizeText(*in.EndDate)
	}
	if in.Status != nil {
		if st, ok := domain.ParseStatus(*in.Status); ok {
			meta[metaStatus] = string(st)
		}
	}
	if in.Budget != nil {
		meta[metaBudget] = strconv.FormatFloat(domain.CoerceFloat(*in.Budget), 'f', -1, 64)
	}
	if in.ProjectManager != nil {
		meta[metaProjectManager] = strconv.FormatInt(*in.ProjectManager, 10)
	}
	return meta
}

// termsFromInput replaces the client term when one was supplied; an empty
// client clears it.
func termsFromInput(in domain.Input) map[string][]string {
	if in.Client == nil {
		return nil
	}
	client := sanitizeText(*in.Client)
	if client == "" {
		return map[string][]string{ClientTaxonomy: nil}
	}
	return map[string][]string{ClientTaxonomy: {client}}
}
