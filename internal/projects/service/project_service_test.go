package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/project-tracker/internal/cache"
	"github.com/GoSim-25-26J-441/project-tracker/internal/content"
	"github.com/GoSim-25-26J-441/project-tracker/internal/projects/domain"
)

// countingStore records how often the wrapped store is read and written.
type countingStore struct {
	content.Store
	finds  atomic.Int64
	writes atomic.Int64
}

func (c *countingStore) Find(ctx context.Context, q content.Query) ([]content.Post, error) {
	c.finds.Add(1)
	return c.Store.Find(ctx, q)
}

func (c *countingStore) Insert(ctx context.Context, d content.Draft) (int64, error) {
	c.writes.Add(1)
	return c.Store.Insert(ctx, d)
}

func (c *countingStore) Patch(ctx context.Context, id int64, p content.Patch) error {
	c.writes.Add(1)
	return c.Store.Patch(ctx, id, p)
}

func (c *countingStore) Delete(ctx context.Context, id int64) error {
	c.writes.Add(1)
	return c.Store.Delete(ctx, id)
}

// countingCache counts invalidations on top of a real Redis-backed store.
type countingCache struct {
	cache.Store
	deletes atomic.Int64
}

func (c *countingCache) Delete(ctx context.Context, key string) error {
	c.deletes.Add(1)
	return c.Store.Delete(ctx, key)
}

type fakeAccess struct {
	create, edit, del bool
}

func (f fakeAccess) CanCreate(context.Context, int64) (bool, error)        { return f.create, nil }
func (f fakeAccess) CanEdit(context.Context, int64, int64) (bool, error)   { return f.edit, nil }
func (f fakeAccess) CanDelete(context.Context, int64, int64) (bool, error) { return f.del, nil }

var allowAll = fakeAccess{create: true, edit: true, del: true}

type fixture struct {
	svc   *ProjectService
	mem   *content.MemoryStore
	store *countingStore
	cache *countingCache
	mr    *miniredis.Miniredis
}

func setup(t *testing.T, access AccessControl) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	mem := content.NewMemoryStore()
	store := &countingStore{Store: mem}
	cc := &countingCache{Store: cache.NewRedisStore(client, "")}

	svc := NewProjectService(store, cc, access)
	t.Cleanup(svc.RegisterHooks())

	return &fixture{svc: svc, mem: mem, store: store, cache: cc, mr: mr}
}

const actor = int64(1)

func (f *fixture) create(t *testing.T, in domain.Input) *domain.Project {
	t.Helper()
	p, err := f.svc.Create(context.Background(), actor, in)
	require.NoError(t, err)
	return p
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults for omitted fields", func(t *testing.T) {
		f := setup(t, allowAll)

		p := f.create(t, domain.Input{Title: domain.String("Website Revamp")})

		assert.NotZero(t, p.ID)
		assert.Equal(t, "Website Revamp", p.Title)
		assert.Equal(t, domain.StatusNone, p.Status)
		assert.Equal(t, 0.0, p.Budget)
		assert.Equal(t, int64(0), p.ProjectManager)
		assert.Equal(t, "", p.Client)
		assert.Equal(t, "", p.Description)
	})

	t.Run("normalizes every field", func(t *testing.T) {
		f := setup(t, allowAll)

		p := f.create(t, domain.ParseInput(map[string]any{
			"title":           "  <b>Mobile</b>   App ",
			"description":     `<p>Native <em>client</em></p><script>alert(1)</script>`,
			"start_date":      "2024-01-15",
			"end_date":        "2024-06-30",
			"status":          "on-hold",
			"budget":          "25000.75",
			"project_manager": "4",
			"client":          "Acme Corp",
		}))

		assert.Equal(t, "Mobile App", p.Title)
		assert.Equal(t, "<p>Native <em>client</em></p>", p.Description)
		assert.Equal(t, "2024-01-15", p.StartDate)
		assert.Equal(t, "2024-06-30", p.EndDate)
		assert.Equal(t, domain.StatusOnHold, p.Status)
		assert.Equal(t, 25000.75, p.Budget)
		assert.Equal(t, int64(4), p.ProjectManager)
		assert.Equal(t, "Acme Corp", p.Client)

		post, err := f.mem.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, actor, post.AuthorID)
		assert.Equal(t, content.StatusPublish, post.Status)
	})

	t.Run("invalid status is dropped, not rejected", func(t *testing.T) {
		f := setup(t, allowAll)

		p := f.create(t, domain.Input{Title: domain.String("X"), Status: domain.String("bogus")})
		assert.Equal(t, domain.StatusNone, p.Status)
	})

	t.Run("negative numbers are stored as-is", func(t *testing.T) {
		f := setup(t, allowAll)

		p := f.create(t, domain.Input{
			Title:          domain.String("X"),
			Budget:         domain.Float(-10.5),
			ProjectManager: domain.Int(-2),
		})
		assert.Equal(t, -10.5, p.Budget)
		assert.Equal(t, int64(-2), p.ProjectManager)
	})

	t.Run("missing or blank title fails without writing", func(t *testing.T) {
		f := setup(t, allowAll)

		for _, in := range []domain.Input{
			{},
			{Title: domain.String("")},
			{Title: domain.String("   ")},
			{Title: domain.String("<i></i>")},
		} {
			_, err := f.svc.Create(ctx, actor, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		}
		assert.Equal(t, int64(0), f.store.writes.Load())
		assert.Equal(t, int64(0), f.cache.deletes.Load())
	})

	t.Run("one write and one invalidation per create", func(t *testing.T) {
		f := setup(t, allowAll)

		f.create(t, domain.Input{Title: domain.String("A"), Client: domain.String("Acme"), Status: domain.String("active")})
		assert.Equal(t, int64(1), f.store.writes.Load())
		assert.Equal(t, int64(1), f.cache.deletes.Load())
	})

	t.Run("forbidden without create permission", func(t *testing.T) {
		f := setup(t, fakeAccess{})

		_, err := f.svc.Create(ctx, actor, domain.Input{Title: domain.String("A")})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Equal(t, int64(0), f.store.writes.Load())
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := setup(t, allowAll)

	p := f.create(t, domain.Input{Title: domain.String("A")})

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = f.svc.Get(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pageID, err := f.mem.Insert(ctx, content.Draft{Post: content.Post{Type: "page", Title: "About"}})
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, pageID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "records of another type are not projects")
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update keeps omitted fields", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{
			Title:       domain.String("Alpha"),
			Description: domain.String("<p>Scope</p>"),
			Status:      domain.String("active"),
			Budget:      domain.Float(100),
			Client:      domain.String("Acme"),
		})

		got, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Budget: domain.Float(250)})
		require.NoError(t, err)

		assert.Equal(t, "Alpha", got.Title)
		assert.Equal(t, "<p>Scope</p>", got.Description)
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.Equal(t, 250.0, got.Budget)
		assert.Equal(t, "Acme", got.Client)
	})

	t.Run("every valid status is applied exactly", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{Title: domain.String("A")})

		for _, st := range domain.ValidStatuses() {
			got, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Status: domain.String(string(st))})
			require.NoError(t, err)
			assert.Equal(t, st, got.Status)
		}
	})

	t.Run("invalid status leaves the prior value", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{Title: domain.String("A"), Status: domain.String("completed")})

		for _, bad := range []string{"bogus", "", "Active", " active"} {
			got, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Status: domain.String(bad)})
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCompleted, got.Status, bad)
		}
	})

	t.Run("client is replaced, never appended, and can be cleared", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{Title: domain.String("A"), Client: domain.String("Acme")})

		got, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Client: domain.String("Globex")})
		require.NoError(t, err)
		assert.Equal(t, "Globex", got.Client)

		terms, err := f.mem.PostTerms(ctx, p.ID, ClientTaxonomy)
		require.NoError(t, err)
		assert.Len(t, terms, 1)

		got, err = f.svc.Update(ctx, actor, p.ID, domain.Input{Client: domain.String("")})
		require.NoError(t, err)
		assert.Equal(t, "", got.Client)
	})

	t.Run("blank title is rejected", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{Title: domain.String("A")})

		_, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Title: domain.String("  ")})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		got, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Title)
	})

	t.Run("not found before forbidden", func(t *testing.T) {
		f := setup(t, fakeAccess{create: true})

		_, err := f.svc.Update(ctx, actor, 9999, domain.Input{})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		p := f.create(t, domain.Input{Title: domain.String("A")})
		_, err = f.svc.Update(ctx, actor, p.ID, domain.Input{Title: domain.String("B")})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.NotErrorIs(t, err, domain.ErrNotFound)

		got, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", got.Title)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes permanently", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{Title: domain.String("A")})

		res, err := f.svc.Delete(ctx, actor, p.ID)
		require.NoError(t, err)
		assert.Equal(t, &domain.Deleted{Deleted: true}, res)

		_, err = f.svc.Get(ctx, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = f.svc.Delete(ctx, actor, p.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("forbidden keeps the project", func(t *testing.T) {
		f := setup(t, fakeAccess{create: true, edit: true})
		p := f.create(t, domain.Input{Title: domain.String("A")})

		_, err := f.svc.Delete(ctx, actor, p.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		_, err = f.svc.Get(ctx, p.ID)
		assert.NoError(t, err)
	})
}

func TestList_Cache(t *testing.T) {
	ctx := context.Background()

	t.Run("second unfiltered list is served from cache", func(t *testing.T) {
		f := setup(t, allowAll)
		f.create(t, domain.Input{Title: domain.String("A"), Status: domain.String("active")})
		f.create(t, domain.Input{Title: domain.String("B"), Client: domain.String("Acme")})

		first, err := f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, int64(1), f.store.finds.Load())

		second, err := f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), f.store.finds.Load(), "cache hit must not query the store")

		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		assert.Equal(t, string(a), string(b))
	})

	t.Run("empty result is cached too", func(t *testing.T) {
		f := setup(t, allowAll)

		first, err := f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.NotNil(t, first)
		assert.Empty(t, first)

		second, err := f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.NotNil(t, second)
		assert.Empty(t, second)
		assert.Equal(t, int64(1), f.store.finds.Load())

		raw, err := f.mr.Get(ListCacheKey)
		require.NoError(t, err)
		assert.Equal(t, "[]", raw)
	})

	t.Run("entry expires after the ttl", func(t *testing.T) {
		f := setup(t, allowAll)

		_, err := f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, DefaultCacheTTL, f.mr.TTL(ListCacheKey))

		f.mr.FastForward(DefaultCacheTTL + time.Second)

		_, err = f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), f.store.finds.Load())
	})

	t.Run("every write invalidates", func(t *testing.T) {
		f := setup(t, allowAll)
		list := func() []domain.Project {
			out, err := f.svc.List(ctx, domain.Filter{})
			require.NoError(t, err)
			return out
		}

		list()
		p := f.create(t, domain.Input{Title: domain.String("A")})
		assert.Len(t, list(), 1)
		assert.Equal(t, int64(2), f.store.finds.Load())

		_, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Title: domain.String("A2")})
		require.NoError(t, err)
		got := list()
		assert.Equal(t, int64(3), f.store.finds.Load())
		assert.Equal(t, "A2", got[0].Title)

		_, err = f.svc.Delete(ctx, actor, p.ID)
		require.NoError(t, err)
		assert.Empty(t, list())
		assert.Equal(t, int64(4), f.store.finds.Load())
	})

	t.Run("deletion outside the service invalidates through the hook", func(t *testing.T) {
		f := setup(t, allowAll)
		p := f.create(t, domain.Input{Title: domain.String("A")})
		assert.Len(t, mustList(t, f.svc), 1)

		require.NoError(t, f.mem.Delete(ctx, p.ID))
		assert.False(t, f.mr.Exists(ListCacheKey))
		assert.Empty(t, mustList(t, f.svc))
	})

	t.Run("deleting another record type keeps the cache", func(t *testing.T) {
		f := setup(t, allowAll)
		pageID, err := f.mem.Insert(ctx, content.Draft{Post: content.Post{Type: "page", Title: "About"}})
		require.NoError(t, err)
		mustList(t, f.svc)

		require.NoError(t, f.mem.Delete(ctx, pageID))
		assert.True(t, f.mr.Exists(ListCacheKey))
	})

	t.Run("cache outage falls back to the store", func(t *testing.T) {
		f := setup(t, allowAll)
		f.create(t, domain.Input{Title: domain.String("A")})
		f.mr.Close()

		got, err := f.svc.List(ctx, domain.Filter{})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	f := setup(t, allowAll)

	a := f.create(t, domain.Input{Title: domain.String("A"), Status: domain.String("active"), Client: domain.String("Acme Corp")})
	b := f.create(t, domain.Input{Title: domain.String("B"), Status: domain.String("completed"), Client: domain.String("Acme Corp")})
	c := f.create(t, domain.Input{Title: domain.String("C"), Status: domain.String("active"), Client: domain.String("Globex")})

	ids := func(ps []domain.Project) []int64 {
		out := make([]int64, 0, len(ps))
		for _, p := range ps {
			out = append(out, p.ID)
		}
		return out
	}

	t.Run("by status", func(t *testing.T) {
		got, err := f.svc.List(ctx, domain.Filter{Status: "active"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a.ID, c.ID}, ids(got))
	})

	t.Run("by client slug or name", func(t *testing.T) {
		got, err := f.svc.List(ctx, domain.Filter{Client: "acme-corp"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids(got))

		got, err = f.svc.List(ctx, domain.Filter{Client: "Acme Corp"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{a.ID, b.ID}, ids(got))
	})

	t.Run("by both", func(t *testing.T) {
		got, err := f.svc.List(ctx, domain.Filter{Status: "active", Client: "globex"})
		require.NoError(t, err)
		assert.Equal(t, []int64{c.ID}, ids(got))
	})

	t.Run("filtered lists never touch the cache", func(t *testing.T) {
		f.mr.FlushAll()
		before := f.store.finds.Load()

		_, err := f.svc.List(ctx, domain.Filter{Status: "active"})
		require.NoError(t, err)
		_, err = f.svc.List(ctx, domain.Filter{Status: "active"})
		require.NoError(t, err)

		assert.Equal(t, before+2, f.store.finds.Load())
		assert.False(t, f.mr.Exists(ListCacheKey))
	})

	t.Run("invalid status fails regardless of cache state", func(t *testing.T) {
		mustList(t, f.svc)
		require.True(t, f.mr.Exists(ListCacheKey))

		for _, bad := range []string{"bogus", "ACTIVE", "done"} {
			_, err := f.svc.List(ctx, domain.Filter{Status: bad})
			assert.ErrorIs(t, err, domain.ErrInvalidArgument, bad)
		}
	})

	t.Run("unknown client fails", func(t *testing.T) {
		_, err := f.svc.List(ctx, domain.Filter{Client: "initech"})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		var de *domain.Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "invalid_client", de.Code)
	})

	t.Run("blank filter values count as absent", func(t *testing.T) {
		before := f.store.finds.Load()
		_, err := f.svc.List(ctx, domain.Filter{Status: "  ", Client: ""})
		require.NoError(t, err)
		assert.Equal(t, before, f.store.finds.Load(), "served from cache")
	})
}

func TestLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t, allowAll)

	p := f.create(t, domain.Input{Title: domain.String("Website Revamp")})
	assert.Equal(t, domain.StatusNone, p.Status)
	assert.Equal(t, 0.0, p.Budget)
	assert.Equal(t, "", p.Client)

	got, err := f.svc.Update(ctx, actor, p.ID, domain.Input{Status: domain.String("bogus")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNone, got.Status)

	got, err = f.svc.Update(ctx, actor, p.ID, domain.Input{Status: domain.String("active")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	_, err = f.svc.Delete(ctx, actor, p.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_NonFiniteStoredBudget(t *testing.T) {
	ctx := context.Background()
	f := setup(t, allowAll)

	_, err := f.mem.Insert(ctx, content.Draft{
		Post: content.Post{Type: PostType, Status: content.StatusPublish, Title: "Legacy"},
		Meta: map[string]string{metaBudget: "NaN", metaProjectManager: "1e30"},
	})
	require.NoError(t, err)

	got := mustList(t, f.svc)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Budget)

	_, err = json.Marshal(got)
	require.NoError(t, err)
	assert.True(t, f.mr.Exists(ListCacheKey), "list must be cacheable")

	mustList(t, f.svc)
	assert.Equal(t, int64(1), f.store.finds.Load())
}

func TestCreate_NonFiniteBudget(t *testing.T) {
	f := setup(t, allowAll)

	for _, raw := range []string{"NaN", "Inf", "Infinity", "1e400"} {
		p := f.create(t, domain.ParseInput(map[string]any{"title": "Beta", "budget": raw}))
		assert.Equal(t, 0.0, p.Budget, raw)
	}
	assert.Len(t, mustList(t, f.svc), 4)

	p := f.create(t, domain.Input{Title: domain.String("Gamma"), Budget: domain.Float(math.Inf(1))})
	assert.Equal(t, 0.0, p.Budget)
}

func TestListClients(t *testing.T) {
	f := setup(t, allowAll)
	f.create(t, domain.Input{Title: domain.String("A"), Client: domain.String("Globex")})
	f.create(t, domain.Input{Title: domain.String("B"), Client: domain.String("Acme Corp")})

	got, err := f.svc.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Corp", got[0].Name)
	assert.Equal(t, "acme-corp", got[0].Slug)
	assert.Equal(t, "Globex", got[1].Name)
}

func mustList(t *testing.T, svc *ProjectService) []domain.Project {
	t.Helper()
	out, err := svc.List(context.Background(), domain.Filter{})
	require.NoError(t, err)
	return out
}
