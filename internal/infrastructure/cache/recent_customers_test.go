package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/crm/backend/internal/domain/customer"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, c *customer.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockRepository) FindByID(ctx context.Context, id int64) (*customer.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *mockRepository) FindAll(ctx context.Context) ([]customer.Customer, error) {
	args := m.Called(ctx)
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *mockRepository) FindRecent(ctx context.Context, limit int) ([]customer.Customer, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *mockRepository) Search(ctx context.Context, query string) ([]customer.Customer, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]customer.Customer), args.Error(1)
}

func (m *mockRepository) Update(ctx context.Context, id int64, patch customer.Patch) (*customer.Customer, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func setupRecentCache(t *testing.T) (*RecentCustomersCache, *mockRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := new(mockRepository)
	return NewRecentCustomersCache(repo, client, WithTTL(time.Minute)), repo, mr
}

func sampleWindow() []customer.Customer {
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []customer.Customer{
		{ID: 2, Name: "Bob", Email: "bob@testmail.com", Phone: "2", Address: "b", CreatedAt: created.Add(time.Second)},
		{ID: 1, Name: "Alice", Email: "alice@example.com", Phone: "1", Address: "a", CreatedAt: created},
	}
}

func TestRecentCustomersCache_FindRecent(t *testing.T) {
	ctx := context.Background()

	t.Run("second read is served from redis", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		repo.On("FindRecent", ctx, 10).Return(sampleWindow(), nil).Once()

		first, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		second, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)

		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
			assert.Equal(t, first[i].Name, second[i].Name)
			assert.True(t, first[i].CreatedAt.Equal(second[i].CreatedAt))
		}
		assert.True(t, mr.Exists(recentKey(0, 10)))
		assert.Equal(t, time.Minute, mr.TTL(recentKey(0, 10)))
		repo.AssertExpectations(t)
	})

	t.Run("non-positive limit uses default window", func(t *testing.T) {
		c, repo, _ := setupRecentCache(t)
		repo.On("FindRecent", ctx, customer.DefaultRecentLimit).Return([]customer.Customer{}, nil).Once()

		list, err := c.FindRecent(ctx, -1)
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.NotNil(t, list)
		repo.AssertExpectations(t)
	})

	t.Run("entry expires with ttl", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		repo.On("FindRecent", ctx, 10).Return(sampleWindow(), nil).Twice()

		_, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)
		_, err = c.FindRecent(ctx, 10)
		require.NoError(t, err)

		repo.AssertExpectations(t)
	})

	t.Run("corrupt entry is dropped and reloaded", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		require.NoError(t, mr.Set(recentKey(0, 10), "{not json"))
		repo.On("FindRecent", ctx, 10).Return(sampleWindow(), nil).Once()

		list, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		repo.AssertExpectations(t)
	})

	t.Run("redis outage falls back to repository", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		mr.Close()
		repo.On("FindRecent", ctx, 10).Return(sampleWindow(), nil).Twice()

		for i := 0; i < 2; i++ {
			list, err := c.FindRecent(ctx, 10)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		}
		repo.AssertExpectations(t)
	})

	t.Run("repository errors pass through uncached", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		storageErr := shared.NewStorageError("list recent customers", errors.New("down"))
		repo.On("FindRecent", ctx, 10).Return(nil, storageErr).Once()

		_, err := c.FindRecent(ctx, 10)
		assert.ErrorIs(t, err, storageErr)
		assert.False(t, mr.Exists(recentKey(0, 10)))
	})
}

func TestRecentCustomersCache_Invalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("create makes the new record visible", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		before := sampleWindow()
		newest := customer.Customer{ID: 3, Name: "Carol", Email: "carol@example.com", Phone: "3", Address: "c"}
		after := append([]customer.Customer{newest}, before...)

		repo.On("FindRecent", ctx, 10).Return(before, nil).Once()
		repo.On("Create", ctx, mock.AnythingOfType("*customer.Customer")).Return(nil).Once()
		repo.On("FindRecent", ctx, 10).Return(after, nil).Once()

		_, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		require.NoError(t, c.Create(ctx, &newest))

		gen, err := mr.Get(recentGenKey)
		require.NoError(t, err)
		assert.Equal(t, "1", gen)

		list, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "Carol", list[0].Name)
		repo.AssertExpectations(t)
	})

	t.Run("update bumps generation", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		patch := customer.Patch{Name: mo.Some("Alicia")}
		repo.On("Update", ctx, int64(1), patch).Return(&customer.Customer{ID: 1, Name: "Alicia"}, nil).Once()

		updated, err := c.Update(ctx, 1, patch)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", updated.Name)

		gen, err := mr.Get(recentGenKey)
		require.NoError(t, err)
		assert.Equal(t, "1", gen)
	})

	t.Run("failed writes leave generation alone", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		patch := customer.Patch{Name: mo.Some("X")}
		repo.On("Update", ctx, int64(999999), patch).Return(nil, shared.NewNotFoundError("customer", int64(999999))).Once()

		_, err := c.Update(ctx, 999999, patch)
		assert.True(t, shared.IsNotFoundError(err))
		assert.False(t, mr.Exists(recentGenKey))
	})

	t.Run("write acknowledged during a redis error is visible after recovery", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		before := sampleWindow()
		newest := customer.Customer{ID: 3, Name: "Carol", Email: "carol@example.com", Phone: "3", Address: "c"}
		after := append([]customer.Customer{newest}, before...)

		repo.On("FindRecent", ctx, 10).Return(before, nil).Once()
		repo.On("Create", ctx, mock.AnythingOfType("*customer.Customer")).Return(nil).Once()
		repo.On("FindRecent", ctx, 10).Return(after, nil).Once()

		_, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		require.True(t, mr.Exists(recentKey(0, 10)))

		mr.SetError("LOADING redis is loading the dataset in memory")
		require.NoError(t, c.Create(ctx, &newest))
		mr.SetError("")

		list, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Carol", list[0].Name)

		gen, err := mr.Get(recentGenKey)
		require.NoError(t, err)
		assert.Equal(t, "1", gen)
		repo.AssertExpectations(t)
	})

	t.Run("reads bypass the cache until the generation can be bumped", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		newest := customer.Customer{ID: 3, Name: "Carol", Email: "carol@example.com", Phone: "3", Address: "c"}
		after := append([]customer.Customer{newest}, sampleWindow()...)

		repo.On("Create", ctx, mock.AnythingOfType("*customer.Customer")).Return(nil).Once()
		repo.On("FindRecent", ctx, 10).Return(after, nil).Twice()

		mr.SetError("LOADING redis is loading the dataset in memory")
		require.NoError(t, c.Create(ctx, &newest))

		for i := 0; i < 2; i++ {
			list, err := c.FindRecent(ctx, 10)
			require.NoError(t, err)
			assert.Equal(t, "Carol", list[0].Name)
		}
		mr.SetError("")
		assert.False(t, mr.Exists(recentKey(0, 10)))
		repo.AssertExpectations(t)
	})

	t.Run("failed bump purges cached windows", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		require.NoError(t, mr.Set(recentGenKey, "not-a-number"))
		require.NoError(t, mr.Set(recentKey(0, 10), "[]"))
		require.NoError(t, mr.Set(recentKey(4, 5), "[]"))
		repo.On("Create", ctx, mock.AnythingOfType("*customer.Customer")).Return(nil).Once()
		repo.On("FindRecent", ctx, 10).Return(sampleWindow(), nil).Once()

		require.NoError(t, c.Create(ctx, &customer.Customer{Name: "Carol"}))

		assert.False(t, mr.Exists(recentKey(0, 10)))
		assert.False(t, mr.Exists(recentKey(4, 5)))
		assert.True(t, mr.Exists(recentGenKey))

		list, err := c.FindRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		repo.AssertExpectations(t)
	})

	t.Run("writes succeed when redis is down", func(t *testing.T) {
		c, repo, mr := setupRecentCache(t)
		mr.Close()
		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		assert.NoError(t, c.Create(ctx, &customer.Customer{Name: "A"}))
	})
}

func TestRecentCustomersCache_Delegates(t *testing.T) {
	ctx := context.Background()
	c, repo, _ := setupRecentCache(t)
	repo.On("FindByID", ctx, int64(1)).Return(&customer.Customer{ID: 1}, nil).Once()
	repo.On("Search", ctx, "bob").Return([]customer.Customer{{ID: 2}}, nil).Once()

	found, err := c.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.ID)

	list, err := c.Search(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	repo.AssertExpectations(t)
}
