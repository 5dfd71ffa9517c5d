package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"memorymaze/backend/models"
	"memorymaze/backend/utils"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) Store {
	t.Helper()
	s, err := NewFileStore(memfs.New(), utils.NopLogger())
	require.NoError(t, err)
	return s
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	s, err := OpenSQLite(dsn, utils.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	backends := map[string]func(*testing.T) Store{
		"file":   newFileStore,
		"sqlite": newSQLiteStore,
	}
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func addUser(t *testing.T, s Store, email, role string) {
	t.Helper()
	err := s.UpdateUsers(context.Background(), func(users map[string]*models.User) error {
		users[email] = &models.User{Email: email, Role: role, Password: "hash"}
		return nil
	})
	require.NoError(t, err)
}

func TestUsers(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetUser(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		addUser(t, s, "b@example.com", models.RoleUser)
		addUser(t, s, "a@example.com", models.RoleAdmin)

		users, err := s.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "a@example.com", users[0].Email)

		u, err := s.UpdateUser(ctx, "b@example.com", func(u *models.User) error {
			u.SavedBooks = append(u.SavedBooks, "pride-and-prejudice")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"pride-and-prejudice"}, u.SavedBooks)

		got, err := s.GetUser(ctx, "b@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"pride-and-prejudice"}, got.SavedBooks)

		_, err = s.UpdateUser(ctx, "missing@example.com", func(*models.User) error { return nil })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateUsersRollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		addUser(t, s, "a@example.com", models.RoleAdmin)

		boom := errors.New("boom")
		err := s.UpdateUsers(ctx, func(users map[string]*models.User) error {
			delete(users, "a@example.com")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.GetUser(ctx, "a@example.com")
		assert.NoError(t, err)
	})
}

func TestUpdateUsersDeletes(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		addUser(t, s, "a@example.com", models.RoleAdmin)
		addUser(t, s, "b@example.com", models.RoleUser)

		err := s.UpdateUsers(ctx, func(users map[string]*models.User) error {
			delete(users, "b@example.com")
			return nil
		})
		require.NoError(t, err)

		_, err = s.GetUser(ctx, "b@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStories(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		ok, err := s.StoryExists(ctx, "emma")
		require.NoError(t, err)
		assert.False(t, ok)

		story := &models.Story{
			ID:    "emma",
			Title: "Emma",
			Chapters: []models.Chapter{
				{Chapter: 1, Title: "One", Content: "...", Questions: []models.Question{{ID: "q1", Question: "Who?", Answer: "Emma"}}},
			},
		}
		require.NoError(t, s.SaveStory(ctx, story))
		require.NoError(t, s.SaveStory(ctx, &models.Story{ID: "beowulf", Title: "Beowulf"}))

		got, err := s.GetStory(ctx, "emma")
		require.NoError(t, err)
		assert.Equal(t, "Emma", got.Title)
		assert.Len(t, got.Chapters, 1)

		list, err := s.ListStories(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "beowulf", list[0].ID)

		ok, err = s.StoryExists(ctx, "emma")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.DeleteStory(ctx, "emma"))
		assert.ErrorIs(t, s.DeleteStory(ctx, "emma"), ErrNotFound)
		_, err = s.GetStory(ctx, "emma")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestProgressLazyCreationAndCascade(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetProgress(ctx, "a@example.com", "emma")
		assert.ErrorIs(t, err, ErrNotFound)

		p, err := s.UpdateProgress(ctx, "a@example.com", "emma", func(p *models.Progress) error {
			p.Attempts[models.ChapterKey(1)]++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{1}, p.UnlockedChapters)
		assert.Equal(t, 1, p.Attempts["chapter1"])

		_, err = s.UpdateProgress(ctx, "a@example.com", "my-story", func(p *models.Progress) error { return nil })
		require.NoError(t, err)
		_, err = s.UpdateProgress(ctx, "a-b@example.com", "emma", func(p *models.Progress) error { return nil })
		require.NoError(t, err)

		all, err := s.ListProgress(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		require.NoError(t, s.DeleteStoryProgress(ctx, "emma"))
		all, err = s.ListProgress(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "my-story", all[0].StoryID)

		require.NoError(t, s.DeleteUserProgress(ctx, "a@example.com"))
		all, err = s.ListProgress(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestConcurrentProgressUpdatesAreSerialized(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const n = 20

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpdateProgress(ctx, "a@example.com", "emma", func(p *models.Progress) error {
					p.Attempts["chapter1"]++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		p, err := s.GetProgress(ctx, "a@example.com", "emma")
		require.NoError(t, err)
		assert.Equal(t, n, p.Attempts["chapter1"])
	})
}

func TestFileStoreLayout(t *testing.T) {
	fs := memfs.New()
	s, err := NewFileStore(fs, utils.NopLogger())
	require.NoError(t, err)
	ctx := context.Background()

	addUser(t, s, "reader@example.com", models.RoleUser)
	require.NoError(t, s.SaveStory(ctx, &models.Story{ID: "emma", Title: "Emma"}))
	_, err = s.UpdateProgress(ctx, "reader@example.com", "emma", func(p *models.Progress) error {
		p.LastAccess = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		return nil
	})
	require.NoError(t, err)

	for _, name := range []string{"users/users.json", "stories/emma.json", "progress/reader@example.com-emma.json"} {
		_, err := fs.Stat(name)
		assert.NoError(t, err, name)
	}

	data, err := util.ReadFile(fs, "progress/reader@example.com-emma.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unlockedChapters": [`)
	assert.Contains(t, string(data), `"storyId": "emma"`)
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	assert.Error(t, s.SaveStory(ctx, &models.Story{ID: "../escape"}))
	_, err := s.GetStory(ctx, "../users/users")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreReadsLegacyProgress(t *testing.T) {
	fs := memfs.New()
	s, err := NewFileStore(fs, utils.NopLogger())
	require.NoError(t, err)

	legacy := `{"email":"r@example.com","storyId":"emma","currentChapter":2,"unlockedChapters":[2],"attempts":{},"scores":{}}`
	require.NoError(t, util.WriteFile(fs, "progress/r@example.com-emma.json", []byte(legacy), 0o644))

	p, err := s.GetProgress(context.Background(), "r@example.com", "emma")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, p.UnlockedChapters)
}
