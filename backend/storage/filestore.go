package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"memorymaze/backend/models"
	"memorymaze/backend/utils"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/goccy/go-json"
)

const (
	usersDir    = "users"
	usersFile   = "users/users.json"
	storiesDir  = "stories"
	progressDir = "progress"
)

// FileStore keeps every record as pretty-printed JSON on a billy filesystem:
//
//	users/users.json                 all users keyed by email
//	stories/<id>.json                one file per story
//	progress/<email>-<storyId>.json  one file per user and story
//
// Files are rewritten in place, not renamed into place, so a crash mid-write
// can leave a truncated file. Read-modify-write cycles are serialized per
// collection inside this process only; a second process writing the same
// directory can still lose updates.
type FileStore struct {
	fs  billy.Filesystem
	log *utils.Logger

	usersMu    sync.Mutex
	storiesMu  sync.RWMutex
	progressMu sync.Mutex
}

func NewFileStore(fs billy.Filesystem, log *utils.Logger) (*FileStore, error) {
	for _, dir := range []string{usersDir, storiesDir, progressDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return &FileStore{fs: fs, log: log.With("store", "file")}, nil
}

func (s *FileStore) Close() error { return nil }

// ---- users ----

func (s *FileStore) GetUser(_ context.Context, email string) (*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	u, ok := users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *FileStore) ListUsers(_ context.Context) ([]*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	return sortedUsers(users), nil
}

func (s *FileStore) UpdateUser(_ context.Context, email string, fn func(u *models.User) error) (*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	u, ok := users[email]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	if err := s.writeJSON(usersFile, users); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *FileStore) UpdateUsers(_ context.Context, fn UsersMutation) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return err
	}
	if err := fn(users); err != nil {
		return err
	}
	return s.writeJSON(usersFile, users)
}

func (s *FileStore) loadUsers() (map[string]*models.User, error) {
	users := map[string]*models.User{}
	found, err := s.readJSON(usersFile, &users)
	if err != nil {
		return nil, err
	}
	if !found || users == nil {
		return map[string]*models.User{}, nil
	}
	for email, u := range users {
		if u.Email == "" {
			u.Email = email
		}
	}
	return users, nil
}

// ---- stories ----

func (s *FileStore) GetStory(_ context.Context, id string) (*models.Story, error) {
	p, err := storyPath(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.storiesMu.RLock()
	defer s.storiesMu.RUnlock()

	var story models.Story
	found, err := s.readJSON(p, &story)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &story, nil
}

func (s *FileStore) ListStories(_ context.Context) ([]*models.Story, error) {
	s.storiesMu.RLock()
	defer s.storiesMu.RUnlock()

	names, err := s.jsonFiles(storiesDir)
	if err != nil {
		return nil, err
	}
	stories := make([]*models.Story, 0, len(names))
	for _, name := range names {
		var story models.Story
		if _, err := s.readJSON(path.Join(storiesDir, name), &story); err != nil {
			s.log.Warn("Skipping unreadable story file", "file", name, "error", err)
			continue
		}
		stories = append(stories, &story)
	}
	sort.Slice(stories, func(i, j int) bool { return stories[i].ID < stories[j].ID })
	return stories, nil
}

func (s *FileStore) StoryExists(_ context.Context, id string) (bool, error) {
	p, err := storyPath(id)
	if err != nil {
		return false, nil
	}

	s.storiesMu.RLock()
	defer s.storiesMu.RUnlock()
	return s.exists(p)
}

func (s *FileStore) SaveStory(_ context.Context, story *models.Story) error {
	p, err := storyPath(story.ID)
	if err != nil {
		return err
	}

	s.storiesMu.Lock()
	defer s.storiesMu.Unlock()
	return s.writeJSON(p, story)
}

func (s *FileStore) DeleteStory(_ context.Context, id string) error {
	p, err := storyPath(id)
	if err != nil {
		return ErrNotFound
	}

	s.storiesMu.Lock()
	defer s.storiesMu.Unlock()

	ok, err := s.exists(p)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return s.fs.Remove(p)
}

// ---- progress ----

func (s *FileStore) GetProgress(_ context.Context, email, storyID string) (*models.Progress, error) {
	p, err := progressPath(email, storyID)
	if err != nil {
		return nil, ErrNotFound
	}

	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	var rec models.Progress
	found, err := s.readJSON(p, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	rec.Email, rec.StoryID = email, storyID
	rec.Normalize()
	return &rec, nil
}

func (s *FileStore) UpdateProgress(_ context.Context, email, storyID string, fn func(p *models.Progress) error) (*models.Progress, error) {
	p, err := progressPath(email, storyID)
	if err != nil {
		return nil, err
	}

	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	rec := models.NewProgress(email, storyID, time.Now())
	if _, err := s.readJSON(p, rec); err != nil {
		return nil, err
	}
	rec.Email, rec.StoryID = email, storyID
	rec.Normalize()
	if err := fn(rec); err != nil {
		return nil, err
	}
	if err := s.writeJSON(p, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *FileStore) ListProgress(_ context.Context) ([]*models.Progress, error) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	recs, _, err := s.scanProgress(func(string) bool { return true })
	return recs, err
}

func (s *FileStore) DeleteUserProgress(_ context.Context, email string) error {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	return s.deleteProgress(
		func(name string) bool { return strings.HasPrefix(name, email+"-") },
		func(p *models.Progress) bool { return p.Email == email },
	)
}

func (s *FileStore) DeleteStoryProgress(_ context.Context, storyID string) error {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()

	return s.deleteProgress(
		func(name string) bool { return strings.HasSuffix(name, "-"+storyID+".json") },
		func(p *models.Progress) bool { return p.StoryID == storyID },
	)
}

// deleteProgress prefilters by file name and confirms on the record fields,
// since emails and story ids may both contain hyphens.
func (s *FileStore) deleteProgress(byName func(string) bool, byRecord func(*models.Progress) bool) error {
	recs, names, err := s.scanProgress(byName)
	if err != nil {
		return err
	}
	for i, rec := range recs {
		if !byRecord(rec) {
			continue
		}
		if err := s.fs.Remove(path.Join(progressDir, names[i])); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove progress %s: %w", names[i], err)
		}
	}
	return nil
}

func (s *FileStore) scanProgress(match func(string) bool) ([]*models.Progress, []string, error) {
	names, err := s.jsonFiles(progressDir)
	if err != nil {
		return nil, nil, err
	}
	var (
		recs  []*models.Progress
		files []string
	)
	for _, name := range names {
		if !match(name) {
			continue
		}
		var rec models.Progress
		if _, err := s.readJSON(path.Join(progressDir, name), &rec); err != nil {
			s.log.Warn("Skipping unreadable progress file", "file", name, "error", err)
			continue
		}
		if rec.Email == "" || rec.StoryID == "" {
			s.log.Warn("Skipping progress file without owner", "file", name)
			continue
		}
		rec.Normalize()
		recs = append(recs, &rec)
		files = append(files, name)
	}
	return recs, files, nil
}

// ---- file helpers ----

func (s *FileStore) readJSON(name string, v interface{}) (bool, error) {
	data, err := util.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

func (s *FileStore) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := util.WriteFile(s.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) exists(name string) (bool, error) {
	_, err := s.fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
}

func (s *FileStore) jsonFiles(dir string) ([]string, error) {
	infos, err := s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

func storyPath(id string) (string, error) {
	if !safeName(id) {
		return "", ErrInvalidKey
	}
	return path.Join(storiesDir, id+".json"), nil
}

func progressPath(email, storyID string) (string, error) {
	if !safeName(email) || !safeName(storyID) {
		return "", ErrInvalidKey
	}
	return path.Join(progressDir, email+"-"+storyID+".json"), nil
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.Contains(s, "..")
}

func sortedUsers(users map[string]*models.User) []*models.User {
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}
