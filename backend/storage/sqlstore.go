package storage

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"memorymaze/backend/models"
	"memorymaze/backend/utils"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// userRecord, storyRecord and progressRecord store each document as a JSON
// column next to the columns it is looked up by.
type userRecord struct {
	Email     string `gorm:"primaryKey;size:320"`
	Role      string `gorm:"size:16;index"`
	Data      datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type storyRecord struct {
	ID        string `gorm:"primaryKey;size:128"`
	Data      datatypes.JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (storyRecord) TableName() string { return "stories" }

type progressRecord struct {
	Email     string `gorm:"primaryKey;size:320"`
	StoryID   string `gorm:"primaryKey;size:128;index"`
	Data      datatypes.JSON
	UpdatedAt time.Time
}

func (progressRecord) TableName() string { return "progress" }

// SQLStore implements Store on GORM. Multi-row updates run in a transaction;
// writes are additionally serialized in-process, since SQLite has no
// SELECT ... FOR UPDATE.
type SQLStore struct {
	db  *gorm.DB
	log *utils.Logger
	mu  sync.Mutex
}

func OpenSQLite(path string, log *utils.Logger) (*SQLStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return newSQLStore(db, log)
}

func OpenPostgres(dsn string, log *utils.Logger) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return newSQLStore(db, log)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

func newSQLStore(db *gorm.DB, log *utils.Logger) (*SQLStore, error) {
	if err := db.AutoMigrate(&userRecord{}, &storyRecord{}, &progressRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &SQLStore{db: db, log: log.With("store", "sql")}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---- users ----

func (s *SQLStore) GetUser(ctx context.Context, email string) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).First(&rec, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return decodeUser(rec)
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	var recs []userRecord
	if err := s.db.WithContext(ctx).Order("email").Find(&recs).Error; err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(recs))
	for _, rec := range recs {
		u, err := decodeUser(rec)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, email string, fn func(u *models.User) error) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec userRecord
		if err := tx.First(&rec, "email = ?", email).Error; err != nil {
			return notFound(err)
		}
		u, err := decodeUser(rec)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		out = u
		return saveUser(tx, u)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) UpdateUsers(ctx context.Context, fn UsersMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recs []userRecord
		if err := tx.Find(&recs).Error; err != nil {
			return err
		}
		users := make(map[string]*models.User, len(recs))
		before := make(map[string]string, len(recs))
		for _, rec := range recs {
			u, err := decodeUser(rec)
			if err != nil {
				return err
			}
			users[rec.Email] = u
			before[rec.Email] = string(rec.Data)
		}

		if err := fn(users); err != nil {
			return err
		}

		for email := range before {
			if _, ok := users[email]; !ok {
				if err := tx.Delete(&userRecord{}, "email = ?", email).Error; err != nil {
					return err
				}
			}
		}
		for email, u := range users {
			u.Email = email
			data, err := json.Marshal(u)
			if err != nil {
				return err
			}
			if prev, ok := before[email]; ok && prev == string(data) {
				continue
			}
			if err := saveUser(tx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func saveUser(tx *gorm.DB, u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	rec := userRecord{Email: u.Email, Role: u.Role, Data: datatypes.JSON(data)}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "data", "updated_at"}),
	}).Create(&rec).Error
}

func decodeUser(rec userRecord) (*models.User, error) {
	var u models.User
	if err := json.Unmarshal(rec.Data, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", rec.Email, err)
	}
	u.Email = rec.Email
	return &u, nil
}

// ---- stories ----

func (s *SQLStore) GetStory(ctx context.Context, id string) (*models.Story, error) {
	var rec storyRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return decodeStory(rec)
}

func (s *SQLStore) ListStories(ctx context.Context) ([]*models.Story, error) {
	var recs []storyRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	stories := make([]*models.Story, 0, len(recs))
	for _, rec := range recs {
		story, err := decodeStory(rec)
		if err != nil {
			s.log.Warn("Skipping undecodable story", "id", rec.ID, "error", err)
			continue
		}
		stories = append(stories, story)
	}
	return stories, nil
}

func (s *SQLStore) StoryExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&storyRecord{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) SaveStory(ctx context.Context, story *models.Story) error {
	data, err := json.Marshal(story)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := storyRecord{ID: story.ID, Data: datatypes.JSON(data)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
}

func (s *SQLStore) DeleteStory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.WithContext(ctx).Delete(&storyRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeStory(rec storyRecord) (*models.Story, error) {
	var story models.Story
	if err := json.Unmarshal(rec.Data, &story); err != nil {
		return nil, fmt.Errorf("decode story %s: %w", rec.ID, err)
	}
	story.ID = rec.ID
	return &story, nil
}

// ---- progress ----

func (s *SQLStore) GetProgress(ctx context.Context, email, storyID string) (*models.Progress, error) {
	var rec progressRecord
	err := s.db.WithContext(ctx).First(&rec, "email = ? AND story_id = ?", email, storyID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return decodeProgress(rec)
}

func (s *SQLStore) UpdateProgress(ctx context.Context, email, storyID string, fn func(p *models.Progress) error) (*models.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out *models.Progress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := models.NewProgress(email, storyID, time.Now())
		var row progressRecord
		err := tx.First(&row, "email = ? AND story_id = ?", email, storyID).Error
		switch {
		case err == nil:
			if rec, err = decodeProgress(row); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		out = rec
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}, {Name: "story_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&progressRecord{Email: email, StoryID: storyID, Data: datatypes.JSON(data)}).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLStore) ListProgress(ctx context.Context) ([]*models.Progress, error) {
	var rows []progressRecord
	if err := s.db.WithContext(ctx).Order("email, story_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.Progress, 0, len(rows))
	for _, row := range rows {
		p, err := decodeProgress(row)
		if err != nil {
			s.log.Warn("Skipping undecodable progress", "email", row.Email, "storyId", row.StoryID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLStore) DeleteUserProgress(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Delete(&progressRecord{}, "email = ?", email).Error
}

func (s *SQLStore) DeleteStoryProgress(ctx context.Context, storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Delete(&progressRecord{}, "story_id = ?", storyID).Error
}

func decodeProgress(row progressRecord) (*models.Progress, error) {
	var p models.Progress
	if err := json.Unmarshal(row.Data, &p); err != nil {
		return nil, fmt.Errorf("decode progress %s/%s: %w", row.Email, row.StoryID, err)
	}
	p.Email, p.StoryID = row.Email, row.StoryID
	p.Normalize()
	return &p, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
