// Package storage persists users, stories and progress records.
//
// Every read-modify-write goes through an update closure so that a backend
// can run it atomically: the file backend under in-process locks, the SQL
// backend inside a transaction.
package storage

import (
	"context"
	"errors"
	"fmt"

	"memorymaze/backend/config"
	"memorymaze/backend/models"
	"memorymaze/backend/utils"

	"github.com/go-git/go-billy/v5/osfs"
)

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidKey rejects ids and emails that cannot name a record.
	ErrInvalidKey = errors.New("storage: invalid record key")
)

// UsersMutation edits a full users snapshot keyed by email. Adding, changing
// or deleting map entries is persisted when the function returns nil.
type UsersMutation func(users map[string]*models.User) error

type Users interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	// UpdateUser applies fn to one stored user. ErrNotFound if absent.
	UpdateUser(ctx context.Context, email string, fn func(u *models.User) error) (*models.User, error)
	UpdateUsers(ctx context.Context, fn UsersMutation) error
}

type Stories interface {
	GetStory(ctx context.Context, id string) (*models.Story, error)
	ListStories(ctx context.Context) ([]*models.Story, error)
	StoryExists(ctx context.Context, id string) (bool, error)
	SaveStory(ctx context.Context, story *models.Story) error
	DeleteStory(ctx context.Context, id string) error
}

type ProgressStore interface {
	GetProgress(ctx context.Context, email, storyID string) (*models.Progress, error)
	// UpdateProgress applies fn to the stored record, or to a fresh default
	// record when none exists, and persists the result.
	UpdateProgress(ctx context.Context, email, storyID string, fn func(p *models.Progress) error) (*models.Progress, error)
	ListProgress(ctx context.Context) ([]*models.Progress, error)
	DeleteUserProgress(ctx context.Context, email string) error
	DeleteStoryProgress(ctx context.Context, storyID string) error
}

type Store interface {
	Users
	Stories
	ProgressStore
	Close() error
}

// Open builds the store selected by cfg.StorageDriver.
func Open(cfg *config.Config, log *utils.Logger) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageFile, "":
		log.Info("Using JSON file storage", "dir", cfg.DataDir)
		return NewFileStore(osfs.New(cfg.DataDir), log)
	case config.StorageSQLite:
		log.Info("Using SQLite storage", "path", cfg.SQLitePath)
		return OpenSQLite(cfg.SQLitePath, log)
	case config.StoragePostgres:
		log.Info("Using Postgres storage", "host", cfg.DBHost, "db", cfg.DBName)
		return OpenPostgres(cfg.PostgresDSN(), log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
