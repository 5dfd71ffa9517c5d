package services

import (
	"context"
	"math"
	"time"

	"memorymaze/backend/ai"
	"memorymaze/backend/apperr"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
	"memorymaze/backend/utils"
)

// activeWindow is how recently a user must have read to count as active.
const activeWindow = 30 * 24 * time.Hour

// KeyStatsSource reports provider key usage.
type KeyStatsSource interface {
	Stats() ai.RingStats
}

type RoleChange struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AdminService struct {
	store storage.Store
	keys  KeyStatsSource
	log   *utils.Logger
	now   Clock
}

func NewAdminService(store storage.Store, keys KeyStatsSource, log *utils.Logger) *AdminService {
	return &AdminService{
		store: store,
		keys:  keys,
		log:   log.With("service", "AdminService"),
		now:   time.Now,
	}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.UserView, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]models.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return out, nil
}

// SetRole changes a user's role. The check for the last admin and the write
// happen in one users update.
func (s *AdminService) SetRole(ctx context.Context, email, role string) (*RoleChange, error) {
	if role != models.RoleAdmin && role != models.RoleUser {
		return nil, apperr.Validation(`Invalid role. Must be "admin" or "user"`)
	}
	err := s.store.UpdateUsers(ctx, func(users map[string]*models.User) error {
		u, ok := users[email]
		if !ok {
			return apperr.NotFound(msgUserNotFound)
		}
		if role == models.RoleUser && u.IsAdmin() && models.CountAdmins(users) == 1 {
			return apperr.Conflict("Cannot remove the last admin")
		}
		u.Role = role
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	s.log.Info("User role changed", "email", email, "role", role)
	return &RoleChange{Email: email, Role: role}, nil
}

// DeleteUser removes a user and their progress records.
func (s *AdminService) DeleteUser(ctx context.Context, email string) error {
	err := s.store.UpdateUsers(ctx, func(users map[string]*models.User) error {
		u, ok := users[email]
		if !ok {
			return apperr.NotFound(msgUserNotFound)
		}
		if u.IsAdmin() && models.CountAdmins(users) == 1 {
			return apperr.Conflict("Cannot delete the last admin")
		}
		delete(users, email)
		return nil
	})
	if err != nil {
		return storeErr(err, msgUserNotFound)
	}
	if err := s.store.DeleteUserProgress(ctx, email); err != nil {
		return apperr.Internal(err)
	}
	s.log.Info("User deleted", "email", email)
	return nil
}

func (s *AdminService) Stats(ctx context.Context) (*models.SystemStats, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	stories, err := s.store.ListStories(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	progress, err := s.store.ListProgress(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := s.now()
	var out models.SystemStats
	out.Overview.TotalUsers = len(users)
	out.Overview.TotalStories = len(stories)
	out.Overview.TotalProgress = len(progress)

	streakSum := 0
	for _, u := range users {
		if u.IsAdmin() {
			out.Overview.TotalAdmins++
		}
		out.Reading.TotalBadges += len(u.Badges)
		st := u.Stats
		if st == nil {
			continue
		}
		if st.LastReadDate != nil && now.Sub(*st.LastReadDate) <= activeWindow {
			out.Overview.ActiveUsers++
		}
		out.Reading.TotalBooksRead += st.TotalBooksRead
		out.Reading.TotalChaptersRead += st.TotalChaptersRead
		if st.LongestStreak > out.Streaks.LongestStreak {
			out.Streaks.LongestStreak = st.LongestStreak
		}
		if st.CurrentStreak > 0 {
			out.Streaks.UsersWithActiveStreaks++
			streakSum += st.CurrentStreak
		}
	}
	if n := len(users); n > 0 {
		out.Reading.AvgBooksPerUser = round2(float64(out.Reading.TotalBooksRead) / float64(n))
		out.Reading.AvgChaptersPerUser = round2(float64(out.Reading.TotalChaptersRead) / float64(n))
	}
	if n := out.Streaks.UsersWithActiveStreaks; n > 0 {
		out.Streaks.AvgCurrentStreak = round2(float64(streakSum) / float64(n))
	}
	return &out, nil
}

func (s *AdminService) APIKeyStats() ai.RingStats {
	if s.keys == nil {
		return ai.RingStats{SuccessRate: "N/A", Keys: map[string]ai.KeyStats{}}
	}
	return s.keys.Stats()
}

func (s *AdminService) Progress(ctx context.Context) ([]*models.Progress, error) {
	all, err := s.store.ListProgress(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if all == nil {
		all = []*models.Progress{}
	}
	return all, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
