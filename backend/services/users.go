package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"memorymaze/backend/apperr"
	"memorymaze/backend/models"
	"memorymaze/backend/storage"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type ProfileInput struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Avatar   *string `json:"avatar"`
	Bio      *string `json:"bio"`
	Theme    *string `json:"theme"`
}

type SettingsInput struct {
	Notifications *bool `json:"notifications"`
	DailyReminder *bool `json:"dailyReminder"`
	ReadingGoal   *int  `json:"readingGoal"`
}

type BadgeInput struct {
	StoryID    string `json:"storyId"`
	StoryTitle string `json:"storyTitle"`
}

type BadgeResult struct {
	Badge models.Badge `json:"badge"`
	IsNew bool         `json:"isNew"`
	Stats models.Stats `json:"stats"`
}

type SavedBooksResult struct {
	Message    string   `json:"message,omitempty"`
	SavedBooks []string `json:"savedBooks"`
}

type UserService struct {
	users storage.Users
	stats *StatsEngine
	now   Clock
}

func NewUserService(users storage.Users, stats *StatsEngine) *UserService {
	return &UserService{users: users, stats: stats, now: time.Now}
}

func (s *UserService) Profile(ctx context.Context, email string) (*models.UserView, error) {
	u, err := s.users.GetUser(ctx, email)
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	view := u.View()
	return &view, nil
}

// UpdateProfile applies the given fields. Usernames are unique ignoring case,
// so the check and the write run over one users snapshot.
func (s *UserService) UpdateProfile(ctx context.Context, email string, in ProfileInput) (*models.Profile, error) {
	if in.Username != nil {
		if err := validateUsername(*in.Username); err != nil {
			return nil, err
		}
	}

	var profile models.Profile
	err := s.users.UpdateUsers(ctx, func(users map[string]*models.User) error {
		u, ok := users[email]
		if !ok {
			return apperr.NotFound(msgUserNotFound)
		}
		u.ApplyDefaults()

		if in.Username != nil {
			for other, ou := range users {
				if other != email && ou.Profile != nil && strings.EqualFold(ou.Profile.Username, *in.Username) {
					return apperr.Validation("Username is already taken")
				}
			}
			u.Profile.Username = *in.Username
		}
		if in.Name != nil {
			u.Profile.Name = *in.Name
		}
		if in.Avatar != nil {
			u.Profile.Avatar = in.Avatar
		}
		if in.Bio != nil {
			u.Profile.Bio = *in.Bio
		}
		if in.Theme != nil {
			u.Profile.Theme = *in.Theme
		}
		profile = *u.Profile
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	return &profile, nil
}

func validateUsername(name string) error {
	if n := len(name); n < 3 || n > 20 {
		return apperr.Validation("Username must be between 3 and 20 characters")
	}
	if !usernamePattern.MatchString(name) {
		return apperr.Validation("Username can only contain letters, numbers, and underscores")
	}
	return nil
}

func (s *UserService) UpdateSettings(ctx context.Context, email string, in SettingsInput) (*models.Settings, error) {
	u, err := s.users.UpdateUser(ctx, email, func(u *models.User) error {
		u.ApplyDefaults()
		if in.Notifications != nil {
			u.Settings.Notifications = *in.Notifications
		}
		if in.DailyReminder != nil {
			u.Settings.DailyReminder = *in.DailyReminder
		}
		if in.ReadingGoal != nil {
			u.Settings.ReadingGoal = *in.ReadingGoal
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	return u.Settings, nil
}

// UpdateStreak records a reading day. A repeat call on the same calendar day
// leaves the stats untouched.
func (s *UserService) UpdateStreak(ctx context.Context, email string) (*models.Stats, error) {
	now := s.now()
	u, err := s.users.UpdateUser(ctx, email, func(u *models.User) error {
		u.ApplyDefaults()
		if touchStreak(u.Stats, now) {
			u.Stats.TotalChaptersRead++
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	return u.Stats, nil
}

// AddBadge grants a completion badge for a story, once.
func (s *UserService) AddBadge(ctx context.Context, email string, in BadgeInput) (*BadgeResult, error) {
	if strings.TrimSpace(in.StoryID) == "" {
		return nil, apperr.Validation("Story ID is required")
	}
	var res BadgeResult
	u, err := s.users.UpdateUser(ctx, email, func(u *models.User) error {
		u.ApplyDefaults()
		if b, ok := u.HasBadge(in.StoryID, models.BadgeBookCompleted); ok {
			res.Badge = *b
			return nil
		}
		story := &models.Story{ID: in.StoryID, Title: in.StoryTitle}
		s.stats.award(u, story, models.BadgeBookCompleted, s.now())
		u.Stats.TotalBooksRead++
		res.Badge = u.Badges[len(u.Badges)-1]
		res.IsNew = true
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	res.Stats = *u.Stats
	return &res, nil
}

func (s *UserService) SaveBook(ctx context.Context, email, storyID string) (*SavedBooksResult, error) {
	if strings.TrimSpace(storyID) == "" {
		return nil, apperr.Validation("Story ID is required")
	}
	var res SavedBooksResult
	u, err := s.users.UpdateUser(ctx, email, func(u *models.User) error {
		u.ApplyDefaults()
		for _, id := range u.SavedBooks {
			if id == storyID {
				res.Message = "Book already saved"
				return nil
			}
		}
		u.SavedBooks = append(u.SavedBooks, storyID)
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	res.SavedBooks = u.SavedBooks
	return &res, nil
}

func (s *UserService) RemoveBook(ctx context.Context, email, storyID string) (*SavedBooksResult, error) {
	u, err := s.users.UpdateUser(ctx, email, func(u *models.User) error {
		u.ApplyDefaults()
		kept := u.SavedBooks[:0]
		for _, id := range u.SavedBooks {
			if id != storyID {
				kept = append(kept, id)
			}
		}
		u.SavedBooks = kept
		return nil
	})
	if err != nil {
		return nil, storeErr(err, msgUserNotFound)
	}
	return &SavedBooksResult{SavedBooks: u.SavedBooks}, nil
}
