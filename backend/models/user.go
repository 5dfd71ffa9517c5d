package models

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	Email      string          `json:"email"`
	Password   string          `json:"password"` // bcrypt hash
	Role       string          `json:"role"`
	CreatedAt  time.Time       `json:"createdAt"`
	Profile    *Profile        `json:"profile,omitempty"`
	Stats      *Stats          `json:"stats,omitempty"`
	Badges     []Badge         `json:"badges"`
	SavedBooks []string        `json:"savedBooks"`
	Settings   *Settings       `json:"settings,omitempty"`
	Notes      map[string]Note `json:"notes,omitempty"`
}

type Profile struct {
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Avatar   *string `json:"avatar"`
	Bio      string  `json:"bio"`
	Theme    string  `json:"theme"`
}

type Stats struct {
	TotalBooksRead    int        `json:"totalBooksRead"`
	TotalChaptersRead int        `json:"totalChaptersRead"`
	CurrentStreak     int        `json:"currentStreak"`
	LongestStreak     int        `json:"longestStreak"`
	LastReadDate      *time.Time `json:"lastReadDate"`
	TotalReadingTime  int        `json:"totalReadingTime"`
}

type Settings struct {
	Notifications bool `json:"notifications"`
	DailyReminder bool `json:"dailyReminder"`
	ReadingGoal   int  `json:"readingGoal"`
}

// UserView is the user shape returned to clients, without the password hash.
type UserView struct {
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	Profile    Profile   `json:"profile"`
	Stats      Stats     `json:"stats"`
	Badges     []Badge   `json:"badges"`
	SavedBooks []string  `json:"savedBooks"`
	Settings   Settings  `json:"settings"`
}

func DefaultProfile(email string) *Profile {
	local := strings.SplitN(email, "@", 2)[0]
	return &Profile{Username: local, Name: local, Theme: "light"}
}

func DefaultSettings() *Settings {
	return &Settings{Notifications: true, ReadingGoal: 1}
}

// ApplyDefaults fills the optional sections older records may lack.
func (u *User) ApplyDefaults() {
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Profile == nil {
		u.Profile = DefaultProfile(u.Email)
	}
	if u.Stats == nil {
		u.Stats = &Stats{}
	}
	if u.Settings == nil {
		u.Settings = DefaultSettings()
	}
	if u.Badges == nil {
		u.Badges = []Badge{}
	}
	if u.SavedBooks == nil {
		u.SavedBooks = []string{}
	}
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u *User) View() UserView {
	c := *u
	c.ApplyDefaults()
	return UserView{
		Email:      c.Email,
		Role:       c.Role,
		CreatedAt:  c.CreatedAt,
		Profile:    *c.Profile,
		Stats:      *c.Stats,
		Badges:     c.Badges,
		SavedBooks: c.SavedBooks,
		Settings:   *c.Settings,
	}
}

// CountAdmins counts admin users in a collection snapshot.
func CountAdmins(users map[string]*User) int {
	n := 0
	for _, u := range users {
		if u.IsAdmin() {
			n++
		}
	}
	return n
}
