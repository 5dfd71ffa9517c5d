package models

// SystemStats is the admin dashboard summary.
type SystemStats struct {
	Overview OverviewStats `json:"overview"`
	Reading  ReadingStats  `json:"reading"`
	Streaks  StreakStats   `json:"streaks"`
}

type OverviewStats struct {
	TotalUsers    int `json:"totalUsers"`
	TotalAdmins   int `json:"totalAdmins"`
	TotalStories  int `json:"totalStories"`
	TotalProgress int `json:"totalProgress"`
	ActiveUsers   int `json:"activeUsers"` // read within the last 30 days
}

type ReadingStats struct {
	TotalBooksRead     int     `json:"totalBooksRead"`
	TotalChaptersRead  int     `json:"totalChaptersRead"`
	TotalBadges        int     `json:"totalBadges"`
	AvgBooksPerUser    float64 `json:"avgBooksPerUser"`
	AvgChaptersPerUser float64 `json:"avgChaptersPerUser"`
}

type StreakStats struct {
	LongestStreak          int     `json:"longestStreak"`
	UsersWithActiveStreaks int     `json:"usersWithActiveStreaks"`
	AvgCurrentStreak       float64 `json:"avgCurrentStreak"`
}
