package entities

import "time"

// User is a learner known to the bot.
type User struct {
	ID        int64 // Telegram user ID
	ChatID    int64 // private chat used for notifications
	Username  string
	IsActive  bool
	CreatedAt time.Time
}

func NewUser(id, chatID int64, username string) *User {
	return &User{
		ID:       id,
		ChatID:   chatID,
		Username: username,
		IsActive: true,
	}
}

// SweepTarget is a user the freeze sweep has to visit.
type SweepTarget struct {
	UserID int64
	ChatID int64
}
