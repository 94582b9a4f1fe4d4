package domain

import "time"

type User struct {
	ID        int64
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
}
