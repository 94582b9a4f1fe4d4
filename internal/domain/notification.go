package domain

import "time"

type Notification struct {
	ID        int64
	UserID    int64
	BookingID *int64
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// CountUnread counts items with IsRead unset.
func CountUnread(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.IsRead {
			n++
		}
	}
	return n
}
