package domain

import "time"

// DealMessage captures broker/admin chat on a deal.
type DealMessage struct {
	ID         string
	DealID     string
	SenderID   string
	SenderRole Role
	Body       string
	CreatedAt  time.Time
}
