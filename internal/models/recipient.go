package models

import "time"

// Recipient is a deduplicated email address shared by every client that authorizes it.
type Recipient struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"size:320;not null;uniqueIndex"`
	CreatedAt time.Time
}

// ClientRecipient links a client to a recipient, at most once per pair.
type ClientRecipient struct {
	ID          uint      `gorm:"primaryKey"`
	ClientID    string    `gorm:"size:36;not null;uniqueIndex:idx_client_recipient"`
	RecipientID uint      `gorm:"not null;uniqueIndex:idx_client_recipient;index"`
	Recipient   Recipient `gorm:"foreignKey:RecipientID"`
	CreatedAt   time.Time
}

// All lists the models managed by this service, in migration order.
func All() []any {
	return []any{&Recipient{}, &Client{}, &ClientRecipient{}}
}
