package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// AccountantUnassigned is stored when no accountant label is supplied.
const AccountantUnassigned = "unassigned"

// Client is a customer company of the firm. Authorized recipients are reached
// through the client_recipients association rows.
type Client struct {
	ID          string       `gorm:"primaryKey;size:36"`
	CompanyName string       `gorm:"size:255;not null"`
	SIRET       string       `gorm:"size:14;index"` // 14 digits, no separators
	Accountant  string       `gorm:"size:255;not null"`
	Status      ClientStatus `gorm:"size:16;not null"`
	CreatedAt   time.Time    `gorm:"index"`
	UpdatedAt   time.Time

	Links []ClientRecipient `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate assigns the client id when the caller left it empty.
func (c *Client) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Emails returns the authorized emails in association order. Links must be
// preloaded with their Recipient.
func (c *Client) Emails() []string {
	out := make([]string, 0, len(c.Links))
	for _, l := range c.Links {
		out = append(out, l.Recipient.Email)
	}
	return out
}

func (c *Client) IsActive() bool { return c.Status == ClientStatusActive }
