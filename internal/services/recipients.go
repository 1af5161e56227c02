package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/bilan-portal/internal/models"
)

// RecipientDirectory persists the shared, deduplicated email table.
// Callers validate addresses before handing them over.
type RecipientDirectory struct{ DB *gorm.DB }

func NewRecipientDirectory(db *gorm.DB) *RecipientDirectory { return &RecipientDirectory{DB: db} }

// ResolveOrCreate returns the recipient row for email, inserting it when absent.
// The insert is ON CONFLICT DO NOTHING against the unique email index, so
// concurrent callers converge on a single row. tx may be nil to run outside a transaction.
func (d *RecipientDirectory) ResolveOrCreate(ctx context.Context, tx *gorm.DB, email string) (models.Recipient, error) {
	if tx == nil {
		tx = d.DB
	}
	tx = tx.WithContext(ctx)
	r := models.Recipient{Email: email}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&r).Error; err != nil {
		return models.Recipient{}, fmt.Errorf("insert recipient: %w", err)
	}
	var out models.Recipient
	if err := tx.Where("email = ?", email).Take(&out).Error; err != nil {
		return models.Recipient{}, fmt.Errorf("load recipient: %w", err)
	}
	return out, nil
}

// Lookup returns the existing recipients among emails, keyed by address.
func (d *RecipientDirectory) Lookup(ctx context.Context, emails []string) (map[string]models.Recipient, error) {
	out := make(map[string]models.Recipient, len(emails))
	if len(emails) == 0 {
		return out, nil
	}
	var rows []models.Recipient
	if err := d.DB.WithContext(ctx).Where("email IN ?", emails).Find(&rows).Error; err != nil {
		return nil, storageErr("lookup recipients", "", err)
	}
	for _, r := range rows {
		out[r.Email] = r
	}
	return out, nil
}

func (d *RecipientDirectory) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := d.DB.WithContext(ctx).Model(&models.Recipient{}).Count(&n).Error; err != nil {
		return 0, storageErr("count recipients", "", err)
	}
	return n, nil
}
