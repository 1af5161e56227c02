package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/bilan-portal/internal/models"
	"github.com/diewo77/bilan-portal/internal/validation"
)

// ClientInput carries the writable client fields as submitted by a caller.
type ClientInput struct {
	CompanyName      string
	SIRET            string
	Accountant       string
	Status           string
	AuthorizedEmails []string
}

type clientFields struct {
	companyName string
	siret       string
	accountant  string
	status      models.ClientStatus
}

var clientStatuses = []string{string(models.ClientStatusActive), string(models.ClientStatusInactive)}

// normalize validates the input and returns the canonical column values and the
// deduplicated email list.
func (in ClientInput) normalize() (clientFields, []string, error) {
	v := validation.Violations{}
	f := clientFields{
		companyName: strings.TrimSpace(in.CompanyName),
		siret:       validation.NormalizeSIRET(in.SIRET),
		accountant:  strings.TrimSpace(in.Accountant),
		status:      models.ClientStatus(strings.TrimSpace(in.Status)),
	}
	validation.Required("companyName", f.companyName, v)
	validation.SIRET("siret", f.siret, v)
	if f.accountant == "" {
		f.accountant = models.AccountantUnassigned
	}
	if f.status == "" {
		f.status = models.ClientStatusActive
	}
	validation.OneOf("status", string(f.status), clientStatuses, v)

	emails, ev := normalizeEmails("authorizedEmails", in.AuthorizedEmails)
	v.Merge(ev)
	if !v.Empty() {
		return clientFields{}, nil, &ValidationError{Violations: v}
	}
	return f, emails, nil
}

// ClientService owns client rows and their recipient associations. Every
// mutation runs in a single transaction.
type ClientService struct {
	DB        *gorm.DB
	Directory *RecipientDirectory
	Log       *zap.Logger
	Now       func() time.Time
}

func NewClientService(db *gorm.DB, log *zap.Logger) *ClientService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientService{DB: db, Directory: NewRecipientDirectory(db), Log: log, Now: time.Now}
}

func withRecipients(db *gorm.DB) *gorm.DB {
	return db.Preload("Links", func(db *gorm.DB) *gorm.DB {
		return db.Order("client_recipients.id ASC")
	}).Preload("Links.Recipient")
}

// List returns every client, newest first.
func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	clients := []models.Client{}
	if err := withRecipients(s.DB.WithContext(ctx)).
		Order("created_at DESC").
		Order("id ASC").
		Find(&clients).Error; err != nil {
		return nil, s.fail("list clients", "", err)
	}
	return clients, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	err := withRecipients(s.DB.WithContext(ctx)).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail("get client", id, err)
	}
	return &c, nil
}

func (s *ClientService) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Client{}).Count(&n).Error; err != nil {
		return 0, s.fail("count clients", "", err)
	}
	return n, nil
}

// Create inserts a client with its recipient associations. It is not
// idempotent: resubmitting the same input creates a second client.
func (s *ClientService) Create(ctx context.Context, in ClientInput) (*models.Client, error) {
	f, emails, err := in.normalize()
	if err != nil {
		return nil, err
	}
	now := s.Now()
	c := models.Client{
		CompanyName: f.companyName,
		SIRET:       f.siret,
		Accountant:  f.accountant,
		Status:      f.status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
			return err
		}
		return s.link(ctx, tx, c.ID, emails, now)
	})
	if err != nil {
		return nil, s.fail("create client", c.ID, err)
	}
	s.Log.Info("client created", zap.String("client_id", c.ID), zap.Int("recipients", len(emails)))
	return s.Get(ctx, c.ID)
}

// Update replaces the client fields and reconciles its recipient set so it
// equals exactly the requested emails. Emails dropped from the list are
// unlinked; their directory rows are kept.
func (s *ClientService) Update(ctx context.Context, id string, in ClientInput) (*models.Client, error) {
	f, emails, err := in.normalize()
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, "update client", id, &f, emails)
}

// ReplaceRecipients reconciles only the recipient set of a client.
func (s *ClientService) ReplaceRecipients(ctx context.Context, id string, emails []string) (*models.Client, error) {
	normalized, v := normalizeEmails("authorizedEmails", emails)
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}
	return s.reconcile(ctx, "replace recipients", id, nil, normalized)
}

func (s *ClientService) reconcile(ctx context.Context, op, id string, f *clientFields, emails []string) (*models.Client, error) {
	now := s.Now()
	var plan Plan
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c models.Client
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var current []models.ClientRecipient
		if err := tx.Preload("Recipient").Where("client_id = ?", id).Order("id ASC").Find(&current).Error; err != nil {
			return err
		}
		plan = PlanReconciliation(current, emails)

		if len(plan.Remove) > 0 {
			if err := tx.Where("id IN ?", plan.Remove).Delete(&models.ClientRecipient{}).Error; err != nil {
				return err
			}
		}
		if err := s.link(ctx, tx, id, plan.Add, now); err != nil {
			return err
		}

		updates := map[string]any{"updated_at": now}
		if f != nil {
			updates["company_name"] = f.companyName
			updates["siret"] = f.siret
			updates["accountant"] = f.accountant
			updates["status"] = f.status
		}
		return tx.Model(&models.Client{}).Where("id = ?", id).Updates(updates).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(op, id, err)
	}
	s.Log.Info("client recipients reconciled",
		zap.String("op", op),
		zap.String("client_id", id),
		zap.Int("kept", len(plan.Keep)),
		zap.Int("added", len(plan.Add)),
		zap.Int("removed", len(plan.Remove)),
	)
	return s.Get(ctx, id)
}

// Delete removes the client and its associations. Recipient rows stay.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.ClientRecipient{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Client{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.fail("delete client", id, err)
	}
	s.Log.Info("client deleted", zap.String("client_id", id))
	return nil
}

// link resolves each email in the directory and inserts one association row per recipient.
func (s *ClientService) link(ctx context.Context, tx *gorm.DB, clientID string, emails []string, now time.Time) error {
	for _, e := range emails {
		r, err := s.Directory.ResolveOrCreate(ctx, tx, e)
		if err != nil {
			return err
		}
		l := models.ClientRecipient{ClientID: clientID, RecipientID: r.ID, CreatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "recipient_id"}},
			DoNothing: true,
		}).Omit(clause.Associations).Create(&l).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *ClientService) fail(op, clientID string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if clientID != "" {
		fields = append(fields, zap.String("client_id", clientID))
	}
	if code := SQLState(err); code != "" {
		fields = append(fields, zap.String("sqlstate", code))
	}
	s.Log.Error("storage failure", fields...)
	return storageErr(op, clientID, err)
}
