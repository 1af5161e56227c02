package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/models"
	"github.com/diewo77/bilan-portal/internal/queue"
	"github.com/diewo77/bilan-portal/internal/validation"
)

type ReportType string

const (
	ReportAnnual      ReportType = "annual"
	ReportQuarterly   ReportType = "quarterly"
	ReportExceptional ReportType = "exceptional"
)

var reportTypes = []string{string(ReportAnnual), string(ReportQuarterly), string(ReportExceptional)}

// ValidityMonths is how long a published bilan stays accessible.
func (t ReportType) ValidityMonths() int {
	switch t {
	case ReportQuarterly:
		return 3
	case ReportExceptional:
		return 6
	default:
		return 12
	}
}

// DefaultReportLabel mirrors the label the dashboard proposes before manual edits.
func DefaultReportLabel(t ReportType, year, quarter int) string {
	switch t {
	case ReportQuarterly:
		return fmt.Sprintf("Bilan Trimestriel Q%d %d", quarter, year)
	case ReportExceptional:
		return fmt.Sprintf("Bilan Exceptionnel %d", year)
	default:
		return fmt.Sprintf("Bilan Annuel %d", year)
	}
}

// NewClientID selects client creation instead of an existing client.
const NewClientID = "new"

const dateLayout = "2006-01-02"

type ImportState string

const (
	ImportCollecting ImportState = "collecting"
	ImportValidated  ImportState = "validated"
	ImportSubmitted  ImportState = "submitted"
)

var ErrImportState = errors.New("invalid_import_state")

type NewClientFields struct {
	CompanyName string `json:"companyName"`
	SIRET       string `json:"siret"`
}

type Publication struct {
	Immediate     bool   `json:"immediate"`
	ScheduledDate string `json:"scheduledDate,omitempty"` // YYYY-MM-DD
}

// ImportConfig is the configuration collected by the import form.
type ImportConfig struct {
	ClientID        string           `json:"clientId"`
	NewClient       *NewClientFields `json:"newClient,omitempty"`
	ReportLabel     string           `json:"reportLabel"`
	ReportType      ReportType       `json:"reportType"`
	ReportYear      int              `json:"reportYear"`
	ReportQuarter   *int             `json:"reportQuarter,omitempty"`
	RecipientEmails []string         `json:"recipientEmails"`
	Publication     Publication      `json:"publication"`
	SavePreferences bool             `json:"savePreferences"`
}

// ImportDraft walks an ImportConfig through collecting -> validated -> submitted.
// Nothing is persisted before Submit.
type ImportDraft struct {
	Config ImportConfig

	state      ImportState
	client     *models.Client
	newClient  NewClientFields
	label      string
	recipients []string
	publishOn  time.Time
}

func NewImportDraft(cfg ImportConfig) *ImportDraft {
	return &ImportDraft{Config: cfg, state: ImportCollecting}
}

func (d *ImportDraft) State() ImportState { return d.state }

// Submission is the validated import handed to the analysis queue.
type Submission struct {
	ID              string      `json:"id"`
	State           ImportState `json:"state"`
	ClientID        string      `json:"clientId"`
	ClientName      string      `json:"clientName"`
	ClientCreated   bool        `json:"clientCreated"`
	ReportLabel     string      `json:"reportLabel"`
	ReportType      ReportType  `json:"reportType"`
	ReportYear      int         `json:"reportYear"`
	ReportQuarter   *int        `json:"reportQuarter,omitempty"`
	Recipients      []string    `json:"recipientEmails"`
	Immediate       bool        `json:"immediate"`
	PublishOn       string      `json:"publishOn"`
	ExpiresAt       string      `json:"expiresAt"`
	SavePreferences bool        `json:"savePreferences"`
	SubmittedAt     time.Time   `json:"submittedAt"`
}

// ImportService validates and submits import configurations.
type ImportService struct {
	Clients   *ClientService
	Publisher queue.Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

func NewImportService(clients *ClientService, pub queue.Publisher, log *zap.Logger) *ImportService {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = queue.LogPublisher{Log: log}
	}
	return &ImportService{Clients: clients, Publisher: pub, Log: log, Now: time.Now}
}

func (s *ImportService) today() time.Time {
	now := s.Now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// Validate checks the draft and moves it to validated. On failure the draft
// stays in collecting and can be corrected.
func (s *ImportService) Validate(ctx context.Context, d *ImportDraft) error {
	if d.state != ImportCollecting {
		return ErrImportState
	}
	cfg := d.Config
	v := validation.Violations{}

	var client *models.Client
	var nc NewClientFields
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	switch cfg.ClientID {
	case "":
		v["clientId"] = "required"
	case NewClientID:
		if cfg.NewClient == nil {
			v["newClient.companyName"] = "required"
			break
		}
		nc.CompanyName = strings.TrimSpace(cfg.NewClient.CompanyName)
		nc.SIRET = validation.NormalizeSIRET(cfg.NewClient.SIRET)
		validation.Required("newClient.companyName", nc.CompanyName, v)
		validation.SIRET("newClient.siret", nc.SIRET, v)
	default:
		c, err := s.Clients.Get(ctx, cfg.ClientID)
		if err != nil {
			return err
		}
		client = c
	}

	validation.OneOf("reportType", string(cfg.ReportType), reportTypes, v)
	today := s.today()
	validation.RangeInt("reportYear", cfg.ReportYear, 2000, today.Year()+1, v)
	quarter := 0
	if cfg.ReportType == ReportQuarterly {
		if cfg.ReportQuarter == nil {
			v["reportQuarter"] = "required"
		} else {
			quarter = *cfg.ReportQuarter
			validation.RangeInt("reportQuarter", quarter, 1, 4, v)
		}
	} else if cfg.ReportQuarter != nil {
		v["reportQuarter"] = "not_allowed"
	}

	recipients, ev := normalizeEmails("recipientEmails", cfg.RecipientEmails)
	v.Merge(ev)
	if len(cfg.RecipientEmails) == 0 && client != nil {
		recipients = client.Emails()
	}

	publishOn := today
	if !cfg.Publication.Immediate {
		raw := strings.TrimSpace(cfg.Publication.ScheduledDate)
		if raw == "" {
			v["publication.scheduledDate"] = "required"
		} else if when, err := time.ParseInLocation(dateLayout, raw, today.Location()); err != nil {
			v["publication.scheduledDate"] = "invalid_date"
		} else if when.Before(today) {
			v["publication.scheduledDate"] = "must_not_be_past"
		} else {
			publishOn = when
		}
	}

	if !v.Empty() {
		return &ValidationError{Violations: v}
	}

	label := strings.TrimSpace(cfg.ReportLabel)
	if label == "" {
		label = DefaultReportLabel(cfg.ReportType, cfg.ReportYear, quarter)
	}
	d.client = client
	d.newClient = nc
	d.label = label
	d.recipients = recipients
	d.publishOn = publishOn
	d.state = ImportValidated
	return nil
}

// Submit applies the client side effects of a validated draft and hands the
// submission to the publisher. A "new" client is created with the recipient
// list as its authorized emails; SavePreferences on an existing client
// reconciles its authorized emails to the recipient list.
func (s *ImportService) Submit(ctx context.Context, d *ImportDraft) (*Submission, error) {
	if d.state != ImportValidated {
		return nil, ErrImportState
	}
	cfg := d.Config
	created := false
	client := d.client
	var err error
	switch {
	case client == nil:
		client, err = s.Clients.Create(ctx, ClientInput{
			CompanyName:      d.newClient.CompanyName,
			SIRET:            d.newClient.SIRET,
			AuthorizedEmails: d.recipients,
		})
		if err != nil {
			return nil, err
		}
		created = true
	case cfg.SavePreferences:
		client, err = s.Clients.ReplaceRecipients(ctx, client.ID, d.recipients)
		if err != nil {
			return nil, err
		}
	}

	sub := &Submission{
		ID:              uuid.NewString(),
		State:           ImportSubmitted,
		ClientID:        client.ID,
		ClientName:      client.CompanyName,
		ClientCreated:   created,
		ReportLabel:     d.label,
		ReportType:      cfg.ReportType,
		ReportYear:      cfg.ReportYear,
		ReportQuarter:   cfg.ReportQuarter,
		Recipients:      d.recipients,
		Immediate:       cfg.Publication.Immediate,
		PublishOn:       d.publishOn.Format(dateLayout),
		ExpiresAt:       d.publishOn.AddDate(0, cfg.ReportType.ValidityMonths(), 0).Format(dateLayout),
		SavePreferences: cfg.SavePreferences,
		SubmittedAt:     s.Now().UTC(),
	}
	if cfg.ReportType != ReportQuarterly {
		sub.ReportQuarter = nil
	}
	msg := queue.Message{
		ID:        sub.ID,
		Kind:      "bilan.import",
		PublishAt: d.publishOn,
		Scheduled: !cfg.Publication.Immediate,
		Payload:   sub,
	}
	if err := s.Publisher.Publish(ctx, msg); err != nil {
		s.Log.Error("import hand-off failed", zap.String("submission_id", sub.ID), zap.String("client_id", sub.ClientID), zap.Error(err))
		return nil, fmt.Errorf("publish import %s: %w", sub.ID, err)
	}
	d.state = ImportSubmitted
	s.Log.Info("import submitted",
		zap.String("submission_id", sub.ID),
		zap.String("client_id", sub.ClientID),
		zap.String("report_type", string(sub.ReportType)),
		zap.String("publish_on", sub.PublishOn),
	)
	return sub, nil
}

// Process runs a configuration through the whole workflow.
func (s *ImportService) Process(ctx context.Context, cfg ImportConfig) (*Submission, error) {
	d := NewImportDraft(cfg)
	if err := s.Validate(ctx, d); err != nil {
		return nil, err
	}
	return s.Submit(ctx, d)
}
