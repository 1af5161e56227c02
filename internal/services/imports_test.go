package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/queue"
)

type recordingPublisher struct {
	msgs []queue.Message
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func newImportTestService(t *testing.T) (*ImportService, *recordingPublisher) {
	clients, _ := newTestService(t)
	pub := &recordingPublisher{}
	svc := NewImportService(clients, pub, zap.NewNop())
	svc.Now = func() time.Time { return time.Date(2026, 10, 15, 14, 30, 0, 0, time.UTC) }
	return svc, pub
}

func intPtr(i int) *int { return &i }

func TestImportExistingClientImmediate(t *testing.T) {
	svc, pub := newImportTestService(t)
	ctx := context.Background()
	c, err := svc.Clients.Create(ctx, acmeInput("directeur@boulangerie.fr", "comptable@boulangerie.fr"))
	require.NoError(t, err)

	sub, err := svc.Process(ctx, ImportConfig{
		ClientID:    c.ID,
		ReportType:  ReportAnnual,
		ReportYear:  2025,
		Publication: Publication{Immediate: true},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportSubmitted, sub.State)
	assert.Equal(t, c.ID, sub.ClientID)
	assert.False(t, sub.ClientCreated)
	assert.Equal(t, "Bilan Annuel 2025", sub.ReportLabel)
	assert.Equal(t, []string{"directeur@boulangerie.fr", "comptable@boulangerie.fr"}, sub.Recipients)
	assert.Equal(t, "2026-10-15", sub.PublishOn)
	assert.Equal(t, "2027-10-15", sub.ExpiresAt)

	require.Len(t, pub.msgs, 1)
	assert.False(t, pub.msgs[0].Scheduled)
	assert.Equal(t, sub.ID, pub.msgs[0].ID)
}

func TestImportNewClientScheduledQuarterly(t *testing.T) {
	svc, pub := newImportTestService(t)
	ctx := context.Background()

	sub, err := svc.Process(ctx, ImportConfig{
		ClientID:        NewClientID,
		NewClient:       &NewClientFields{CompanyName: "Tech Innovations SAS", SIRET: "987 654 321 00098"},
		ReportType:      ReportQuarterly,
		ReportYear:      2026,
		ReportQuarter:   intPtr(3),
		RecipientEmails: []string{"ceo@techinnovations.com", "ceo@techinnovations.com"},
		Publication:     Publication{ScheduledDate: "2026-11-02"},
	})
	require.NoError(t, err)
	assert.True(t, sub.ClientCreated)
	assert.Equal(t, "Bilan Trimestriel Q3 2026", sub.ReportLabel)
	assert.Equal(t, "2026-11-02", sub.PublishOn)
	assert.Equal(t, "2027-02-02", sub.ExpiresAt)
	assert.Equal(t, []string{"ceo@techinnovations.com"}, sub.Recipients)

	created, err := svc.Clients.Get(ctx, sub.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "98765432100098", created.SIRET)
	assert.Equal(t, []string{"ceo@techinnovations.com"}, created.Emails())

	require.Len(t, pub.msgs, 1)
	assert.True(t, pub.msgs[0].Scheduled)
	assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), pub.msgs[0].PublishAt)
}

func TestImportSavePreferences(t *testing.T) {
	svc, _ := newImportTestService(t)
	ctx := context.Background()
	c, err := svc.Clients.Create(ctx, acmeInput("old@acme.fr"))
	require.NoError(t, err)

	_, err = svc.Process(ctx, ImportConfig{
		ClientID:        c.ID,
		ReportLabel:     "  Bilan spécial  ",
		ReportType:      ReportExceptional,
		ReportYear:      2026,
		RecipientEmails: []string{"new@acme.fr"},
		Publication:     Publication{Immediate: true},
		SavePreferences: true,
	})
	require.NoError(t, err)
	got, err := svc.Clients.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"new@acme.fr"}, got.Emails())
}

func TestImportWithoutSavePreferencesLeavesClient(t *testing.T) {
	svc, _ := newImportTestService(t)
	ctx := context.Background()
	c, err := svc.Clients.Create(ctx, acmeInput("old@acme.fr"))
	require.NoError(t, err)

	sub, err := svc.Process(ctx, ImportConfig{
		ClientID:        c.ID,
		ReportLabel:     "Bilan spécial",
		ReportType:      ReportExceptional,
		ReportYear:      2026,
		RecipientEmails: []string{"new@acme.fr"},
		Publication:     Publication{Immediate: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bilan spécial", sub.ReportLabel)
	assert.Equal(t, "2027-04-15", sub.ExpiresAt)
	got, err := svc.Clients.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"old@acme.fr"}, got.Emails())
}

func TestImportValidation(t *testing.T) {
	tests := []struct {
		name  string
		cfg   ImportConfig
		field string
		code  string
	}{
		{"missing client", ImportConfig{ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{Immediate: true}}, "clientId", "required"},
		{"new client without fields", ImportConfig{ClientID: NewClientID, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{Immediate: true}}, "newClient.companyName", "required"},
		{"new client bad siret", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X", SIRET: "123"}, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{Immediate: true}}, "newClient.siret", "siret_length"},
		{"bad type", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: "monthly", ReportYear: 2025, Publication: Publication{Immediate: true}}, "reportType", "invalid_value"},
		{"year too far", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2030, Publication: Publication{Immediate: true}}, "reportYear", "out_of_range"},
		{"quarter missing", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportQuarterly, ReportYear: 2025, Publication: Publication{Immediate: true}}, "reportQuarter", "required"},
		{"quarter out of range", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportQuarterly, ReportYear: 2025, ReportQuarter: intPtr(5), Publication: Publication{Immediate: true}}, "reportQuarter", "out_of_range"},
		{"quarter on annual", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025, ReportQuarter: intPtr(1), Publication: Publication{Immediate: true}}, "reportQuarter", "not_allowed"},
		{"bad recipient", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025, RecipientEmails: []string{"nope"}, Publication: Publication{Immediate: true}}, "recipientEmails[0]", "invalid_email"},
		{"schedule missing", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025}, "publication.scheduledDate", "required"},
		{"schedule malformed", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{ScheduledDate: "15/11/2026"}}, "publication.scheduledDate", "invalid_date"},
		{"schedule in past", ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{ScheduledDate: "2026-10-14"}}, "publication.scheduledDate", "must_not_be_past"},
	}
	svc, pub := newImportTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewImportDraft(tt.cfg)
			err := svc.Validate(context.Background(), d)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.code, verr.Violations[tt.field], verr.Error())
			assert.Equal(t, ImportCollecting, d.State())
		})
	}
	assert.Empty(t, pub.msgs)
	n, err := svc.Clients.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportScheduledToday(t *testing.T) {
	svc, _ := newImportTestService(t)
	d := NewImportDraft(ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{ScheduledDate: "2026-10-15"}})
	require.NoError(t, svc.Validate(context.Background(), d))
	assert.Equal(t, ImportValidated, d.State())
}

func TestImportUnknownClient(t *testing.T) {
	svc, _ := newImportTestService(t)
	_, err := svc.Process(context.Background(), ImportConfig{ClientID: "missing", ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{Immediate: true}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportStateMachine(t *testing.T) {
	svc, _ := newImportTestService(t)
	ctx := context.Background()
	d := NewImportDraft(ImportConfig{ClientID: NewClientID, NewClient: &NewClientFields{CompanyName: "X"}, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{Immediate: true}})

	_, err := svc.Submit(ctx, d)
	assert.ErrorIs(t, err, ErrImportState)

	require.NoError(t, svc.Validate(ctx, d))
	assert.ErrorIs(t, svc.Validate(ctx, d), ErrImportState)

	_, err = svc.Submit(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, ImportSubmitted, d.State())

	_, err = svc.Submit(ctx, d)
	assert.ErrorIs(t, err, ErrImportState)
}

func TestImportPublishFailureKeepsDraftValidated(t *testing.T) {
	svc, pub := newImportTestService(t)
	pub.err = errors.New("redis down")
	ctx := context.Background()
	c, err := svc.Clients.Create(ctx, acmeInput("a@acme.fr"))
	require.NoError(t, err)

	d := NewImportDraft(ImportConfig{ClientID: c.ID, ReportType: ReportAnnual, ReportYear: 2025, Publication: Publication{Immediate: true}})
	require.NoError(t, svc.Validate(ctx, d))
	_, err = svc.Submit(ctx, d)
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, ImportValidated, d.State())
}

func TestReportTypeHelpers(t *testing.T) {
	assert.Equal(t, 12, ReportAnnual.ValidityMonths())
	assert.Equal(t, 3, ReportQuarterly.ValidityMonths())
	assert.Equal(t, 6, ReportExceptional.ValidityMonths())
	assert.Equal(t, "Bilan Exceptionnel 2024", DefaultReportLabel(ReportExceptional, 2024, 0))
}
