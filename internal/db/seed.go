package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/models"
	"github.com/diewo77/bilan-portal/internal/services"
	"github.com/diewo77/bilan-portal/internal/validation"
)

// DemoClients are the sample clients shown on a fresh dashboard.
var DemoClients = []services.ClientInput{
	{
		CompanyName:      "Boulangerie Moderne SARL",
		SIRET:            "123 456 789 00012",
		Accountant:       "Jean Dupont",
		AuthorizedEmails: []string{"directeur@boulangerie.fr", "comptable@boulangerie.fr", "banquier@bnp.fr"},
	},
	{
		CompanyName:      "Tech Innovations SAS",
		SIRET:            "987 654 321 00098",
		Accountant:       "Jean Dupont",
		AuthorizedEmails: []string{"ceo@techinnovations.com", "cfo@techinnovations.com"},
	},
	{
		CompanyName:      "Restaurant Le Gourmet",
		SIRET:            "555 666 777 00088",
		Accountant:       "Jean Dupont",
		AuthorizedEmails: []string{"contact@legourmet.fr"},
	},
	{
		CompanyName:      "Agence Créative Studio",
		SIRET:            "111 222 333 00044",
		Accountant:       "Jean Dupont",
		AuthorizedEmails: []string{"admin@creativestudio.fr", "compta@creativestudio.fr"},
	},
}

// Seed creates the demo clients that do not exist yet, matching on siret.
// It returns how many clients were created.
func Seed(ctx context.Context, clients *services.ClientService) (int, error) {
	created := 0
	for _, in := range DemoClients {
		var n int64
		siret := validation.NormalizeSIRET(in.SIRET)
		if err := clients.DB.WithContext(ctx).Model(&models.Client{}).Where("siret = ?", siret).Count(&n).Error; err != nil {
			return created, fmt.Errorf("seed lookup %s: %w", in.CompanyName, err)
		}
		if n > 0 {
			continue
		}
		if _, err := clients.Create(ctx, in); err != nil {
			return created, fmt.Errorf("seed %s: %w", in.CompanyName, err)
		}
		created++
	}
	clients.Log.Info("seed completed", zap.Int("created", created), zap.Int("demo_clients", len(DemoClients)))
	return created, nil
}
