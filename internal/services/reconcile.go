package services

import (
	"fmt"
	"strings"

	"github.com/diewo77/bilan-portal/internal/models"
	"github.com/diewo77/bilan-portal/internal/validation"
)

// Plan is the minimal set of association changes turning the current
// recipient set of a client into the desired one.
type Plan struct {
	Keep   []string // emails already linked, left untouched
	Add    []string // emails to link, in request order
	Remove []uint   // association row ids to delete
}

func (p Plan) Empty() bool { return len(p.Add) == 0 && len(p.Remove) == 0 }

// PlanReconciliation diffs the current association rows (Recipient preloaded)
// against a normalized desired email list. It performs no I/O.
func PlanReconciliation(current []models.ClientRecipient, desired []string) Plan {
	want := make(map[string]struct{}, len(desired))
	for _, e := range desired {
		want[e] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	var p Plan
	for _, link := range current {
		email := link.Recipient.Email
		if _, ok := want[email]; ok {
			if _, dup := have[email]; !dup {
				p.Keep = append(p.Keep, email)
				have[email] = struct{}{}
				continue
			}
		}
		p.Remove = append(p.Remove, link.ID)
	}
	for _, e := range desired {
		if _, ok := have[e]; !ok {
			p.Add = append(p.Add, e)
			have[e] = struct{}{}
		}
	}
	return p
}

// normalizeEmails trims, validates and deduplicates (case-sensitive, first
// occurrence wins) a requested email list. Every invalid entry is reported
// under field[i].
func normalizeEmails(field string, raw []string) ([]string, validation.Violations) {
	v := validation.Violations{}
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, e := range raw {
		e = strings.TrimSpace(e)
		if !validation.IsEmail(e) {
			v[fmt.Sprintf("%s[%d]", field, i)] = "invalid_email"
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out, v
}
