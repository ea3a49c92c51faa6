package ingest

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/TobiSchelling/ParlCorpus/internal/database"
	"github.com/TobiSchelling/ParlCorpus/internal/errlog"
	"github.com/TobiSchelling/ParlCorpus/internal/riigikogu"
)

// politicians refreshes the member roster. Each member is written in its
// own transaction so one bad record cannot take down the others.
func (r *run) politicians(ctx context.Context) StepResult {
	step := StepResult{Name: "Politicians"}

	members, err := r.p.api.Politicians(ctx)
	if err != nil {
		r.sink.Log(errlog.Entry{
			Type:       errlog.APIConnection,
			Message:    "Failed to fetch politicians: " + err.Error(),
			EntityType: "politician",
			Details:    map[string]any{"error": err.Error()},
		})
		step.Err = fmt.Errorf("fetching politicians: %w", err)
		return step
	}
	r.log.Info("fetched politicians", "count", len(members))

	c := &r.res.Counters
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			step.Err = err
			return step
		}

		in, ok := r.politicianInput(m)
		if !ok {
			c.PoliticiansSkipped++
			continue
		}

		var created bool
		var memberships int
		err := r.p.db.Tx(ctx, r.dryRun, func(s *database.Store) error {
			id, isNew, err := s.UpsertPolitician(ctx, in)
			if err != nil {
				return err
			}
			created = isNew
			for _, f := range m.Factions {
				if f.UUID == "" {
					continue
				}
				ok, err := s.EnsureMembership(ctx, id, r.membership(m, f))
				if err != nil {
					return fmt.Errorf("faction %s: %w", f.UUID, err)
				}
				if ok {
					memberships++
				}
			}
			return nil
		})
		if err != nil {
			r.sink.Log(errlog.Entry{
				Type:       errlog.Database,
				Message:    "Failed to save politician: " + err.Error(),
				EntityType: "politician",
				EntityID:   m.UUID,
				EntityName: in.FullName,
			})
			c.PoliticiansSkipped++
			continue
		}

		if created {
			c.PoliticiansCreated++
		} else {
			c.PoliticiansUpdated++
		}
		c.MembershipsCreated += memberships
	}

	if err := r.flush(ctx); err != nil {
		step.Err = err
		return step
	}

	step.Summary = fmt.Sprintf("%d politicians: %d created, %d updated, %d skipped",
		len(members), c.PoliticiansCreated, c.PoliticiansUpdated, c.PoliticiansSkipped)
	return step
}

// politicianInput maps a roster entry. It returns false when the entry
// cannot be stored at all.
func (r *run) politicianInput(m riigikogu.Member) (database.PoliticianInput, bool) {
	fullName := strings.TrimSpace(m.FullName)
	if fullName == "" {
		fullName = strings.TrimSpace(m.FirstName + " " + m.LastName)
	}
	if m.UUID == "" {
		r.sink.Log(errlog.Entry{
			Type:       errlog.MissingData,
			Message:    "Politician without UUID",
			EntityType: "politician",
			EntityName: fullName,
		})
		return database.PoliticianInput{}, false
	}

	in := database.PoliticianInput{
		UUID:      m.UUID,
		FirstName: strings.TrimSpace(m.FirstName),
		LastName:  strings.TrimSpace(m.LastName),
		FullName:  fullName,
		Active:    m.IsActive(),
		Email:     optional(m.Email),
		Phone:     optional(m.Phone),
		Gender:    optional(m.Gender),
	}

	if m.DateOfBirth != "" {
		d, err := riigikogu.ParseDateIn(m.DateOfBirth, r.p.loc)
		if err != nil {
			r.sink.Log(errlog.Entry{
				Type:       errlog.DataParsing,
				Message:    "Failed to parse date of birth: " + err.Error(),
				EntityType: "politician",
				EntityID:   m.UUID,
				EntityName: fullName,
				Details:    map[string]any{"date_of_birth": m.DateOfBirth},
			})
		} else {
			in.DateOfBirth = &d
		}
	}

	if m.Seniority != nil {
		years := seniorityYears(*m.Seniority)
		in.ParliamentSeniority = &years
	}
	return in, true
}

func (r *run) membership(m riigikogu.Member, f riigikogu.Faction) database.Membership {
	return database.Membership{
		FactionUUID: f.UUID,
		FactionName: strings.TrimSpace(f.Name),
		StartDate:   r.factionDate(m, f, f.StartDate),
		EndDate:     r.factionDate(m, f, f.EndDate),
	}
}

func (r *run) factionDate(m riigikogu.Member, f riigikogu.Faction, raw string) *string {
	if raw == "" {
		return nil
	}
	d, err := riigikogu.ParseDateIn(raw, r.p.loc)
	if err != nil {
		r.log.Warn("unparseable faction date", "politician", m.UUID, "faction", f.UUID, "value", raw)
		return nil
	}
	return &d
}

// seniorityYears converts the API's seniority in days to years, rounded to
// one decimal.
func seniorityYears(days float64) float64 {
	return math.Round(days/365.25*10) / 10
}
