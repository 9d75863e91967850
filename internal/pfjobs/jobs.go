package pfjobs

import (
	"context"
	"fmt"
	"portfolio/internal/models/pfcontacts"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const digestTimeout = 30 * time.Second

type PageViewCounter interface {
	CountSince(ctx context.Context, t time.Time) (int64, error)
}

// Digest résume les dernières 24h d'activité dans les logs
type Digest struct {
	views    PageViewCounter
	contacts pfcontacts.Store
	now      func() time.Time
}

type DigestResult struct {
	PageViews      int64
	ContactsToday  int64
	ContactsTotal  int64
	PeriodStart    time.Time
	PeriodEnd      time.Time
	PageViewsError error
}

// NewDigest accepte un compteur nil quand aucune base n'est configurée
func NewDigest(views PageViewCounter, contacts pfcontacts.Store) *Digest {
	return &Digest{
		views:    views,
		contacts: contacts,
		now:      time.Now,
	}
}

func (d *Digest) WithClock(now func() time.Time) *Digest {
	d.now = now
	return d
}

func (d *Digest) Run(ctx context.Context) (DigestResult, error) {
	end := d.now().UTC()
	res := DigestResult{PeriodStart: end.Add(-24 * time.Hour), PeriodEnd: end}

	if d.views != nil {
		n, err := d.views.CountSince(ctx, res.PeriodStart)
		if err != nil {
			// les contacts restent utiles même sans les vues
			res.PageViewsError = err
		}
		res.PageViews = n
	}

	stats, err := d.contacts.Stats(ctx)
	if err != nil {
		return res, fmt.Errorf("digest contacts: %w", err)
	}
	res.ContactsToday = stats.Today
	res.ContactsTotal = stats.TotalSubmissions

	return res, nil
}

func (d *Digest) runAndLog() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	res, err := d.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Daily digest failed")
		return
	}

	event := log.Info()
	if res.PageViewsError != nil {
		event = log.Warn().AnErr("page_views_error", res.PageViewsError)
	}
	event.
		Time("from", res.PeriodStart).
		Time("to", res.PeriodEnd).
		Int64("page_views", res.PageViews).
		Int64("contacts_today", res.ContactsToday).
		Int64("contacts_total", res.ContactsTotal).
		Msg("Daily digest")
}

type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler enregistre le digest sur l'expression cron donnée.
// Une expression vide retourne un scheduler sans tâche.
func NewScheduler(schedule string, digest *Digest) (*Scheduler, error) {
	c := cron.New()

	if schedule != "" {
		if _, err := c.AddFunc(schedule, digest.runAndLog); err != nil {
			return nil, fmt.Errorf("expression cron invalide %q: %w", schedule, err)
		}
	}

	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop attend la fin des tâches en cours ou l'expiration du contexte
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
