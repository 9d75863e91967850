package pfanalytics

import (
	"context"
	"errors"
	"fmt"
	"portfolio/internal/pfgeo"
	"portfolio/internal/pflog"
	"portfolio/internal/pfmetrics"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotConfigured = errors.New("database not configured")
	ErrMissingPath   = errors.New("page_path is required")
)

const maxVisitorIDLength = 64

type AnalyticsService struct {
	db      *gorm.DB
	locator pfgeo.Locator
	redis   *redis.Client
	now     func() time.Time
}

type Option func(*AnalyticsService)

// WithLocator active la géolocalisation des ip
func WithLocator(l pfgeo.Locator) Option {
	return func(as *AnalyticsService) { as.locator = l }
}

// WithRedis active les compteurs temps réel
func WithRedis(client *redis.Client) Option {
	return func(as *AnalyticsService) { as.redis = client }
}

func WithClock(now func() time.Time) Option {
	return func(as *AnalyticsService) { as.now = now }
}

// NewAnalyticsService accepte une base nil: l'ingestion répond alors ErrNotConfigured
func NewAnalyticsService(db *gorm.DB, opts ...Option) *AnalyticsService {
	as := &AnalyticsService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(as)
	}
	return as
}

func (as *AnalyticsService) Configured() bool {
	return as.db != nil
}

// Track enrichit l'évènement puis enregistre la vue de page et met à jour le visiteur.
// La géolocalisation et redis sont best-effort et n'échouent jamais l'appel.
func (as *AnalyticsService) Track(ctx context.Context, ev Event) error {
	if as.db == nil {
		return ErrNotConfigured
	}
	ev.PagePath = strings.TrimSpace(ev.PagePath)
	if ev.PagePath == "" {
		return ErrMissingPath
	}
	if ev.UserAgent == "" {
		ev.UserAgent = Unknown
	}
	if ev.IPAddress == "" {
		ev.IPAddress = Unknown
	}
	ev.VisitorID = truncateVisitorID(ev.VisitorID)

	ua := ParseUserAgent(ev.UserAgent)
	loc := as.locate(ctx, ev.IPAddress)
	now := as.now().UTC()

	pageView := PageView{
		PagePath:     ev.PagePath,
		Referrer:     ev.Referrer,
		UserAgent:    ev.UserAgent,
		IPAddress:    ev.IPAddress,
		Country:      loc.Country,
		City:         loc.City,
		DeviceType:   ua.Device,
		Browser:      ua.Browser,
		OS:           ua.OS,
		ScreenWidth:  ev.ScreenWidth,
		ScreenHeight: ev.ScreenHeight,
		Language:     ev.Language,
		CreatedAt:    now,
	}

	db := as.db.WithContext(ctx)
	if err := db.Create(&pageView).Error; err != nil {
		return fmt.Errorf("error recording page view: %w", err)
	}

	if ev.VisitorID != "" {
		visitor := Visitor{
			VisitorID:  ev.VisitorID,
			IPAddress:  ev.IPAddress,
			Country:    loc.Country,
			City:       loc.City,
			UserAgent:  ev.UserAgent,
			DeviceType: ua.Device,
			Browser:    ua.Browser,
			OS:         ua.OS,
			FirstVisit: now,
			LastVisit:  now,
			VisitCount: 1,
		}
		if err := as.upsertVisitor(db, &visitor, now); err != nil {
			return fmt.Errorf("error upserting visitor: %w", err)
		}
	}

	pfmetrics.PageViews.Inc()
	as.incrementRealtime(ctx, ev.VisitorID, now)
	return nil
}

// upsertVisitor s'appuie sur l'upsert natif de la base, pas de verrou applicatif.
// country/city ne sont remplacés que par une valeur non nulle.
func (as *AnalyticsService) upsertVisitor(db *gorm.DB, visitor *Visitor, now time.Time) error {
	excluded := func(column string) string {
		if as.db.Dialector.Name() == "mysql" {
			return "VALUES(" + column + ")"
		}
		return "excluded." + column
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "visitor_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "last_visit"}, Value: now},
			{Column: clause.Column{Name: "visit_count"}, Value: gorm.Expr("visitors.visit_count + 1")},
			{Column: clause.Column{Name: "ip_address"}, Value: gorm.Expr(excluded("ip_address"))},
			{Column: clause.Column{Name: "user_agent"}, Value: gorm.Expr(excluded("user_agent"))},
			{Column: clause.Column{Name: "device_type"}, Value: gorm.Expr(excluded("device_type"))},
			{Column: clause.Column{Name: "browser"}, Value: gorm.Expr(excluded("browser"))},
			{Column: clause.Column{Name: "os"}, Value: gorm.Expr(excluded("os"))},
			{Column: clause.Column{Name: "country"}, Value: gorm.Expr("COALESCE(" + excluded("country") + ", visitors.country)")},
			{Column: clause.Column{Name: "city"}, Value: gorm.Expr("COALESCE(" + excluded("city") + ", visitors.city)")},
		},
	}).Create(visitor).Error
}

func (as *AnalyticsService) locate(ctx context.Context, ip string) pfgeo.Location {
	if as.locator == nil || !pfgeo.ShouldLocate(ip) {
		pfmetrics.GeoLookups.WithLabelValues("skipped").Inc()
		return pfgeo.Location{}
	}

	loc, err := as.locator.Locate(ctx, ip)
	if err != nil {
		pfmetrics.GeoLookups.WithLabelValues("failed").Inc()
		pflog.Ctx(ctx).Debug().Err(err).Str("ip", ip).Msg("géolocalisation impossible")
		return pfgeo.Location{}
	}
	pfmetrics.GeoLookups.WithLabelValues("ok").Inc()
	return loc
}

// truncateVisitorID borne l'id à maxVisitorIDLength octets sans couper un caractère
func truncateVisitorID(id string) string {
	if len(id) <= maxVisitorIDLength {
		return id
	}
	n := maxVisitorIDLength
	for n > 0 && !utf8.RuneStart(id[n]) {
		n--
	}
	return id[:n]
}

// CountSince compte les vues de page depuis t, utilisé par le digest
func (as *AnalyticsService) CountSince(ctx context.Context, t time.Time) (int64, error) {
	if as.db == nil {
		return 0, ErrNotConfigured
	}
	var count int64
	err := as.db.WithContext(ctx).Model(&PageView{}).Where("created_at >= ?", t.UTC()).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("error counting page views: %w", err)
	}
	return count, nil
}
