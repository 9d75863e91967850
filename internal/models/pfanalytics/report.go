package pfanalytics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	reportWindow       = 30 * 24 * time.Hour
	topPagesLimit      = 10
	topBrowsersLimit   = 5
	topCountriesLimit  = 10
	recentVisitorLimit = 20
	recentViewsLimit   = 50
)

type Overview struct {
	TotalPageViews int64 `json:"total_page_views"`
	ViewsToday     int64 `json:"views_today"`
	ViewsThisWeek  int64 `json:"views_this_week"`
	UniqueVisitors int64 `json:"unique_visitors"`
	VisitorsToday  int64 `json:"visitors_today"`
}

type PageStat struct {
	PagePath string `json:"page_path"`
	Views    int64  `json:"views"`
}

type DeviceStat struct {
	DeviceType string `json:"device_type"`
	Count      int64  `json:"count"`
}

type BrowserStat struct {
	Browser string `json:"browser"`
	Count   int64  `json:"count"`
}

type CountryStat struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type DailyViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

// Report regroupe les agrégations du tableau de bord. Chaque requête est
// indépendante, aucune cohérence transactionnelle entre elles.
type Report struct {
	Overview        Overview      `json:"overview"`
	PageStats       []PageStat    `json:"pageStats"`
	DeviceStats     []DeviceStat  `json:"deviceStats"`
	BrowserStats    []BrowserStat `json:"browserStats"`
	CountryStats    []CountryStat `json:"countryStats"`
	RecentVisitors  []Visitor     `json:"recentVisitors"`
	ViewsOverTime   []DailyViews  `json:"viewsOverTime"`
	RecentPageViews []PageView    `json:"recentPageViews"`
}

// GetReport exécute toutes les agrégations du tableau de bord admin
func (as *AnalyticsService) GetReport(ctx context.Context) (*Report, error) {
	if as.db == nil {
		return nil, ErrNotConfigured
	}

	now := as.now().UTC()
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	since := now.Add(-reportWindow)
	db := as.db.WithContext(ctx)

	report := &Report{
		PageStats:       make([]PageStat, 0),
		DeviceStats:     make([]DeviceStat, 0),
		BrowserStats:    make([]BrowserStat, 0),
		CountryStats:    make([]CountryStat, 0),
		RecentVisitors:  make([]Visitor, 0),
		ViewsOverTime:   make([]DailyViews, 0),
		RecentPageViews: make([]PageView, 0),
	}

	overview, err := as.getOverview(db, day, week)
	if err != nil {
		return nil, err
	}
	report.Overview = overview

	err = db.Model(&PageView{}).
		Select("page_path, COUNT(*) as views").
		Where("created_at >= ?", since).
		Group("page_path").
		Order("views DESC").
		Limit(topPagesLimit).
		Scan(&report.PageStats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting top pages: %w", err)
	}

	err = db.Model(&PageView{}).
		Select("device_type, COUNT(*) as count").
		Where("created_at >= ? AND device_type IS NOT NULL", since).
		Group("device_type").
		Order("count DESC").
		Scan(&report.DeviceStats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting device stats: %w", err)
	}

	err = db.Model(&PageView{}).
		Select("browser, COUNT(*) as count").
		Where("created_at >= ? AND browser IS NOT NULL", since).
		Group("browser").
		Order("count DESC").
		Limit(topBrowsersLimit).
		Scan(&report.BrowserStats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting browser stats: %w", err)
	}

	err = db.Model(&PageView{}).
		Select("country, COUNT(*) as count").
		Where("created_at >= ? AND country IS NOT NULL", since).
		Group("country").
		Order("count DESC").
		Limit(topCountriesLimit).
		Scan(&report.CountryStats).Error
	if err != nil {
		return nil, fmt.Errorf("error getting country stats: %w", err)
	}

	err = db.Order("last_visit DESC").
		Limit(recentVisitorLimit).
		Find(&report.RecentVisitors).Error
	if err != nil {
		return nil, fmt.Errorf("error getting recent visitors: %w", err)
	}

	report.ViewsOverTime, err = as.getViewsOverTime(db, week)
	if err != nil {
		return nil, fmt.Errorf("error getting views over time: %w", err)
	}

	err = db.Order("created_at DESC").
		Order("id DESC").
		Limit(recentViewsLimit).
		Find(&report.RecentPageViews).Error
	if err != nil {
		return nil, fmt.Errorf("error getting recent page views: %w", err)
	}

	return report, nil
}

func (as *AnalyticsService) getOverview(db *gorm.DB, day, week time.Time) (Overview, error) {
	var o Overview

	if err := db.Model(&PageView{}).Count(&o.TotalPageViews).Error; err != nil {
		return o, fmt.Errorf("error counting page views: %w", err)
	}
	if err := db.Model(&PageView{}).Where("created_at >= ?", day).Count(&o.ViewsToday).Error; err != nil {
		return o, fmt.Errorf("error counting page views of the day: %w", err)
	}
	if err := db.Model(&PageView{}).Where("created_at >= ?", week).Count(&o.ViewsThisWeek).Error; err != nil {
		return o, fmt.Errorf("error counting page views of the week: %w", err)
	}
	if err := db.Model(&Visitor{}).Count(&o.UniqueVisitors).Error; err != nil {
		return o, fmt.Errorf("error counting visitors: %w", err)
	}
	if err := db.Model(&Visitor{}).Where("last_visit >= ?", day).Count(&o.VisitorsToday).Error; err != nil {
		return o, fmt.Errorf("error counting visitors of the day: %w", err)
	}

	return o, nil
}

// getViewsOverTime compte les vues par jour calendaire, un jour sans vue est absent
func (as *AnalyticsService) getViewsOverTime(db *gorm.DB, since time.Time) ([]DailyViews, error) {
	day := dayExpression(as.db.Dialector.Name())

	rows := make([]DailyViews, 0)
	err := db.Model(&PageView{}).
		Select(day+" as date, COUNT(*) as views").
		Where("created_at >= ?", since).
		Group(day).
		Order("date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for i := range rows {
		if len(rows[i].Date) > 10 {
			rows[i].Date = rows[i].Date[:10]
		}
	}
	return rows, nil
}

// dayExpression renvoie le jour de created_at au format YYYY-MM-DD selon la base
func dayExpression(dialect string) string {
	switch dialect {
	case "postgres":
		return "TO_CHAR(DATE(created_at), 'YYYY-MM-DD')"
	case "mysql":
		return "DATE_FORMAT(created_at, '%Y-%m-%d')"
	default:
		return "DATE(created_at)"
	}
}
