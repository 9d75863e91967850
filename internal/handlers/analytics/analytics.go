package handlers_analytics

import (
	"errors"
	"net/http"
	"portfolio/internal/models/pfanalytics"
	"portfolio/internal/pflog"
	"portfolio/internal/pfmiddleware"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	service *pfanalytics.AnalyticsService
}

func NewAnalyticsHandler(service *pfanalytics.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

type trackRequest struct {
	PagePath     string  `json:"page_path"`
	Referrer     *string `json:"referrer"`
	ScreenWidth  *int    `json:"screen_width"`
	ScreenHeight *int    `json:"screen_height"`
	Language     *string `json:"language"`
	VisitorID    *string `json:"visitor_id"`
}

// Track enregistre une vue de page envoyée par le tracker. L'appelant ne
// reçoit qu'un booléen success, les détails restent dans les logs.
func (ah *AnalyticsHandler) Track(c *gin.Context) {
	if !ah.service.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Database not configured"})
		return
	}

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}

	ev := pfanalytics.Event{
		PagePath:     req.PagePath,
		Referrer:     emptyToNil(req.Referrer),
		ScreenWidth:  req.ScreenWidth,
		ScreenHeight: req.ScreenHeight,
		Language:     emptyToNil(req.Language),
		UserAgent:    pfmiddleware.UserAgent(c),
		IPAddress:    pfmiddleware.ClientIP(c),
	}
	if req.VisitorID != nil {
		ev.VisitorID = *req.VisitorID
	}

	ctx := c.Request.Context()
	if err := ah.service.Track(ctx, ev); err != nil {
		switch {
		case errors.Is(err, pfanalytics.ErrMissingPath):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, pfanalytics.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Database not configured"})
		default:
			pflog.Ctx(ctx).Error().Err(err).Msg("Analytics tracking error")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetReport retourne les agrégations du tableau de bord admin
func (ah *AnalyticsHandler) GetReport(c *gin.Context) {
	if !ah.service.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not configured"})
		return
	}

	ctx := c.Request.Context()
	report, err := ah.service.GetReport(ctx)
	if err != nil {
		pflog.Ctx(ctx).Error().Err(err).Msg("Analytics fetch error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"overview":        report.Overview,
		"pageStats":       report.PageStats,
		"deviceStats":     report.DeviceStats,
		"browserStats":    report.BrowserStats,
		"countryStats":    report.CountryStats,
		"recentVisitors":  report.RecentVisitors,
		"viewsOverTime":   report.ViewsOverTime,
		"recentPageViews": report.RecentPageViews,
	})
}

// GetRealtimeStats retourne les compteurs du jour tenus dans redis
func (ah *AnalyticsHandler) GetRealtimeStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := ah.service.GetRealtimeStats(ctx)
	if err != nil {
		if errors.Is(err, pfanalytics.ErrRealtimeDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime stats not configured"})
			return
		}
		pflog.Ctx(ctx).Error().Err(err).Msg("Realtime stats error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve realtime stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"today_page_views":      stats.TodayPageViews,
		"today_unique_visitors": stats.TodayUniqueVisitors,
	})
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
