package pfanalytics

import (
	"context"
	"errors"
	"fmt"
	"portfolio/internal/pflog"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRealtimeDisabled = errors.New("realtime counters not configured")

// les clés journalières survivent un mois
const realtimeRetention = 31 * 24 * time.Hour

type RealtimeStats struct {
	TodayPageViews      int64 `json:"today_page_views"`
	TodayUniqueVisitors int64 `json:"today_unique_visitors"`
}

func dailyKey(day string) string {
	return fmt.Sprintf("analytics:daily:%s", day)
}

func visitorsKey(day string) string {
	return fmt.Sprintf("analytics:visitors:%s", day)
}

// incrementRealtime met à jour les compteurs redis, les erreurs sont seulement loguées
func (as *AnalyticsService) incrementRealtime(ctx context.Context, visitorID string, now time.Time) {
	if as.redis == nil {
		return
	}
	day := now.Format("2006-01-02")

	pipe := as.redis.TxPipeline()
	pipe.HIncrBy(ctx, dailyKey(day), "page_views", 1)
	pipe.Expire(ctx, dailyKey(day), realtimeRetention)
	if visitorID != "" {
		pipe.SAdd(ctx, visitorsKey(day), visitorID)
		pipe.Expire(ctx, visitorsKey(day), realtimeRetention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		pflog.Ctx(ctx).Warn().Err(err).Msg("mise à jour des compteurs redis impossible")
	}
}

// GetRealtimeStats lit les compteurs du jour depuis redis
func (as *AnalyticsService) GetRealtimeStats(ctx context.Context) (*RealtimeStats, error) {
	if as.redis == nil {
		return nil, ErrRealtimeDisabled
	}
	day := as.now().UTC().Format("2006-01-02")

	pageViews, err := as.redis.HGet(ctx, dailyKey(day), "page_views").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	uniqueVisitors, err := as.redis.SCard(ctx, visitorsKey(day)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return &RealtimeStats{
		TodayPageViews:      pageViews,
		TodayUniqueVisitors: uniqueVisitors,
	}, nil
}
