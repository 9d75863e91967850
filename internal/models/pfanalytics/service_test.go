package pfanalytics

import (
	"context"
	"errors"
	"portfolio/internal/pfgeo"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	edgeUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	publicIP  = "203.0.113.9"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&PageView{}, &Visitor{}))
	return db
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeLocator struct {
	mu    sync.Mutex
	calls []string
	loc   pfgeo.Location
	err   error
}

func (f *fakeLocator) Locate(ctx context.Context, ip string) (pfgeo.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ip)
	return f.loc, f.err
}

func (f *fakeLocator) set(country, city string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loc = pfgeo.Location{}
	if country != "" {
		f.loc.Country = &country
	}
	if city != "" {
		f.loc.City = &city
	}
	f.err = err
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestTrackNotConfigured(t *testing.T) {
	as := NewAnalyticsService(nil)
	assert.False(t, as.Configured())
	assert.ErrorIs(t, as.Track(context.Background(), Event{PagePath: "/"}), ErrNotConfigured)

	_, err := as.GetReport(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTrackMissingPath(t *testing.T) {
	db := setupTestDB(t)
	as := NewAnalyticsService(db)

	assert.ErrorIs(t, as.Track(context.Background(), Event{PagePath: "  "}), ErrMissingPath)

	var count int64
	db.Model(&PageView{}).Count(&count)
	assert.Zero(t, count)
}

func TestTrackRecordsPageView(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	geo := &fakeLocator{}
	geo.set("France", "Lyon", nil)
	as := NewAnalyticsService(db, WithClock(clk.Now), WithLocator(geo))

	err := as.Track(context.Background(), Event{
		PagePath:     "/projects",
		Referrer:     strPtr("https://example.com/"),
		ScreenWidth:  intPtr(1920),
		ScreenHeight: intPtr(1080),
		Language:     strPtr("fr-FR"),
		UserAgent:    edgeUA,
		IPAddress:    publicIP,
	})
	require.NoError(t, err)

	var views []PageView
	require.NoError(t, db.Find(&views).Error)
	require.Len(t, views, 1)
	pv := views[0]
	assert.Equal(t, "/projects", pv.PagePath)
	assert.Equal(t, "Edge", pv.Browser)
	assert.Equal(t, "Windows", pv.OS)
	assert.Equal(t, DeviceDesktop, pv.DeviceType)
	assert.Equal(t, publicIP, pv.IPAddress)
	require.NotNil(t, pv.Country)
	assert.Equal(t, "France", *pv.Country)
	assert.Equal(t, "Lyon", *pv.City)
	assert.Equal(t, 1920, *pv.ScreenWidth)
	assert.Equal(t, "fr-FR", *pv.Language)
	assert.True(t, clk.Now().Equal(pv.CreatedAt))

	// pas de visitor_id, pas de visiteur
	var visitors int64
	db.Model(&Visitor{}).Count(&visitors)
	assert.Zero(t, visitors)
}

func TestTrackDefaultsUnknownHeaders(t *testing.T) {
	db := setupTestDB(t)
	geo := &fakeLocator{}
	as := NewAnalyticsService(db, WithLocator(geo))

	require.NoError(t, as.Track(context.Background(), Event{PagePath: "/"}))

	var pv PageView
	require.NoError(t, db.First(&pv).Error)
	assert.Equal(t, Unknown, pv.UserAgent)
	assert.Equal(t, Unknown, pv.IPAddress)
	assert.Equal(t, Unknown, pv.Browser)
	assert.Empty(t, geo.calls)
}

func TestTrackSkipsLoopbackGeolocation(t *testing.T) {
	db := setupTestDB(t)
	geo := &fakeLocator{}
	geo.set("Nowhere", "", nil)
	as := NewAnalyticsService(db, WithLocator(geo))

	for _, ip := range []string{"127.0.0.1", "::1", "Unknown", "192.168.0.12"} {
		require.NoError(t, as.Track(context.Background(), Event{PagePath: "/", IPAddress: ip, VisitorID: "v-" + ip}))
	}
	assert.Empty(t, geo.calls)

	var withCountry int64
	db.Model(&PageView{}).Where("country IS NOT NULL").Count(&withCountry)
	assert.Zero(t, withCountry)
}

func TestTrackGeolocationFailureIsAbsorbed(t *testing.T) {
	db := setupTestDB(t)
	geo := &fakeLocator{}
	geo.set("", "", errors.New("timeout"))
	as := NewAnalyticsService(db, WithLocator(geo))

	require.NoError(t, as.Track(context.Background(), Event{PagePath: "/", IPAddress: publicIP}))
	assert.Equal(t, []string{publicIP}, geo.calls)

	var pv PageView
	require.NoError(t, db.First(&pv).Error)
	assert.Nil(t, pv.Country)
	assert.Nil(t, pv.City)
}

func TestTrackVisitorUpsert(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	geo := &fakeLocator{}
	as := NewAnalyticsService(db, WithClock(clk.Now), WithLocator(geo))
	ctx := context.Background()
	first := clk.Now()

	geo.set("France", "Lyon", nil)
	require.NoError(t, as.Track(ctx, Event{PagePath: "/", VisitorID: "visitor-1", UserAgent: edgeUA, IPAddress: publicIP}))

	// lookup en échec: le pays connu est conservé
	clk.Advance(time.Hour)
	geo.set("", "", errors.New("rate limited"))
	require.NoError(t, as.Track(ctx, Event{PagePath: "/about", VisitorID: "visitor-1", UserAgent: firefoxUA, IPAddress: "198.51.100.7"}))

	var v Visitor
	require.NoError(t, db.Where("visitor_id = ?", "visitor-1").First(&v).Error)
	assert.Equal(t, int64(2), v.VisitCount)
	assert.True(t, first.Equal(v.FirstVisit))
	assert.True(t, clk.Now().Equal(v.LastVisit))
	assert.Equal(t, "198.51.100.7", v.IPAddress)
	assert.Equal(t, "Firefox", v.Browser)
	assert.Equal(t, "Linux", v.OS)
	require.NotNil(t, v.Country)
	assert.Equal(t, "France", *v.Country)
	assert.Equal(t, "Lyon", *v.City)

	// une nouvelle valeur non nulle remplace l'ancienne
	clk.Advance(time.Hour)
	geo.set("Spain", "", nil)
	require.NoError(t, as.Track(ctx, Event{PagePath: "/", VisitorID: "visitor-1", IPAddress: publicIP}))

	require.NoError(t, db.Where("visitor_id = ?", "visitor-1").First(&v).Error)
	assert.Equal(t, int64(3), v.VisitCount)
	assert.Equal(t, "Spain", *v.Country)
	assert.Equal(t, "Lyon", *v.City)
	assert.True(t, first.Equal(v.FirstVisit))

	var count int64
	db.Model(&Visitor{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestTrackConcurrentSameVisitor(t *testing.T) {
	db := setupTestDB(t)
	as := NewAnalyticsService(db)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- as.Track(context.Background(), Event{PagePath: "/", VisitorID: "shared"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var v Visitor
	require.NoError(t, db.Where("visitor_id = ?", "shared").First(&v).Error)
	assert.Equal(t, int64(n), v.VisitCount)
}

func TestTrackTruncatesVisitorID(t *testing.T) {
	db := setupTestDB(t)
	as := NewAnalyticsService(db)

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, as.Track(context.Background(), Event{PagePath: "/", VisitorID: string(long)}))

	var v Visitor
	require.NoError(t, db.First(&v).Error)
	assert.Len(t, v.VisitorID, maxVisitorIDLength)
}

func TestTruncateVisitorIDKeepsRunes(t *testing.T) {
	ascii := strings.Repeat("a", maxVisitorIDLength)
	assert.Equal(t, ascii, truncateVisitorID(ascii))
	assert.Equal(t, ascii, truncateVisitorID(ascii+"bcd"))

	// "é" tient sur deux octets et chevauche la limite
	multibyte := strings.Repeat("a", maxVisitorIDLength-1) + "éé"
	got := truncateVisitorID(multibyte)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxVisitorIDLength-1), got)

	wide := strings.Repeat("日", 30)
	got = truncateVisitorID(wide)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("日", 21), got)
}

func TestTrackTruncatesMultibyteVisitorID(t *testing.T) {
	db := setupTestDB(t)
	as := NewAnalyticsService(db)

	id := strings.Repeat("a", maxVisitorIDLength-1) + "éé"
	require.NoError(t, as.Track(context.Background(), Event{PagePath: "/", VisitorID: id}))

	var v Visitor
	require.NoError(t, db.First(&v).Error)
	assert.True(t, utf8.ValidString(v.VisitorID))
	assert.Len(t, v.VisitorID, maxVisitorIDLength-1)
}

func TestCountSince(t *testing.T) {
	db := setupTestDB(t)
	clk := newClock()
	as := NewAnalyticsService(db, WithClock(clk.Now))
	start := clk.Now()

	require.NoError(t, as.Track(context.Background(), Event{PagePath: "/"}))
	clk.Advance(2 * time.Hour)
	require.NoError(t, as.Track(context.Background(), Event{PagePath: "/"}))

	count, err := as.CountSince(context.Background(), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = NewAnalyticsService(nil).CountSince(context.Background(), start)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRealtimeDisabled(t *testing.T) {
	_, err := NewAnalyticsService(setupTestDB(t)).GetRealtimeStats(context.Background())
	assert.ErrorIs(t, err, ErrRealtimeDisabled)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestTrackRealtimeCounters(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	mr, rdb := setupTestRedis(t)
	as := NewAnalyticsService(setupTestDB(t), WithRedis(rdb), WithClock(clk.Now))

	for _, visitor := range []string{"visitor-a", "visitor-a", "visitor-b"} {
		require.NoError(t, as.Track(ctx, Event{PagePath: "/", VisitorID: visitor}))
	}

	daily := "analytics:daily:2026-10-18"
	visitors := "analytics:visitors:2026-10-18"

	views, err := rdb.HGet(ctx, daily, "page_views").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(3), views)

	members, err := rdb.SMembers(ctx, visitors).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"visitor-a", "visitor-b"}, members)

	assert.Equal(t, realtimeRetention, mr.TTL(daily))
	assert.Equal(t, realtimeRetention, mr.TTL(visitors))

	stats, err := as.GetRealtimeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RealtimeStats{TodayPageViews: 3, TodayUniqueVisitors: 2}, stats)

	// un nouveau jour repart de zéro
	clk.Advance(24 * time.Hour)
	stats, err = as.GetRealtimeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RealtimeStats{}, stats)
}

func TestTrackRealtimeWithoutVisitor(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupTestRedis(t)
	as := NewAnalyticsService(setupTestDB(t), WithRedis(rdb), WithClock(newClock().Now))

	require.NoError(t, as.Track(ctx, Event{PagePath: "/"}))

	stats, err := as.GetRealtimeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TodayPageViews)
	assert.Zero(t, stats.TodayUniqueVisitors)
	assert.False(t, mr.Exists("analytics:visitors:2026-10-18"))
}

func TestTrackSurvivesRedisOutage(t *testing.T) {
	ctx := context.Background()
	mr, rdb := setupTestRedis(t)
	db := setupTestDB(t)
	as := NewAnalyticsService(db, WithRedis(rdb))

	mr.Close()
	require.NoError(t, as.Track(ctx, Event{PagePath: "/", VisitorID: "v"}))

	var count int64
	require.NoError(t, db.Model(&PageView{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err := as.GetRealtimeStats(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRealtimeDisabled)
}
