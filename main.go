package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	handlers_admin "portfolio/internal/handlers/admin"
	handlers_analytics "portfolio/internal/handlers/analytics"
	handlers_contact "portfolio/internal/handlers/contact"
	"portfolio/internal/models/pfanalytics"
	"portfolio/internal/models/pfcontacts"
	"portfolio/internal/pfconfig"
	"portfolio/internal/pfdatabase"
	"portfolio/internal/pfgeo"
	"portfolio/internal/pfjobs"
	"portfolio/internal/pflog"
	"portfolio/internal/pfmetrics"
	"portfolio/internal/pfmiddleware"
	"portfolio/internal/pfredis"
	"portfolio/internal/pfstatic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	VERSION         string = "0.1.0"
	shutdownTimeout        = 10 * time.Second
	healthTimeout          = 2 * time.Second
)

var BuildID string

// app regroupe les dépendances construites au démarrage
type app struct {
	config    *pfconfig.Config
	db        *gorm.DB
	contacts  pfcontacts.Store
	analytics *pfanalytics.AnalyticsService
	tracker   *pfstatic.Tracker
	redis     *redis.Client
	geoCloser io.Closer
}

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return "", true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func initConfiguration() *pfconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  portfolio -config portfolio.yaml")
		fmt.Println("  portfolio -example  (pour créer un fichier exemple)")
		fmt.Println("  portfolio -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		fmt.Println(BuildID)
		os.Exit(0)
	}

	pfconfig.CreateExample(shouldCreateExample, configFile)

	conf, err := pfconfig.Load(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return conf
}

// newApp ouvre les ressources externes. Seule une base configurée mais
// injoignable est fatale, geo et redis se désactivent sur erreur.
func newApp(conf *pfconfig.Config) (*app, error) {
	a := &app{config: conf}

	db, err := pfdatabase.Open(conf.Database, conf.Logger.Level)
	switch {
	case errors.Is(err, pfdatabase.ErrNotConfigured):
		log.Warn().Str("file", conf.Contacts.File).Msg("Pas de base configurée, contacts stockés dans un fichier JSON")
		a.contacts = pfcontacts.NewFileStore(conf.Contacts.File)
	case err != nil:
		return nil, err
	default:
		a.db = db
		a.contacts = pfcontacts.NewGormStore(db)
	}

	locator, closer, err := pfgeo.New(conf.Geo)
	if err != nil {
		log.Error().Err(err).Msg("géolocalisation désactivée")
	}
	a.geoCloser = closer

	rdb, err := pfredis.New(conf.Analytics.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis indisponible, compteurs temps réel désactivés")
	}
	a.redis = rdb

	opts := []pfanalytics.Option{}
	if locator != nil {
		opts = append(opts, pfanalytics.WithLocator(locator))
	}
	if rdb != nil {
		opts = append(opts, pfanalytics.WithRedis(rdb))
	}
	a.analytics = pfanalytics.NewAnalyticsService(a.db, opts...)

	a.tracker, err = pfstatic.NewTracker()
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

func (a *app) close() {
	if err := pfdatabase.Close(a.db); err != nil {
		log.Error().Err(err).Msg("fermeture database")
	}
	if a.geoCloser != nil {
		if err := a.geoCloser.Close(); err != nil {
			log.Error().Err(err).Msg("fermeture base geoip")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error().Err(err).Msg("fermeture redis")
		}
	}
}

func newServer(conf *pfconfig.Config) *gin.Engine {
	if conf.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if conf.TrustedProxies != nil {
		r.SetTrustedProxies(conf.TrustedProxies)
	}
	if conf.TrustedPlatform != "" {
		switch conf.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = conf.TrustedPlatform
		}
	}

	return r
}

func (a *app) setRoutes(r *gin.Engine) {
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	contactHandler := handlers_contact.NewContactHandler(a.contacts)
	analyticsHandler := handlers_analytics.NewAnalyticsHandler(a.analytics)
	contactsHandler := handlers_admin.NewContactsHandler(a.contacts)

	// Routes statiques
	r.GET("/static/tracker.js", a.tracker.Serve)
	r.GET("/resume", pfstatic.ResumeHandler(a.config.StaticPath))

	// API publiques
	api := r.Group("/api")
	{
		api.GET("/health", a.healthHandler)
		api.POST("/contact", contactHandler.Submit)
		api.POST("/analytics/track", analyticsHandler.Track)
	}

	// API d'administration, le message d'erreur diffère selon la ressource
	admin := api.Group("/admin")
	{
		admin.GET("/contacts", pfmiddleware.AdminRequired(a.config.Admin.Hash, "Unauthorized access"), contactsHandler.ListContacts)

		stats := admin.Group("/analytics", pfmiddleware.AdminRequired(a.config.Admin.Hash, "Unauthorized"))
		stats.GET("", analyticsHandler.GetReport)
		stats.GET("/realtime", analyticsHandler.GetRealtimeStats)
	}
}

func (a *app) healthHandler(c *gin.Context) {
	database := false
	if a.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := pfdatabase.Ping(ctx, a.db); err != nil {
			pflog.Ctx(ctx).Warn().Err(err).Msg("database ping failed")
		} else {
			database = true
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": database})
}

func (a *app) router() *gin.Engine {
	r := newServer(a.config)
	pfmiddleware.InitMiddleware(r)
	a.setRoutes(r)
	return r
}

func (a *app) digestCounter() pfjobs.PageViewCounter {
	if a.db == nil {
		return nil
	}
	return a.analytics
}

func startServer(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Arrêt du serveur demandé")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf := initConfiguration()
	pflog.InitLogger(conf.Logger, conf.Production)
	pfconfig.DisplayConfiguration(conf, BuildID)

	a, err := newApp(conf)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation impossible")
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := pfjobs.NewScheduler(conf.Analytics.Digest, pfjobs.NewDigest(a.digestCounter(), a.contacts))
	if err != nil {
		log.Fatal().Err(err).Msg("planification du digest impossible")
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	if conf.Listen.Metrics != "" {
		metrics := pfmetrics.NewServer(conf.Listen.Metrics)
		log.Printf("Metrics disponible sur http://%s/metrics", conf.Listen.Metrics)
		go func() {
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("serveur metrics arrêté")
			}
		}()
		defer metrics.Close()
	}

	srv := &http.Server{
		Addr:              conf.Listen.Website,
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("Website démarré sur http://%s", conf.Listen.Website)
	if err := startServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("serveur http arrêté")
	}
}
