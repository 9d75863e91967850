package pfgeo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"portfolio/internal/pfconfig"

	"github.com/rs/zerolog/log"
)

// Location est le résultat d'une géolocalisation, un champ nil est inconnu
type Location struct {
	Country *string
	City    *string
}

// Locator géolocalise une ip. Les appels sont best-effort: l'appelant ignore
// les erreurs et garde une Location vide.
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

var ErrNoData = errors.New("no geolocation data")

// ShouldLocate indique si une ip mérite une recherche: les valeurs absentes,
// loopback, privées ou non routables sont ignorées.
func ShouldLocate(ip string) bool {
	switch ip {
	case "", "Unknown", "::1", "127.0.0.1":
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	return !(addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsUnspecified() ||
		addr.IsMulticast())
}

// New construit le Locator décrit par la configuration. Le Closer est non nil
// quand une ressource (base mmdb) doit être libérée à l'arrêt.
func New(cfg pfconfig.GeoConfig) (Locator, io.Closer, error) {
	switch cfg.Provider {
	case "none":
		log.Info().Msg("géolocalisation désactivée")
		return nil, nil, nil
	case "maxmind":
		m, err := OpenMaxMind(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case "", "http":
		return NewHTTPLocator(cfg.Url, cfg.Timeout), nil, nil
	}
	return nil, nil, fmt.Errorf("geo provider inconnu: %s", cfg.Provider)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
