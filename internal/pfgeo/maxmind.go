package pfgeo

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/oschwald/geoip2-golang/v2"
	"github.com/rs/zerolog/log"
)

// MaxMindLocator lit une base GeoLite2-City locale, sans appel réseau
type MaxMindLocator struct {
	reader *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ouverture base geoip %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("GeoLite2 database initialized")
	return &MaxMindLocator{reader: reader}, nil
}

func (m *MaxMindLocator) Locate(ctx context.Context, ip string) (Location, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Location{}, err
	}

	record, err := m.reader.City(addr)
	if err != nil {
		return Location{}, fmt.Errorf("geoip lookup: %w", err)
	}
	if !record.HasData() {
		return Location{}, ErrNoData
	}

	return Location{
		Country: optional(record.Country.Names.English),
		City:    optional(record.City.Names.English),
	}, nil
}

func (m *MaxMindLocator) Close() error {
	return m.reader.Close()
}
