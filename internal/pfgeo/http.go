package pfgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"portfolio/internal/pfconfig"
	"strings"
	"time"
)

// HTTPLocator interroge un service json du type ipapi.co
type HTTPLocator struct {
	client    *http.Client
	urlFormat string
	timeout   time.Duration
}

type ipapiResponse struct {
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// NewHTTPLocator prend un format d'url contenant un %s pour l'ip
func NewHTTPLocator(urlFormat string, timeout time.Duration) *HTTPLocator {
	if urlFormat == "" {
		urlFormat = pfconfig.DefaultGeoUrl
	}
	if timeout <= 0 {
		timeout = pfconfig.DefaultGeoTimeout
	}
	return &HTTPLocator{
		client:    &http.Client{},
		urlFormat: urlFormat,
		timeout:   timeout,
	}
}

func (h *HTTPLocator) Locate(ctx context.Context, ip string) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	endpoint := fmt.Sprintf(h.urlFormat, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Location{}, fmt.Errorf("geo lookup: status %d", resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("geo lookup: %w", err)
	}
	// ipapi répond 200 avec error=true quand le quota est dépassé
	if body.Error {
		return Location{}, fmt.Errorf("geo lookup: %s", body.Reason)
	}

	loc := Location{
		Country: optional(strings.TrimSpace(body.CountryName)),
		City:    optional(strings.TrimSpace(body.City)),
	}
	if loc.Country == nil && loc.City == nil {
		return loc, ErrNoData
	}
	return loc, nil
}
