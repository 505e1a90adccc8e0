package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeoLookup resolves an IP's coarse location.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// HTTPGeo queries a JSON geolocation endpoint keyed by IP.
type HTTPGeo struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGeo creates a lookup against baseURL (e.g. "http://ip-api.com/json").
func NewHTTPGeo(baseURL string) *HTTPGeo {
	return &HTTPGeo{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type geoResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	City    string `json:"city"`
	Org     string `json:"org"`
	ISP     string `json:"isp"`
	Message string `json:"message"`
}

func (g *HTTPGeo) Lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+ip, nil)
	if err != nil {
		return "", fmt.Errorf("HTTPGeo.Lookup: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPGeo.Lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTPGeo.Lookup: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("HTTPGeo.Lookup: %w", err)
	}

	var geo geoResponse
	if err := json.Unmarshal(body, &geo); err != nil {
		return "", fmt.Errorf("HTTPGeo.Lookup: %w", err)
	}
	if geo.Status != "" && geo.Status != "success" {
		return "", fmt.Errorf("HTTPGeo.Lookup: %s", geo.Message)
	}

	org := geo.Org
	if org == "" {
		org = geo.ISP
	}

	var parts []string
	for _, p := range []string{geo.City, geo.Country, org} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("HTTPGeo.Lookup: empty result for %s", ip)
	}
	return strings.Join(parts, ", "), nil
}
