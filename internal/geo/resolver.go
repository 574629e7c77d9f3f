// Package geo resolves coordinates to a city name for registration.
// It queries Nominatim first and falls back to BigDataCloud, caching
// results in Redis so repeated lookups from the same area stay cheap.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anoncity/chat-app/internal/metrics"
)

const (
	defaultNominatimURL    = "https://nominatim.openstreetmap.org/reverse"
	defaultBigDataCloudURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"

	// lookupBudget bounds a full resolve, both providers included.
	lookupBudget = 9 * time.Second

	cacheTTL = 24 * time.Hour
)

// Resolver turns a lat/lng pair into a city name.
type Resolver struct {
	client          *http.Client
	cache           *redis.Client // optional, may be nil
	userAgent       string
	nominatimURL    string
	bigDataCloudURL string
}

// NewResolver builds a Resolver. cache may be nil to disable caching.
// userAgent identifies this service to Nominatim, which requires one.
func NewResolver(cache *redis.Client, userAgent string) *Resolver {
	return &Resolver{
		client:          &http.Client{Timeout: lookupBudget},
		cache:           cache,
		userAgent:       userAgent,
		nominatimURL:    defaultNominatimURL,
		bigDataCloudURL: defaultBigDataCloudURL,
	}
}

// ResolveCity returns the city name for the coordinates. It tries the
// cache, then Nominatim, then BigDataCloud. An error means both
// providers failed.
func (r *Resolver) ResolveCity(ctx context.Context, lat, lng float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupBudget)
	defer cancel()

	key := cacheKey(lat, lng)
	if r.cache != nil {
		if city, err := r.cache.Get(ctx, key).Result(); err == nil && city != "" {
			return city, nil
		}
	}

	city, err := r.fromNominatim(ctx, lat, lng)
	if err != nil {
		metrics.GeoLookupsTotal.WithLabelValues("nominatim", "error").Inc()
		city, err = r.fromBigDataCloud(ctx, lat, lng)
		if err != nil {
			metrics.GeoLookupsTotal.WithLabelValues("bigdatacloud", "error").Inc()
			return "", fmt.Errorf("geo: all providers failed: %w", err)
		}
		metrics.GeoLookupsTotal.WithLabelValues("bigdatacloud", "ok").Inc()
	} else {
		metrics.GeoLookupsTotal.WithLabelValues("nominatim", "ok").Inc()
	}

	city = normalize(city)
	if r.cache != nil && city != "" {
		r.cache.Set(ctx, key, city, cacheTTL)
	}
	return city, nil
}

type nominatimResponse struct {
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
	} `json:"address"`
}

func (r *Resolver) fromNominatim(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))
	q.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.nominatimURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: nominatim status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	a := body.Address
	city := first(a.City, a.Town, a.Village, a.Municipality, a.County)
	if city == "" {
		city = "Unknown"
	}
	return city, nil
}

type bigDataCloudResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
}

func (r *Resolver) fromBigDataCloud(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", lat))
	q.Set("longitude", fmt.Sprintf("%f", lng))
	q.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.bigDataCloudURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: bigdatacloud status %d", resp.StatusCode)
	}

	var body bigDataCloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	city := first(body.City, body.Locality, body.PrincipalSubdivision)
	if city == "" {
		return "", fmt.Errorf("geo: bigdatacloud returned no locality")
	}
	return city, nil
}

// cacheKey rounds coordinates to ~100m so nearby lookups share entries.
func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("geo:city:%.3f:%.3f", lat, lng)
}

func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
