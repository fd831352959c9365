// Package geo resolves visitor IP addresses to a city and country.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	customerrors "github.com/axellelanca/sitepulse/internal/errors"
)

// Location is the resolved position of an IP address.
type Location struct {
	City        string `json:"city"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// UnknownLocation is returned whenever the upstream lookup fails.
var UnknownLocation = Location{City: "Unknown", Country: "Unknown", CountryCode: "XX"}

// LocalCities are handed out at random to local and private traffic so the
// dashboard shows plausible data in development and behind internal proxies.
var LocalCities = []string{"Tbilisi", "Batumi", "Kutaisi", "Rustavi", "Zugdidi", "Gori", "Poti", "Telavi"}

const (
	localCountry     = "Georgia"
	localCountryCode = "GE"
)

// DefaultTimeout bounds a single upstream lookup.
const DefaultTimeout = 3 * time.Second

// Resolver resolves IPs through a cache in front of an ip-api compatible HTTP endpoint.
type Resolver struct {
	cache      Cache
	httpClient *http.Client
	endpoint   string // URL template, %s is replaced by the IP
	timeout    time.Duration
}

// NewResolver creates a Resolver. endpoint is a URL template with a single %s for the IP.
func NewResolver(cache Cache, endpoint string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		cache:      cache,
		httpClient: &http.Client{},
		endpoint:   endpoint,
		timeout:    timeout,
	}
}

// Cache exposes the resolver's cache so the presence monitor can sweep it.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// Resolve never fails: local traffic gets a random local city, lookup failures
// get UnknownLocation.
func (r *Resolver) Resolve(ctx context.Context, ip string) Location {
	ip = strings.TrimSpace(ip)
	if IsLocal(ip) {
		return randomLocalLocation()
	}

	if loc, ok := r.cache.Get(ip); ok {
		return loc
	}

	loc, err := r.lookup(ctx, ip)
	if err != nil {
		log.Printf("[GEO] %v", err)
		return UnknownLocation
	}
	r.cache.Set(ip, loc)
	return loc
}

// IsLocal reports whether ip is empty, "unknown", loopback or in a private range.
func IsLocal(ip string) bool {
	if ip == "" || strings.EqualFold(ip, "unknown") || ip == "::1" {
		return true
	}
	for _, prefix := range []string{"127.", "192.168.", "10."} {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && (parsed.IsLoopback() || parsed.IsPrivate())
}

func randomLocalLocation() Location {
	return Location{
		City:        LocalCities[rand.Intn(len(LocalCities))],
		Country:     localCountry,
		CountryCode: localCountryCode,
	}
}

type lookupResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
}

func (r *Resolver) lookup(ctx context.Context, ip string) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(r.endpoint, url.PathEscape(ip)), nil)
	if err != nil {
		return Location{}, customerrors.ErrGeoLookupFailed{IP: ip, Reason: err.Error()}
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Location{}, customerrors.ErrGeoLookupFailed{IP: ip, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, customerrors.ErrGeoLookupFailed{IP: ip, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, customerrors.ErrGeoLookupFailed{IP: ip, Reason: "invalid response: " + err.Error()}
	}
	// ip-api answers 200 with status "fail" for reserved ranges and bad queries
	if body.Status != "" && body.Status != "success" {
		return Location{}, customerrors.ErrGeoLookupFailed{IP: ip, Reason: body.Message}
	}

	loc := Location{City: body.City, Country: body.Country, CountryCode: body.CountryCode}
	if loc.City == "" {
		loc.City = UnknownLocation.City
	}
	if loc.Country == "" {
		loc.Country = UnknownLocation.Country
	}
	if loc.CountryCode == "" {
		loc.CountryCode = UnknownLocation.CountryCode
	}
	return loc, nil
}
