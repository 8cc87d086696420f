package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const userAgent = "totenschein-routing"

// ORSProvider geocodes addresses through Nominatim and fetches the driving
// route from openrouteservice. The start address is geocoded once and the
// coordinates are reused for the lifetime of the provider.
type ORSProvider struct {
	client       *http.Client
	logger       *slog.Logger
	nominatimURL string
	orsBaseURL   string
	apiKey       string
	startAddress string

	mu         sync.Mutex
	startCoord *coord
}

type coord struct {
	Lon float64
	Lat float64
}

func NewORSProvider(logger *slog.Logger, nominatimURL, orsBaseURL, apiKey, startAddress string) *ORSProvider {
	return &ORSProvider{
		client:       &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
		nominatimURL: strings.TrimRight(nominatimURL, "/"),
		orsBaseURL:   strings.TrimRight(orsBaseURL, "/"),
		apiKey:       apiKey,
		startAddress: startAddress,
	}
}

// RouteKm returns the one-way driving distance in kilometers, shortest
// route preference. Any transport or lookup failure maps to ErrUnavailable.
func (p *ORSProvider) RouteKm(ctx context.Context, q Query) (float64, error) {
	start, err := p.start(ctx)
	if err != nil {
		return 0, err
	}

	dest := fmt.Sprintf("%s %s, %s %s", q.Street, q.HouseNumber, q.PostalCode, q.City)
	target, err := p.geocode(ctx, dest)
	if err != nil {
		p.logger.Warn("destination geocoding failed", "address", dest, "error", err)
		return 0, ErrUnavailable
	}

	km, err := p.route(ctx, *start, *target)
	if err != nil {
		p.logger.Warn("route lookup failed", "address", dest, "error", err)
		return 0, ErrUnavailable
	}

	p.logger.Info("route resolved", "address", dest, "km", km)
	return km, nil
}

func (p *ORSProvider) start(ctx context.Context) (*coord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startCoord != nil {
		return p.startCoord, nil
	}

	c, err := p.geocode(ctx, p.startAddress)
	if err != nil {
		p.logger.Error("start address geocoding failed", "address", p.startAddress, "error", err)
		return nil, ErrUnavailable
	}
	p.startCoord = c
	return c, nil
}

func (p *ORSProvider) geocode(ctx context.Context, address string) (*coord, error) {
	u := fmt.Sprintf("%s/search?%s", p.nominatimURL, url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("address not found: %s", address)
	}

	var c coord
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &c.Lon); err != nil {
		return nil, fmt.Errorf("bad longitude: %w", err)
	}
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &c.Lat); err != nil {
		return nil, fmt.Errorf("bad latitude: %w", err)
	}
	return &c, nil
}

func (p *ORSProvider) route(ctx context.Context, from, to coord) (float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"coordinates": [][]float64{{from.Lon, from.Lat}, {to.Lon, to.Lat}},
		"preference":  "shortest",
	})
	if err != nil {
		return 0, err
	}

	u := p.orsBaseURL + "/v2/directions/driving-car/geojson"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(string(body)))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("openrouteservice status %d", resp.StatusCode)
	}

	var payload struct {
		Features []struct {
			Properties struct {
				Segments []struct {
					Distance float64 `json:"distance"`
				} `json:"segments"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, err
	}
	if len(payload.Features) == 0 || len(payload.Features[0].Properties.Segments) == 0 {
		return 0, fmt.Errorf("empty route response")
	}

	return payload.Features[0].Properties.Segments[0].Distance / 1000, nil
}
