package address

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "totenschein-address-check"

// NominatimVerifier resolves the entered address through the Nominatim
// search API and compares the returned fields with the input.
type NominatimVerifier struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

func NewNominatimVerifier(logger *slog.Logger, baseURL string) *NominatimVerifier {
	return &NominatimVerifier{
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type nominatimHit struct {
	Address struct {
		Road        string `json:"road"`
		Pedestrian  string `json:"pedestrian"`
		Footway     string `json:"footway"`
		HouseNumber string `json:"house_number"`
		Postcode    string `json:"postcode"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
	} `json:"address"`
}

func (v *NominatimVerifier) Verify(ctx context.Context, street, houseNumber, postalCode, city string) Result {
	u := fmt.Sprintf("%s/search?%s", v.baseURL, url.Values{
		"q":              {fmt.Sprintf("%s %s %s %s", street, houseNumber, postalCode, city)},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {"1"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return unreachable(v.logger, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		return unreachable(v.logger, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unreachable(v.logger, fmt.Errorf("status %d", resp.StatusCode))
	}

	var hits []nominatimHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		v.logger.Warn("address service returned invalid payload", "error", err)
		return Result{
			Status:  StatusUnavailable,
			Message: "Adressdienst liefert ungueltige Antwort, Adresse wurde ohne Pruefung uebernommen.",
		}
	}

	// No hit at all blocks the save.
	if len(hits) == 0 {
		return Result{Status: StatusInvalid, Message: "Adresse nicht gefunden."}
	}

	addr := hits[0].Address
	foundStreet := firstNonEmpty(addr.Road, addr.Pedestrian, addr.Footway)
	foundCity := firstNonEmpty(addr.City, addr.Town, addr.Village)

	var deviations []string
	compareField(&deviations, "Strasse", street, foundStreet)
	compareField(&deviations, "Hausnummer", houseNumber, addr.HouseNumber)
	compareField(&deviations, "PLZ", postalCode, addr.Postcode)
	compareField(&deviations, "Ort", city, foundCity)

	// Deviations are a soft fail: the operator sees them but may save.
	if len(deviations) > 0 {
		return Result{Status: StatusUnavailable, Message: strings.Join(deviations, " ")}
	}

	return Result{Status: StatusValid}
}

func unreachable(logger *slog.Logger, err error) Result {
	logger.Warn("address service unreachable", "error", err)
	return Result{
		Status:  StatusUnavailable,
		Message: "Adressdienst aktuell nicht erreichbar, Adresse wurde ohne Pruefung uebernommen.",
	}
}

func compareField(deviations *[]string, label, entered, found string) {
	if entered == "" {
		return
	}
	if found == "" {
		*deviations = append(*deviations, fmt.Sprintf("%s konnte vom Adressdienst nicht bestimmt werden.", label))
		return
	}
	if norm(entered) != norm(found) {
		*deviations = append(*deviations, fmt.Sprintf("%s stimmt nicht ueberein (gefunden: %s).", label, found))
	}
}

// norm trims, lowercases and collapses whitespace for comparison.
func norm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
