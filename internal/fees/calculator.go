// Package fees computes the billable line items for a death certification
// per the GOÄ fee schedule, including time, weekend and travel surcharges.
package fees

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wlbr/feiertage"
)

// Fee schedule amounts in EUR.
var (
	baseExamination = decimal.RequireFromString("165.77")
	materials       = decimal.RequireFromString("3.50")
	eveningCharge   = decimal.RequireFromString("15.15")
	nightCharge     = decimal.RequireFromString("26.23")
	weekendCharge   = decimal.RequireFromString("19.82")
	extraEffort     = decimal.RequireFromString("27.63")
	perKmRate       = decimal.RequireFromString("0.26")

	// Wegegeld by distance bucket, day rate then night rate.
	travelDay   = mustAmounts("3.58", "6.65", "10.23", "15.34")
	travelNight = mustAmounts("7.16", "10.23", "15.34", "25.56")
)

func mustAmounts(s ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(s))
	for i, v := range s {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

// ComputeInput carries the order attributes the fee schedule depends on.
type ComputeInput struct {
	// Date is the certification date; only year, month and day are read.
	Date time.Time

	// Hour and Minute are the certification wall-clock time.
	Hour   int
	Minute int

	// DistanceKm is the one-way route distance to the examination site.
	// Fractional kilometers decide bucket membership.
	DistanceKm float64

	ExtraEffort bool
}

// LineItem is one billed position on an invoice.
type LineItem struct {
	Code        string
	Description string
	Amount      decimal.Decimal
}

// Breakdown is the ordered result of a fee computation.
type Breakdown struct {
	Items []LineItem
	Total decimal.Decimal
}

// Calculator derives invoice line items from order attributes. It is a pure
// function of its input: no clock, no storage, no external calls.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute builds the ordered line items and the rounded total.
func (c *Calculator) Compute(in ComputeInput) (Breakdown, error) {
	if in.Hour < 0 || in.Hour > 23 || in.Minute < 0 || in.Minute > 59 {
		return Breakdown{}, fmt.Errorf("invalid time of day: %02d:%02d", in.Hour, in.Minute)
	}
	if in.DistanceKm < 0 {
		return Breakdown{}, fmt.Errorf("negative distance: %v km", in.DistanceKm)
	}

	items := []LineItem{
		{Code: "101", Description: "Untersuchung eines Toten, Leichenschau", Amount: baseExamination},
		{Code: "A", Description: "Auslagen und Versandmaterial", Amount: materials},
	}

	clock := in.Hour*60 + in.Minute
	switch {
	case isEvening(clock):
		items = append(items, LineItem{Code: "F", Description: "Zuschlag F (20-22 Uhr / 6-8 Uhr)", Amount: eveningCharge})
	case isNight(clock):
		items = append(items, LineItem{Code: "G", Description: "Zuschlag G (22-6 Uhr)", Amount: nightCharge})
	}

	if isWeekendOrHoliday(in.Date) {
		items = append(items, LineItem{Code: "H", Description: "Zuschlag H (Samstag, Sonntag, Feiertag)", Amount: weekendCharge})
	}

	items = append(items, travelItem(in.DistanceKm, clock))

	if in.ExtraEffort {
		items = append(items, LineItem{Code: "ZA", Description: "Erhoehter Aufwand", Amount: extraEffort})
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}

	return Breakdown{Items: items, Total: total.Round(2)}, nil
}

// isEvening reports the Zuschlag F band: [20:00,22:00) and (06:00,08:00].
func isEvening(clock int) bool {
	return (clock >= 20*60 && clock < 22*60) || (clock > 6*60 && clock <= 8*60)
}

// isNight reports the Zuschlag G band: 22:00 and later, 06:00 and earlier.
// The two bands are disjoint.
func isNight(clock int) bool {
	return clock >= 22*60 || clock <= 6*60
}

// isTravelDay reports the Wegegeld day tariff window [08:00,20:00]. It is
// wider than the surcharge bands and evaluated independently of them.
func isTravelDay(clock int) bool {
	return clock >= 8*60 && clock <= 20*60
}

func isWeekendOrHoliday(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return isBavarianHoliday(date)
}

func isBavarianHoliday(date time.Time) bool {
	for _, f := range feiertage.Bayern(date.Year()).Feiertage {
		if f.Year() == date.Year() && f.Month() == date.Month() && f.Day() == date.Day() {
			return true
		}
	}
	return false
}

func travelItem(km float64, clock int) LineItem {
	day := isTravelDay(clock)

	if km >= 25 {
		// Round-trip compensation at the per-kilometer rate.
		amount := decimal.NewFromFloat(km).Mul(decimal.NewFromInt(2)).Mul(perKmRate).Round(2)
		return LineItem{Code: "WEG", Description: "Wegegeld ueber 25 km", Amount: amount}
	}

	rates := travelNight
	if day {
		rates = travelDay
	}

	var bucket int
	var label string
	switch {
	case km < 2:
		bucket, label = 0, "bis 2 km"
	case km < 5:
		bucket, label = 1, "bis 5 km"
	case km < 10:
		bucket, label = 2, "bis 10 km"
	default:
		bucket, label = 3, "bis 25 km"
	}

	tariff := "Tag"
	if !day {
		tariff = "Nacht"
	}
	return LineItem{
		Code:        "WEG",
		Description: fmt.Sprintf("Wegegeld %s (%s)", label, tariff),
		Amount:      rates[bucket],
	}
}
