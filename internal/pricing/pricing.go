// Package pricing resolves the effective unit price of a catalog item at a
// point in time. It is pure: no side effects, no shared state.
package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dquispe/tienda/internal/domain"
)

// Resolve returns the unit price (minor units) in effect for p at the given
// wall-clock time.
//
// The offer price applies when the offer flag is set, an offer price is
// present, and either no daily window is configured or at falls inside it.
// A window with start > end wraps across midnight: "22:00"-"02:00" is active
// from 22:00 through midnight and again until 02:00. Both endpoints are
// inclusive. A half-configured or unparseable window is treated as absent,
// so the offer applies around the clock.
func Resolve(p *domain.Product, at time.Time) int64 {
	if !p.OfferActive || p.OfferPrice == nil {
		return p.Price
	}
	if p.OfferStart == nil || p.OfferEnd == nil {
		return *p.OfferPrice
	}

	start, errS := parseMinutes(*p.OfferStart)
	end, errE := parseMinutes(*p.OfferEnd)
	if errS != nil || errE != nil {
		return *p.OfferPrice
	}

	now := at.Hour()*60 + at.Minute()
	if withinWindow(now, start, end) {
		return *p.OfferPrice
	}
	return p.Price
}

// OfferActiveAt reports whether the offer price would apply at the given time.
func OfferActiveAt(p *domain.Product, at time.Time) bool {
	return p.OfferActive && p.OfferPrice != nil && Resolve(p, at) == *p.OfferPrice
}

func withinWindow(now, start, end int) bool {
	if start <= end {
		return now >= start && now <= end
	}
	// Window spans midnight.
	return now >= start || now <= end
}

// ValidateWindow checks an offer window as submitted by an admin. Both
// endpoints must be set together, and each must be a valid "HH:MM" value.
func ValidateWindow(start, end *string) error {
	if (start == nil) != (end == nil) {
		return fmt.Errorf("offer window requires both start and end")
	}
	if start == nil {
		return nil
	}
	if _, err := parseMinutes(*start); err != nil {
		return fmt.Errorf("offer window start: %w", err)
	}
	if _, err := parseMinutes(*end); err != nil {
		return fmt.Errorf("offer window end: %w", err)
	}
	return nil
}

// parseMinutes converts "HH:MM" into minutes since midnight.
func parseMinutes(v string) (int, error) {
	h, m, ok := strings.Cut(v, ":")
	if !ok {
		return 0, fmt.Errorf("malformed time of day %q", v)
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("malformed hour in %q", v)
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("malformed minute in %q", v)
	}
	return hours*60 + minutes, nil
}
