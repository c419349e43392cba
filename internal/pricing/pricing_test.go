package pricing

import (
	"testing"
	"time"

	"github.com/dquispe/tienda/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func TestResolve_NoOffer(t *testing.T) {
	p := &domain.Product{Price: 1250}
	assert.Equal(t, int64(1250), Resolve(p, at(8, 0)))
}

func TestResolve_OfferFlagWithoutPrice(t *testing.T) {
	p := &domain.Product{Price: 1250, OfferActive: true}
	assert.Equal(t, int64(1250), Resolve(p, at(8, 0)))
}

func TestResolve_OfferWithoutWindow_AlwaysActive(t *testing.T) {
	p := &domain.Product{Price: 1250, OfferActive: true, OfferPrice: ptr(int64(500))}
	assert.Equal(t, int64(500), Resolve(p, at(3, 0)))
	assert.Equal(t, int64(500), Resolve(p, at(23, 59)))
}

func TestResolve_WindowedOffer(t *testing.T) {
	p := &domain.Product{
		Price:       1250,
		OfferActive: true,
		OfferPrice:  ptr(int64(500)),
		OfferStart:  ptr("07:00"),
		OfferEnd:    ptr("10:00"),
	}

	assert.Equal(t, int64(500), Resolve(p, at(8, 0)), "inside window")
	assert.Equal(t, int64(1250), Resolve(p, at(11, 0)), "after window")
	assert.Equal(t, int64(1250), Resolve(p, at(6, 59)), "before window")

	// Endpoints are inclusive.
	assert.Equal(t, int64(500), Resolve(p, at(7, 0)))
	assert.Equal(t, int64(500), Resolve(p, at(10, 0)))
}

func TestResolve_WindowSpanningMidnight(t *testing.T) {
	p := &domain.Product{
		Price:       1000,
		OfferActive: true,
		OfferPrice:  ptr(int64(700)),
		OfferStart:  ptr("22:00"),
		OfferEnd:    ptr("02:00"),
	}

	assert.Equal(t, int64(700), Resolve(p, at(23, 30)), "late evening")
	assert.Equal(t, int64(700), Resolve(p, at(0, 30)), "after midnight")
	assert.Equal(t, int64(700), Resolve(p, at(22, 0)), "start inclusive")
	assert.Equal(t, int64(700), Resolve(p, at(2, 0)), "end inclusive")
	assert.Equal(t, int64(1000), Resolve(p, at(12, 0)), "midday")
	assert.Equal(t, int64(1000), Resolve(p, at(2, 1)), "just past end")
}

func TestResolve_HalfConfiguredWindow_TreatedAsAbsent(t *testing.T) {
	p := &domain.Product{
		Price:       1000,
		OfferActive: true,
		OfferPrice:  ptr(int64(700)),
		OfferStart:  ptr("07:00"),
	}
	assert.Equal(t, int64(700), Resolve(p, at(15, 0)))
}

func TestResolve_OfferNotRequiredToBeLower(t *testing.T) {
	// The system does not enforce discount direction.
	p := &domain.Product{Price: 500, OfferActive: true, OfferPrice: ptr(int64(900))}
	assert.Equal(t, int64(900), Resolve(p, at(12, 0)))
}

func TestOfferActiveAt(t *testing.T) {
	p := &domain.Product{
		Price:       1250,
		OfferActive: true,
		OfferPrice:  ptr(int64(500)),
		OfferStart:  ptr("07:00"),
		OfferEnd:    ptr("10:00"),
	}
	assert.True(t, OfferActiveAt(p, at(8, 0)))
	assert.False(t, OfferActiveAt(p, at(11, 0)))
	assert.False(t, OfferActiveAt(&domain.Product{Price: 100}, at(8, 0)))
}

func TestValidateWindow(t *testing.T) {
	require.NoError(t, ValidateWindow(nil, nil))
	require.NoError(t, ValidateWindow(ptr("07:00"), ptr("10:00")))

	assert.Error(t, ValidateWindow(ptr("07:00"), nil))
	assert.Error(t, ValidateWindow(nil, ptr("10:00")))
	assert.Error(t, ValidateWindow(ptr("7pm"), ptr("10:00")))
	assert.Error(t, ValidateWindow(ptr("24:00"), ptr("10:00")))
	assert.Error(t, ValidateWindow(ptr("07:00"), ptr("07:60")))
}
