package service

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-gate-service/internal/config"
	"parking-gate-service/internal/ledger"
)

type mockPlateReader struct {
	ReadPlateFunc func(ctx context.Context, img image.Image) (string, bool, error)
}

func (m *mockPlateReader) ReadPlate(ctx context.Context, img image.Image) (string, bool, error) {
	if m.ReadPlateFunc != nil {
		return m.ReadPlateFunc(ctx, img)
	}
	return "", false, nil
}

func fixedPlate(plate string) *mockPlateReader {
	return &mockPlateReader{
		ReadPlateFunc: func(_ context.Context, _ image.Image) (string, bool, error) {
			return plate, true, nil
		},
	}
}

var testPricing = config.PricingConfig{
	BaseRate:       10.0,
	AdditionalRate: 5.0,
	FreeMinutes:    30,
	PeriodMinutes:  30,
}

func newTestService(t *testing.T, reader PlateReader, exitOffset time.Duration) (*GateService, *ledger.Ledger) {
	t.Helper()
	lgr := ledger.New(filepath.Join(t.TempDir(), "parking_data.json"), zerolog.Nop())
	_, err := lgr.Load()
	require.NoError(t, err)

	svc := NewGateService(reader, lgr, testPricing, exitOffset, zerolog.Nop())
	return svc, lgr
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 64, 64))
}

func TestEnter_NewVehicle(t *testing.T) {
	svc, lgr := newTestService(t, fixedPlate("ABC123"), 0)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	result, err := svc.Enter(context.Background(), testImage())

	require.NoError(t, err)
	assert.Equal(t, "ABC123", result.Plate)
	assert.True(t, result.EntryTime.Equal(now))
	assert.NotEqual(t, [16]byte{}, [16]byte(result.TicketID))

	require.True(t, lgr.Contains("ABC123"))
	entry, _ := lgr.Get("ABC123")
	assert.True(t, entry.EntryTime.Equal(now))
}

func TestEnter_AlreadyParkedIsIdempotentAlert(t *testing.T) {
	svc, lgr := newTestService(t, fixedPlate("ABC123"), 0)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	_, err := svc.Enter(context.Background(), testImage())
	require.NoError(t, err)
	firstEntry, _ := lgr.Get("ABC123")

	svc.WithClock(func() time.Time { return now.Add(10 * time.Minute) })
	_, err = svc.Enter(context.Background(), testImage())

	require.ErrorIs(t, err, ErrAlreadyParked)
	// ledger unchanged: still one vehicle, original entry time kept
	assert.Equal(t, 1, lgr.Len())
	entry, _ := lgr.Get("ABC123")
	assert.True(t, entry.EntryTime.Equal(firstEntry.EntryTime))
}

func TestEnter_UnreadablePlateAborts(t *testing.T) {
	noPlate := &mockPlateReader{
		ReadPlateFunc: func(_ context.Context, _ image.Image) (string, bool, error) {
			return "", false, nil
		},
	}
	svc, lgr := newTestService(t, noPlate, 0)

	_, err := svc.Enter(context.Background(), testImage())

	require.ErrorIs(t, err, ErrNoPlate)
	assert.Equal(t, 0, lgr.Len())
}

func TestEnter_PipelineErrorPropagates(t *testing.T) {
	broken := &mockPlateReader{
		ReadPlateFunc: func(_ context.Context, _ image.Image) (string, bool, error) {
			return "", false, errors.New("detector unreachable")
		},
	}
	svc, lgr := newTestService(t, broken, 0)

	_, err := svc.Enter(context.Background(), testImage())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPlate)
	assert.Equal(t, 0, lgr.Len())
}

func TestExit_ComputesFeeAndFreesSlot(t *testing.T) {
	// simulated 75 minute stay: 10 base + floor((75-30)/30)*5 = 15
	svc, lgr := newTestService(t, fixedPlate("ABC123"), 75*time.Minute)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	_, err := svc.Enter(context.Background(), testImage())
	require.NoError(t, err)

	receipt, err := svc.Exit(context.Background(), testImage())

	require.NoError(t, err)
	assert.Equal(t, "ABC123", receipt.Plate)
	assert.True(t, receipt.EntryTime.Equal(now))
	assert.True(t, receipt.ExitTime.Equal(now.Add(75*time.Minute)))
	assert.InDelta(t, 75.0, receipt.DurationMinutes, 1e-9)
	assert.InDelta(t, 15.0, receipt.Fee, 1e-9)

	assert.False(t, lgr.Contains("ABC123"))
}

func TestExit_UnknownPlateKeepsGateClosed(t *testing.T) {
	svc, lgr := newTestService(t, fixedPlate("XYZ999"), 0)

	_, err := svc.Exit(context.Background(), testImage())

	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, lgr.Len())
}

func TestExit_UnreadablePlateAborts(t *testing.T) {
	noPlate := &mockPlateReader{
		ReadPlateFunc: func(_ context.Context, _ image.Image) (string, bool, error) {
			return "", false, nil
		},
	}
	svc, _ := newTestService(t, noPlate, 0)

	_, err := svc.Exit(context.Background(), testImage())

	require.ErrorIs(t, err, ErrNoPlate)
}

func TestComputeFee(t *testing.T) {
	svc, _ := newTestService(t, fixedPlate("ABC123"), 0)

	testCases := []struct {
		name    string
		minutes float64
		want    float64
	}{
		{name: "short stay flat rate", minutes: 10, want: 10.0},
		{name: "exactly 30 minutes stays flat", minutes: 30.0, want: 10.0},
		{name: "just past the free window", minutes: 30.5, want: 10.0},
		{name: "one full extra period", minutes: 60, want: 15.0},
		{name: "75 minutes", minutes: 75, want: 15.0},
		{name: "two full extra periods", minutes: 95, want: 20.0},
		{name: "long stay", minutes: 300, want: 55.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, svc.computeFee(tc.minutes), 1e-9)
		})
	}
}

func TestOccupancyAndLookup(t *testing.T) {
	svc, _ := newTestService(t, fixedPlate("ABC123"), 0)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	assert.Empty(t, svc.Occupancy())

	_, err := svc.Enter(context.Background(), testImage())
	require.NoError(t, err)

	occupants := svc.Occupancy()
	require.Len(t, occupants, 1)
	assert.Equal(t, "ABC123", occupants[0].Plate)
	assert.True(t, occupants[0].EntryTime.Equal(now))

	occ, err := svc.Lookup("ABC123")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", occ.Plate)

	_, err = svc.Lookup("XYZ999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExit_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parking_data.json")
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	first := ledger.New(path, zerolog.Nop())
	_, err := first.Load()
	require.NoError(t, err)
	svc := NewGateService(fixedPlate("ABC123"), first, testPricing, 75*time.Minute, zerolog.Nop()).
		WithClock(func() time.Time { return now })
	_, err = svc.Enter(context.Background(), testImage())
	require.NoError(t, err)

	// new process: reload the ledger from disk and exit
	second := ledger.New(path, zerolog.Nop())
	res, err := second.Load()
	require.NoError(t, err)
	require.Equal(t, 1, res.Entries)

	svc2 := NewGateService(fixedPlate("ABC123"), second, testPricing, 75*time.Minute, zerolog.Nop()).
		WithClock(func() time.Time { return now })
	receipt, err := svc2.Exit(context.Background(), testImage())

	require.NoError(t, err)
	assert.InDelta(t, 15.0, receipt.Fee, 1e-9)
	assert.False(t, second.Contains("ABC123"))
}
