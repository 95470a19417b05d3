package dateutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWindow(t *testing.T) {
	tests := []struct {
		name     string
		window   Window
		wantDays []string
		wantErr  error
	}{
		{
			name:     "single date",
			window:   Window{Mode: WindowSingle, Date: "2024-03-01"},
			wantDays: []string{"2024-03-01"},
		},
		{
			name:     "single empty date",
			window:   Window{Mode: WindowSingle},
			wantDays: []string{},
		},
		{
			name:     "range",
			window:   Window{Mode: WindowRange, Start: "2024-03-01", End: "2024-03-03"},
			wantDays: []string{"2024-03-01", "2024-03-02", "2024-03-03"},
		},
		{
			name:     "range single day",
			window:   Window{Mode: WindowRange, Start: "2024-03-01", End: "2024-03-01"},
			wantDays: []string{"2024-03-01"},
		},
		{
			name:    "range start after end",
			window:  Window{Mode: WindowRange, Start: "2024-03-05", End: "2024-03-01"},
			wantErr: ErrInvalidRange,
		},
		{
			name:     "range across month boundary",
			window:   Window{Mode: WindowRange, Start: "2024-02-28", End: "2024-03-01"},
			wantDays: []string{"2024-02-28", "2024-02-29", "2024-03-01"},
		},
		{
			name:     "explicit list with duplicates and gaps",
			window:   Window{Mode: WindowList, Dates: []string{"2024-04-10", "2024-04-01", "2024-04-10"}},
			wantDays: []string{"2024-04-01", "2024-04-10"},
		},
		{
			name:     "empty list",
			window:   Window{Mode: WindowList},
			wantDays: []string{},
		},
		{
			name:    "bad day key",
			window:  Window{Mode: WindowSingle, Date: "01/03/2024"},
			wantErr: ErrInvalidDay,
		},
		{
			name:     "unknown mode yields empty set",
			window:   Window{Mode: "weekly"},
			wantDays: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := NormalizeWindow(tt.window)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantDays, set.Sorted())
		})
	}
}

func TestDaySetIntersects(t *testing.T) {
	a, err := RangeDays("2024-03-01", "2024-03-03")
	assert.NoError(t, err)
	b, err := RangeDays("2024-03-03", "2024-03-05")
	assert.NoError(t, err)
	c, err := RangeDays("2024-03-04", "2024-03-06")
	assert.NoError(t, err)

	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a), "intersection must be symmetric")
	assert.False(t, a.Intersects(c))
	assert.False(t, c.Intersects(a))

	empty := DaySet{}
	assert.False(t, empty.Intersects(a))
	assert.False(t, a.Intersects(empty))
}

func TestDaySetBounds(t *testing.T) {
	set, err := NormalizeWindow(Window{Mode: WindowList, Dates: []string{"2024-04-10", "2024-04-01", "2024-04-05"}})
	assert.NoError(t, err)

	min, max := set.Bounds()
	assert.Equal(t, "2024-04-01", min)
	assert.Equal(t, "2024-04-10", max)

	min, max = DaySet{}.Bounds()
	assert.Empty(t, min)
	assert.Empty(t, max)
}

func TestAddWeeks(t *testing.T) {
	// 26 weeks = 182 days of civil-date arithmetic, not month math.
	got, err := AddWeeks("2024-01-10", 26)
	assert.NoError(t, err)
	assert.Equal(t, "2024-07-10", got)

	got, err = AddWeeks("2024-05-01", 52)
	assert.NoError(t, err)
	assert.Equal(t, "2025-04-30", got)
}

func TestAddDaysAcrossDSTBoundary(t *testing.T) {
	// Civil-date arithmetic must not shift a day even when the local
	// timezone has a DST transition inside the range.
	got, err := AddDays("2024-03-30", 2)
	assert.NoError(t, err)
	assert.Equal(t, "2024-04-01", got)
}

func TestNormalizeResourceKey(t *testing.T) {
	assert.Equal(t, "ford transit", NormalizeResourceKey("  Ford   Transit "))
	assert.Equal(t, "ford transit", NormalizeResourceKey("ford transit"))
	assert.Equal(t, "kx67 abc", NormalizeResourceKey("KX67  ABC"))
	assert.Equal(t, "", NormalizeResourceKey("   "))
}
