package export

import (
	"path/filepath"
	"testing"
	"time"

	"fixora/internal/config"
	"fixora/internal/models"
	"fixora/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExporterBookings(t *testing.T) {
	dir := t.TempDir()
	e := New(config.ExportConfig{Path: dir}, true, nil)
	e.now = func() time.Time { return time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC) }

	final := 1200.0
	items := []*models.Booking{
		{
			ID: "b1", ServiceTitle: "Cleaning service", Status: models.StatusCompleted, Price: &final,
			Customer: models.Party{ID: "u1", Name: "Asha"}, ScheduledAt: time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC),
			DurationHours: 2,
		},
		{
			ID: "b2", ServiceTitle: "Plumbing service", Status: models.StatusInProgress,
			ScheduledAt: time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC), DurationHours: 3,
		},
	}
	earnings := service.EarningsFor(items, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC), 2)

	path, err := e.Bookings("My bookings", items, &earnings)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2026-10-14_09-30-00.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{bookingsSheet, earningsSheet}, f.GetSheetList())

	get := func(sheet, cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "My bookings", get(bookingsSheet, "A1"))
	assert.Equal(t, "Status", get(bookingsSheet, "H2"))
	assert.Equal(t, "b1", get(bookingsSheet, "A3"))
	assert.Equal(t, "Asha", get(bookingsSheet, "C3"))
	assert.Equal(t, "₹1,200", get(bookingsSheet, "I3"))
	assert.Equal(t, "Unknown", get(bookingsSheet, "C4"))
	assert.Equal(t, "in progress", get(bookingsSheet, "H4"))
	assert.Equal(t, "₹1,500", get(bookingsSheet, "I4"))

	assert.Equal(t, "Oct 2026", get(earningsSheet, "A3"))
	assert.Equal(t, "1200", get(earningsSheet, "B3"))
	assert.Equal(t, "This month", get(earningsSheet, "A4"))
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "#C6EFCE", statusColor(models.StatusCompleted))
	assert.Equal(t, "#FFC7CE", statusColor(models.StatusCancelled))
	assert.Equal(t, "#FFEB9C", statusColor(models.StatusPending))
}
