package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fixora/internal/config"
	"fixora/internal/logging"
	"fixora/internal/models"
	"fixora/internal/service"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	earningsSheet = "Earnings"
)

var bookingHeaders = []string{
	"ID", "Service", "Customer", "Provider", "Scheduled", "Hours", "Address", "Status", "Price", "Notes",
}

// Exporter writes booking views to xlsx workbooks.
type Exporter struct {
	dir      string
	estimate bool
	logger   *zerolog.Logger
	now      func() time.Time
}

// New creates an exporter writing into cfg.Path. estimate controls whether
// unpriced rows show the hourly estimate.
func New(cfg config.ExportConfig, estimate bool, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		dir:      cfg.Path,
		estimate: estimate,
		logger:   logging.Component(logger, "export"),
		now:      time.Now,
	}
}

// Bookings writes items to a new workbook and returns its path. When
// earnings is not nil a second sheet with the monthly totals is added.
func (e *Exporter) Bookings(title string, items []*models.Booking, earnings *service.Earnings) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.SetCellValue(bookingsSheet, "A1", title)
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	e.writeHeaders(f)
	e.writeRows(f, items)

	widths := []float64{26, 24, 20, 20, 18, 8, 32, 14, 12, 32}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(bookingsSheet, col, col, w)
	}

	if earnings != nil {
		if err := writeEarnings(f, earnings); err != nil {
			return "", err
		}
	}

	_ = f.DeleteSheet("Sheet1")

	name := fmt.Sprintf("bookings_%s.xlsx", e.now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", path).Int("rows", len(items)).Msg("Excel file created")
	return path, nil
}

func (e *Exporter) writeHeaders(f *excelize.File) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, h)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, style)
	}
}

func (e *Exporter) writeRows(f *excelize.File, items []*models.Booking) {
	styles := make(map[string]int)
	for i, b := range items {
		row := i + 3
		values := []any{
			b.ID,
			b.ServiceTitle,
			b.CustomerDisplayName(),
			b.ProviderDisplayName(),
			b.ScheduledAt.Format("02 Jan 2006 15:04"),
			b.DurationHours,
			b.Address,
			b.Status.Label(),
			models.DisplayPrice(b, e.estimate),
			b.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}

		color := statusColor(b.Status)
		id, ok := styles[color]
		if !ok {
			var err error
			id, err = f.NewStyle(&excelize.Style{
				Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
				Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
			})
			if err != nil {
				e.logger.Error().Err(err).Msg("Error creating row style")
				continue
			}
			styles[color] = id
		}
		statusCell, _ := excelize.CoordinatesToCellName(8, row)
		_ = f.SetCellStyle(bookingsSheet, statusCell, statusCell, id)
	}
}

func writeEarnings(f *excelize.File, earnings *service.Earnings) error {
	if _, err := f.NewSheet(earningsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.SetCellValue(earningsSheet, "A1", "Month")
	_ = f.SetCellValue(earningsSheet, "B1", "Earnings")
	for i, m := range earnings.Months {
		row := i + 2
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("A%d", row), m.Label)
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("B%d", row), m.Amount)
	}
	total := len(earnings.Months) + 2
	_ = f.SetCellValue(earningsSheet, fmt.Sprintf("A%d", total), "This month")
	_ = f.SetCellValue(earningsSheet, fmt.Sprintf("B%d", total), earnings.ThisMonth)
	_ = f.SetColWidth(earningsSheet, "A", "B", 16)
	return nil
}

// statusColor is the fill for the status cell: yellow while waiting, blue
// while running, green when done, red when dropped.
func statusColor(s models.Status) string {
	switch s {
	case models.StatusPending, models.StatusAccepted:
		return "#FFEB9C"
	case models.StatusInProgress:
		return "#DDEBF7"
	case models.StatusCompleted:
		return "#C6EFCE"
	case models.StatusRejected, models.StatusCancelled:
		return "#FFC7CE"
	default:
		return "#FFFFFF"
	}
}
