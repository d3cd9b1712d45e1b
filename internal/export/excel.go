// Package export renders appointments as xlsx workbooks.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"barbershop/internal/models"

	"github.com/xuri/excelize/v2"
)

// Source supplies the data for an export.
type Source interface {
	ListBarbers(ctx context.Context) ([]*models.Barber, error)
	GetAppointmentsByDateRange(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
}

type Exporter struct {
	source Source
	dir    string
	loc    *time.Location
}

func NewExporter(source Source, dir string, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{source: source, dir: dir, loc: loc}
}

var columns = []string{"Дата", "Начало", "Конец", "Клиент", "Телефон", "Услуга", "Статус", "Отменил"}

// Write builds a workbook for [from, to] (whole days, inclusive) with one sheet per barber.
func (e *Exporter) Write(ctx context.Context, w io.Writer, from, to time.Time) error {
	f, err := e.build(ctx, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveFile writes the workbook into the export directory and returns its path.
func (e *Exporter) SaveFile(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := e.build(ctx, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := fmt.Sprintf("appointments_%s_to_%s.xlsx", models.DayKey(from), models.DayKey(to))
	path := filepath.Join(e.dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func (e *Exporter) build(ctx context.Context, from, to time.Time) (*excelize.File, error) {
	start := models.StartOfDay(from.In(e.loc))
	end := models.StartOfDay(to.In(e.loc)).AddDate(0, 0, 1)
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range %s..%s: %w", models.DayKey(from), models.DayKey(to), models.ErrInvalidDate)
	}

	barbers, err := e.source.ListBarbers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting barbers: %w", err)
	}
	appts, err := e.source.GetAppointmentsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("error getting appointments: %w", err)
	}

	byBarber := make(map[string][]*models.Appointment)
	for _, a := range appts {
		byBarber[a.BarberID] = append(byBarber[a.BarberID], a)
	}

	f := excelize.NewFile()
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DCE6F1"}, Pattern: 1},
	})
	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006", Strike: true},
	})

	used := make(map[string]bool)
	for _, b := range barbers {
		name := sheetTitle(b, used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("error creating sheet: %w", err)
		}

		for i, c := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(name, cell, c)
		}
		_ = f.SetCellStyle(name, "A1", "H1", headerStyle)

		list := byBarber[b.ID]
		sort.Slice(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })
		for i, a := range list {
			row := i + 2
			local := a.Date.In(e.loc)
			values := []interface{}{
				models.DayKey(local),
				local.Format("15:04"),
				a.End().In(e.loc).Format("15:04"),
				a.ClientName,
				a.ClientPhone,
				a.TreatmentID,
				a.Status,
				a.CancelledBy,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(name, cell, v)
			}
			if a.Status == models.StatusCancelled {
				_ = f.SetCellStyle(name, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), cancelledStyle)
			}
		}
		_ = f.SetColWidth(name, "A", "H", 16)
	}

	if len(barbers) > 0 {
		_ = f.DeleteSheet("Sheet1")
		f.SetActiveSheet(0)
	}
	return f, nil
}

// sheetTitle makes a unique sheet name within excel's 31 character limit.
func sheetTitle(b *models.Barber, used map[string]bool) string {
	base := b.Name
	if base == "" {
		base = b.ID
	}
	if r := []rune(base); len(r) > 28 {
		base = string(r[:28])
	}
	name := base
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s %d", base, i)
	}
	used[name] = true
	return name
}
