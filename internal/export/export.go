package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/xuri/excelize/v2"
)

const (
	isoMillis   = "2006-01-02T15:04:05.000Z"
	localLayout = "1/2/2006, 3:04:05 PM"

	readingsSheet = "readings"
)

var readingsHeader = []string{"Timestamp", "Voltage (V)", "Current (A)", "Power (W)"}

// ReadingsCSV writes one row per reading with UTC millisecond timestamps.
func ReadingsCSV(w io.Writer, readings []monitor.SensorReading) error {
	errFactory := errors.New()

	cw := csv.NewWriter(w)
	if err := cw.Write(readingsHeader); err != nil {
		return errFactory.Wrap(errors.ErrExport, err)
	}
	for _, r := range readings {
		row := []string{
			r.Timestamp.UTC().Format(isoMillis),
			fmt.Sprintf("%.2f", r.Voltage),
			fmt.Sprintf("%.2f", r.Current),
			fmt.Sprintf("%.2f", r.Power),
		}
		if err := cw.Write(row); err != nil {
			return errFactory.Wrap(errors.ErrExport, err)
		}
	}
	cw.Flush()

	if err := cw.Error(); err != nil {
		return errFactory.Wrap(errors.ErrExport, err)
	}
	return nil
}

// AlertsText writes "{time} - {SEVERITY}: {message}" lines, times in loc.
func AlertsText(w io.Writer, alerts []monitor.Alert, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, alertLine(a, loc))
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return errors.New().Wrap(errors.ErrExport, err)
	}
	return nil
}

func alertLine(a monitor.Alert, loc *time.Location) string {
	return fmt.Sprintf("%s - %s: %s",
		a.Timestamp.In(loc).Format(localLayout),
		strings.ToUpper(string(a.Severity)),
		a.Message)
}

// AlertsPDF renders an alert report.
func AlertsPDF(alerts []monitor.Alert, generated time.Time, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Smart Grid Alert Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.In(loc).Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(alerts)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(98, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.CellFormat(15, 6, "Ack", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, a := range alerts {
		ack := "no"
		if a.Acknowledged {
			ack = "yes"
		}
		pdf.CellFormat(45, 6, a.Timestamp.In(loc).Format(localLayout), "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, strings.ToUpper(string(a.Severity)), "1", 0, "C", false, 0, "")
		pdf.CellFormat(98, 6, a.Message, "1", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, ack, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.New().Wrap(errors.ErrExport, err)
	}
	return buf.Bytes(), nil
}

// ReadingsXLSX renders the readings as a single-sheet workbook.
func ReadingsXLSX(readings []monitor.SensorReading) ([]byte, error) {
	errFactory := errors.New()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", readingsSheet); err != nil {
		return nil, errFactory.Wrap(errors.ErrExport, err)
	}

	for i, h := range readingsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(readingsSheet, cell, h)
	}
	for i, r := range readings {
		row := i + 2
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("A%d", row), r.Timestamp.UTC().Format(isoMillis))
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("B%d", row), r.Voltage)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("C%d", row), r.Current)
		_ = f.SetCellValue(readingsSheet, fmt.Sprintf("D%d", row), r.Power)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errFactory.Wrap(errors.ErrExport, err)
	}
	return buf.Bytes(), nil
}
