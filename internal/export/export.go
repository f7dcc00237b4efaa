// Package export writes the canonical contact set to a tabular file.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/contactkit/mailharvest/internal/contact"
	"github.com/contactkit/mailharvest/internal/logging"
	"github.com/contactkit/mailharvest/internal/metrics"
)

// sheetName is the worksheet holding the contact table.
const sheetName = "Contacts"

// timestampLayout embeds the collection time in filenames so repeated
// runs never overwrite a prior export.
const timestampLayout = "20060102_150405"

var header = []string{"First Name", "Last Name", "Full Name", "Email", "Role", "Source"}

// Config controls the export location and format.
type Config struct {
	Format      string // xlsx or csv
	OutputDir   string
	FallbackDir string // empty means the OS temp dir
	FilePrefix  string
}

// Exporter serializes canonical records, retrying once at a fallback
// location when the primary write fails.
type Exporter struct {
	cfg Config
	log *logging.Logger
}

// New builds an Exporter.
func New(cfg Config, log *logging.Logger) *Exporter {
	return &Exporter{cfg: cfg, log: log.Export()}
}

// Export writes records in order and returns the written path. Only a
// failure of both the primary and fallback writes is returned as an
// error.
func (e *Exporter) Export(records []contact.Record, now time.Time) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ExportDuration.Observe(time.Since(start).Seconds())
	}()

	name := fmt.Sprintf("%s_%s.%s", e.cfg.FilePrefix, now.Format(timestampLayout), e.cfg.Format)

	primary := filepath.Join(e.cfg.OutputDir, name)
	err := e.write(records, primary)
	if err == nil {
		metrics.ContactsExported.Set(float64(len(records)))
		return primary, nil
	}

	e.log.Warn("primary export failed, retrying at fallback", "path", primary, "error", err.Error())
	metrics.ExportFallbacks.Inc()

	fallbackDir := e.cfg.FallbackDir
	if fallbackDir == "" {
		fallbackDir = os.TempDir()
	}
	fallback := filepath.Join(fallbackDir, name)
	if ferr := e.write(records, fallback); ferr != nil {
		metrics.RecordError("export", "write")
		return "", errors.Join(
			fmt.Errorf("primary export to %s: %w", primary, err),
			fmt.Errorf("fallback export to %s: %w", fallback, ferr),
		)
	}
	metrics.ContactsExported.Set(float64(len(records)))
	return fallback, nil
}

func (e *Exporter) write(records []contact.Record, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	switch e.cfg.Format {
	case "csv":
		return writeCSV(records, path)
	default:
		return writeXLSX(records, path)
	}
}

func writeXLSX(records []contact.Record, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &row); err != nil {
		return err
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{rec.FirstName, rec.LastName, rec.FullName, rec.Email, rec.Role, rec.Source}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeCSV(records []contact.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.FirstName, rec.LastName, rec.FullName, rec.Email, rec.Role, rec.Source}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
