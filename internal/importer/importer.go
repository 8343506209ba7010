// Package importer reads lead exports (XLSX or CSV) and maps them onto
// raw leads for normalization and bulk upsert. Header names are matched
// loosely so exports from different portal versions all load.
package importer

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/glenross/fundly-bot/internal/scrape"
)

// Options configures the lead file reader.
type Options struct {
	// SheetName selects an XLSX sheet by name; the first sheet when empty.
	SheetName string
}

// ReadFile loads leads from an .xlsx or .csv export.
func ReadFile(path string, opts Options) ([]scrape.RawLead, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, opts)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "importer: open csv")
		}
		defer f.Close()
		return ReadCSV(f)
	default:
		return nil, eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadXLSX loads leads from an XLSX export.
func ReadXLSX(path string, opts Options) ([]scrape.RawLead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open xlsx")
	}

	var sheet *xlsx.Sheet
	if opts.SheetName != "" {
		s, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", opts.SheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("importer: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	var header []string
	var rows [][]string
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	return leadsFromRows(header, rows)
}

// ReadCSV loads leads from a CSV export. The first record is the header.
func ReadCSV(r io.Reader) ([]scrape.RawLead, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "importer: read csv header")
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "importer: read csv row")
		}
		rows = append(rows, record)
	}
	return leadsFromRows(header, rows)
}

// fieldSetters maps a normalized header name onto the raw lead field it
// fills. Multiple aliases may target the same field; the first matching
// column in the file wins.
var fieldSetters = map[string]func(*scrape.RawLead, string){
	"fundly id":        func(l *scrape.RawLead, v string) { l.FundlyID = v },
	"id":               func(l *scrape.RawLead, v string) { l.FundlyID = v },
	"lead id":          func(l *scrape.RawLead, v string) { l.FundlyID = v },
	"contact name":     func(l *scrape.RawLead, v string) { l.ContactName = v },
	"name":             func(l *scrape.RawLead, v string) { l.ContactName = v },
	"full name":        func(l *scrape.RawLead, v string) { l.ContactName = v },
	"email":            func(l *scrape.RawLead, v string) { l.Email = v },
	"phone":            func(l *scrape.RawLead, v string) { l.Phone = v },
	"background info":  func(l *scrape.RawLead, v string) { l.BackgroundInfo = v },
	"background":       func(l *scrape.RawLead, v string) { l.BackgroundInfo = v },
	"use of funds":     func(l *scrape.RawLead, v string) { l.UseOfFunds = v },
	"location":         func(l *scrape.RawLead, v string) { l.Location = v },
	"urgency":          func(l *scrape.RawLead, v string) { l.Urgency = v },
	"time in business": func(l *scrape.RawLead, v string) { l.TimeInBusiness = v },
	"bank account":     func(l *scrape.RawLead, v string) { l.BankAccount = v },
	"annual revenue":   func(l *scrape.RawLead, v string) { l.AnnualRevenue = v },
	"industry":         func(l *scrape.RawLead, v string) { l.Industry = v },
	"exclusive":        func(l *scrape.RawLead, v string) { l.Exclusive = parseBool(v) },
	"locked":           func(l *scrape.RawLead, v string) { l.Exclusive = parseBool(v) },
}

func leadsFromRows(header []string, rows [][]string) ([]scrape.RawLead, error) {
	setters := make([]func(*scrape.RawLead, string), len(header))
	matched := 0
	for i, h := range header {
		if set, ok := fieldSetters[normalizeHeader(h)]; ok {
			setters[i] = set
			matched++
		}
	}
	if matched == 0 {
		return nil, eris.New("importer: no recognized columns in header")
	}

	var leads []scrape.RawLead
	for _, row := range rows {
		var lead scrape.RawLead
		filled := false
		for i, v := range row {
			if i >= len(setters) || setters[i] == nil {
				continue
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			setters[i](&lead, v)
			filled = true
		}
		if filled && lead.FundlyID != "" {
			leads = append(leads, lead)
		}
	}
	return leads, nil
}

// normalizeHeader lower-cases a header cell and collapses punctuation so
// "Time_In_Business" and "Time in Business" match the same field.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}
