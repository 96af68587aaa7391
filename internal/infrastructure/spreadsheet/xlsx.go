// Package spreadsheet maps member records to and from xlsx workbooks.
//
// Columns are identified by the header row, so their order in an imported
// file does not matter:
//
//	Nom | Email | Téléphone | Adresse | Statut | Rôle | Doc | Memo
package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// ExportFileName is the download name of an export.
const ExportFileName = "export_membres.xlsx"

// ContentType is the MIME type of xlsx files.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	colName    = "Nom"
	colEmail   = "Email"
	colPhone   = "Téléphone"
	colAddress = "Adresse"
	colStatus  = "Statut"
	colRole    = "Rôle"
	colDoc     = "Doc"
	colMemo    = "Memo"

	exportSheet = "Membres"
)

var header = []string{colName, colEmail, colPhone, colAddress, colStatus, colRole, colDoc, colMemo}

// XLSX is the excelize-backed codec.
type XLSX struct{}

func NewXLSX() *XLSX { return &XLSX{} }

// Decode reads the first sheet of the workbook. The first row is the header;
// each following non-blank row becomes one record.
func (XLSX) Decode(r io.Reader) ([]domain.MemberRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrEmptySpreadsheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSpreadsheet, err)
	}
	if len(rows) < 2 {
		return nil, domain.ErrEmptySpreadsheet
	}

	cols := indexHeader(rows[0])
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no known column in header row", domain.ErrInvalidSpreadsheet)
	}

	records := make([]domain.MemberRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, RowToRecord(func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}))
	}
	if len(records) == 0 {
		return nil, domain.ErrEmptySpreadsheet
	}
	return records, nil
}

// Encode writes records to a single-sheet workbook with a header row.
func (XLSX) Encode(records []domain.MemberRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("export: header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		row := RecordToRow(rec)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return buf.Bytes(), nil
}

// RowToRecord builds a record from the cells of one row, looked up by
// header name. Status, role and doc fall back to Inactif, membre and none.
func RowToRecord(cell func(column string) string) domain.MemberRecord {
	return domain.MemberRecord{
		Name:    cell(colName),
		Email:   cell(colEmail),
		Phone:   cell(colPhone),
		Address: cell(colAddress),
		Status:  domain.ParseStatus(cell(colStatus)),
		Role:    domain.ParseRole(cell(colRole)),
		Doc:     domain.ParseDoc(cell(colDoc)),
		Memo:    cell(colMemo),
	}
}

// RecordToRow returns the cells of rec in header order.
func RecordToRow(rec domain.MemberRecord) []interface{} {
	return []interface{}{
		rec.Name,
		rec.Email,
		rec.Phone,
		rec.Address,
		string(rec.Status),
		string(rec.Role),
		string(rec.Doc),
		rec.Memo,
	}
}

func indexHeader(row []string) map[string]int {
	known := make(map[string]bool, len(header))
	for _, h := range header {
		known[h] = true
	}
	cols := make(map[string]int)
	for i, h := range row {
		h = strings.TrimSpace(h)
		if _, dup := cols[h]; known[h] && !dup {
			cols[h] = i
		}
	}
	return cols
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
