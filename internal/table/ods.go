package table

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// odsContentPath is the spreadsheet body inside an .ods zip.
const odsContentPath = "content.xml"

// maxRepeat bounds number-columns-repeated and number-rows-repeated for
// non-empty cells and rows. Spreadsheet tools pad sheets with huge repeat
// counts of empty cells.
const maxRepeat = 1024

// readODS loads the first table of an OpenDocument spreadsheet.
func readODS(path string) (*Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open ODS: not a zip: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open ODS: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		rows, err := parseODSContent(rc)
		if err != nil {
			return nil, fmt.Errorf("parse ODS: %w", err)
		}
		return fromRecords(rows)
	}
	return nil, fmt.Errorf("open ODS: %s not found", odsContentPath)
}

// parseODSContent walks content.xml and returns the cell text of the first
// table, row by row. Elements are matched by local name so documents with or
// without namespace declarations both parse.
func parseODSContent(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)
	var (
		rows      [][]string
		row       []string
		pending   int // empty cells not yet materialized
		rowRepeat int
		cell      strings.Builder
		cellRep   int
		inTable   bool
		inCell    bool
		paras     int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if !inTable {
				return nil, errors.New("no table found")
			}
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				if inTable {
					// nested or second table; only the first is read
					if err := dec.Skip(); err != nil {
						return nil, err
					}
					continue
				}
				inTable = true
			case "table-row":
				if !inTable {
					continue
				}
				row = nil
				pending = 0
				rowRepeat = repeatAttr(t, "number-rows-repeated")
			case "table-cell", "covered-table-cell":
				if !inTable {
					continue
				}
				inCell = true
				cell.Reset()
				paras = 0
				cellRep = repeatAttr(t, "number-columns-repeated")
			case "p":
				if inCell {
					if paras > 0 {
						cell.WriteByte('\n')
					}
					paras++
				}
			case "s":
				if inCell {
					n := repeatAttr(t, "c")
					cell.WriteString(strings.Repeat(" ", n))
				}
			case "tab":
				if inCell {
					cell.WriteByte('\t')
				}
			case "line-break":
				if inCell {
					cell.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inCell {
				cell.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "table":
				if inTable {
					return rows, nil
				}
			case "table-cell", "covered-table-cell":
				if !inCell {
					continue
				}
				inCell = false
				text := cell.String()
				if strings.TrimSpace(text) == "" {
					pending += cellRep
					continue
				}
				for ; pending > 0; pending-- {
					row = append(row, "")
				}
				for i := 0; i < min(cellRep, maxRepeat); i++ {
					row = append(row, text)
				}
			case "table-row":
				if !inTable {
					continue
				}
				if len(row) == 0 {
					continue
				}
				for i := 0; i < min(rowRepeat, maxRepeat); i++ {
					rows = append(rows, append([]string(nil), row...))
				}
			}
		}
	}
}

func repeatAttr(el xml.StartElement, local string) int {
	for _, a := range el.Attr {
		if a.Name.Local != local {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(a.Value))
		if err == nil && n > 0 {
			return n
		}
	}
	return 1
}
