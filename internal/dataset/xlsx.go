package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// parseXLSX reads the first worksheet of an Office Open XML workbook.
// Only the pieces the dashboard needs are decoded: the workbook sheet
// list, its relationships, the shared string pool, and the sheet rows.
func parseXLSX(data []byte) ([]string, [][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}

	sheetPath, err := firstSheetPath(zr)
	if err != nil {
		return nil, nil, err
	}

	sheetXML, err := readZipFile(zr, sheetPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read worksheet: %w", err)
	}

	// Shared strings are optional; a workbook of inline values has none.
	sharedXML, _ := readZipFile(zr, "xl/sharedStrings.xml")
	shared := parseSharedStrings(sharedXML)

	rr := newRowReader(sheetXML, shared)
	header, ok := rr.Next()
	if !ok {
		return nil, nil, fmt.Errorf("empty file: no header row")
	}

	var rows [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

// firstSheetPath resolves the zip path of the workbook's first sheet via
// the relationships part, falling back to the conventional location.
func firstSheetPath(zr *zip.Reader) (string, error) {
	wbXML, err := readZipFile(zr, "xl/workbook.xml")
	if err != nil {
		return "", fmt.Errorf("read workbook: %w", err)
	}

	rid := firstSheetRID(wbXML)
	if rid != "" {
		relsXML, err := readZipFile(zr, "xl/_rels/workbook.xml.rels")
		if err == nil {
			if target, ok := relationshipTarget(relsXML, rid); ok {
				return normalizeSheetPath(target), nil
			}
		}
	}

	return "xl/worksheets/sheet1.xml", nil
}

// firstSheetRID returns the relationship id of the first <sheet> entry.
func firstSheetRID(data []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		for _, a := range se.Attr {
			if a.Name.Local == "id" {
				return a.Value
			}
		}
		return ""
	}
}

// relationshipTarget finds the Target of the relationship with the given Id.
func relationshipTarget(data []byte, rid string) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}

		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id == rid && target != "" {
			return target, true
		}
	}
}

// normalizeSheetPath converts a relationship target into a zip entry path.
// Targets may carry a leading slash or be relative to the xl/ directory.
func normalizeSheetPath(target string) string {
	target = strings.TrimPrefix(target, "/")
	if strings.HasPrefix(target, "xl/") {
		return target
	}
	return path.Join("xl", target)
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("zip entry %q not found", name)
}

// parseSharedStrings decodes xl/sharedStrings.xml into its string pool.
// Rich-text runs concatenate their <t> fragments per <si> entry.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		out []string
		buf strings.Builder
		inT bool
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// rowReader streams <row> elements from a worksheet part, resolving
// shared-string cells as it goes.
type rowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newRowReader(data []byte, shared []string) *rowReader {
	return &rowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

// Next returns the cells of the next row. Cell positions come from the
// "r" reference attribute so sparse rows keep their column alignment.
func (r *rowReader) Next() ([]string, bool) {
	var (
		row    []string
		inRow  bool
		maxCol int
	)

	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "row":
				inRow = true
				row = nil
				maxCol = 0
			case "c":
				if !inRow {
					continue
				}
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}

				col := columnIndex(ref)
				if col < 0 {
					col = maxCol
				}
				if col+1 > maxCol {
					maxCol = col + 1
				}

				val := r.cellValue(typ)
				if len(row) <= col {
					grown := make([]string, col+1)
					copy(grown, row)
					row = grown
				}
				row[col] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				if len(row) < maxCol {
					grown := make([]string, maxCol)
					copy(grown, row)
					row = grown
				}
				return row, true
			}
		}
	}
}

// cellValue consumes tokens until the cell closes, collecting the text of
// a <v> (value) or inline <is><t> element.
func (r *rowReader) cellValue(typ string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				val = r.textUntil(se.Name.Local)
			}
		case xml.EndElement:
			if se.Name.Local == "c" {
				if typ == "s" {
					return r.sharedString(val)
				}
				return val
			}
		}
	}
}

// textUntil gathers character data up to the closing tag with this name.
func (r *rowReader) textUntil(name string) string {
	var sb strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return sb.String()
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == name {
				return sb.String()
			}
		case xml.CharData:
			sb.Write(t)
		}
	}
}

func (r *rowReader) sharedString(ref string) string {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		if c < '0' || c > '9' {
			return ""
		}
		idx = idx*10 + int(c-'0')
	}
	if ref == "" || idx >= len(r.shared) {
		return ""
	}
	return r.shared[idx]
}

// columnIndex maps a cell reference like "C12" to a zero-based column,
// or -1 when the reference is absent.
func columnIndex(ref string) int {
	end := 0
	for end < len(ref) {
		c := ref[end]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			break
		}
		end++
	}
	if end == 0 {
		return -1
	}

	idx := 0
	for _, c := range strings.ToUpper(ref[:end]) {
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}
