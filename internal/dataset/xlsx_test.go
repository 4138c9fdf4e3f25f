package dataset

import (
	"archive/zip"
	"bytes"
	"testing"
)

// buildXLSX assembles a minimal workbook zip from raw part contents.
func buildXLSX(t *testing.T, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		f, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const testWorkbookXML = `<?xml version="1.0"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"
          xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets><sheet name="Towers" sheetId="1" r:id="rId1"/></sheets>
</workbook>`

const testRelsXML = `<?xml version="1.0"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Target="/xl/worksheets/data.xml"/>
</Relationships>`

const testSharedXML = `<?xml version="1.0"?>
<sst>
  <si><t>name</t></si>
  <si><t>location.latitude</t></si>
  <si><t>location.longitude</t></si>
  <si><t>location.city</t></si>
  <si><t>Height (m)</t></si>
  <si><t>Empire State</t></si>
  <si><t>Willis</t></si>
  <si><r><t>New </t></r><r><t>York</t></r></si>
</sst>`

const testSheetXML = `<?xml version="1.0"?>
<worksheet><sheetData>
  <row r="1">
    <c r="A1" t="s"><v>0</v></c>
    <c r="B1" t="s"><v>1</v></c>
    <c r="C1" t="s"><v>2</v></c>
    <c r="D1" t="s"><v>3</v></c>
    <c r="E1" t="s"><v>4</v></c>
  </row>
  <row r="2">
    <c r="A2" t="s"><v>5</v></c>
    <c r="B2"><v>40.748</v></c>
    <c r="C2"><v>-73.985</v></c>
    <c r="D2" t="s"><v>7</v></c>
    <c r="E2"><v>381</v></c>
  </row>
  <row r="3">
    <c r="A3" t="s"><v>6</v></c>
    <c r="B3"><v>41.878</v></c>
    <c r="C3"><v>-87.635</v></c>
    <c r="D3" t="inlineStr"><is><t>Chicago</t></is></c>
    <c r="E3"><v>442</v></c>
  </row>
  <row r="4">
    <c r="A4" t="inlineStr"><is><t>NoCoords</t></is></c>
    <c r="D4" t="inlineStr"><is><t>Nowhere</t></is></c>
    <c r="E4"><v>10</v></c>
  </row>
</sheetData></worksheet>`

func testWorkbook(t *testing.T) []byte {
	return buildXLSX(t, map[string]string{
		"xl/workbook.xml":            testWorkbookXML,
		"xl/_rels/workbook.xml.rels": testRelsXML,
		"xl/sharedStrings.xml":       testSharedXML,
		"xl/worksheets/data.xml":     testSheetXML,
	})
}

func TestParseXLSXWorkbook(t *testing.T) {
	ds, err := Parse("skyscrapers.xlsx", testWorkbook(t))
	if err != nil {
		t.Fatalf("parse xlsx: %v", err)
	}

	if ds.SourceRows != 3 || ds.SourceCols != 5 {
		t.Errorf("source shape = %dx%d, want 3x5", ds.SourceRows, ds.SourceCols)
	}
	if ds.HeightColumn != "Height (m)" {
		t.Errorf("HeightColumn = %q, want Height (m)", ds.HeightColumn)
	}

	// The coordinate-less row must be gone.
	if len(ds.Buildings) != 2 {
		t.Fatalf("buildings = %d, want 2", len(ds.Buildings))
	}

	first := ds.Buildings[0]
	if first.Name != "Empire State" || first.City != "New York" {
		t.Errorf("row 1 = %q in %q, want Empire State in New York", first.Name, first.City)
	}
	if first.Height != 381 || first.Latitude != 40.748 {
		t.Errorf("row 1 values = height %v lat %v", first.Height, first.Latitude)
	}

	second := ds.Buildings[1]
	if second.Name != "Willis" || second.City != "Chicago" || second.Height != 442 {
		t.Errorf("row 2 = %+v, want Willis in Chicago at 442", second)
	}
}

func TestParseXLSXFallsBackToSheet1(t *testing.T) {
	// No relationships part: the conventional sheet1.xml path must be used.
	data := buildXLSX(t, map[string]string{
		"xl/workbook.xml":          testWorkbookXML,
		"xl/sharedStrings.xml":     testSharedXML,
		"xl/worksheets/sheet1.xml": testSheetXML,
	})

	ds, err := Parse("skyscrapers.xlsx", data)
	if err != nil {
		t.Fatalf("parse xlsx: %v", err)
	}
	if len(ds.Buildings) != 2 {
		t.Errorf("buildings = %d, want 2", len(ds.Buildings))
	}
}

func TestParseXLSXGarbage(t *testing.T) {
	if _, err := Parse("broken.xlsx", []byte("this is not a zip archive")); err == nil {
		t.Fatal("expected error for non-zip content")
	}
}

func TestColumnIndex(t *testing.T) {
	tests := []struct {
		ref  string
		want int
	}{
		{"A1", 0},
		{"B12", 1},
		{"Z3", 25},
		{"AA7", 26},
		{"AB1", 27},
		{"7", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := columnIndex(tt.ref); got != tt.want {
			t.Errorf("columnIndex(%q) = %d, want %d", tt.ref, got, tt.want)
		}
	}
}
