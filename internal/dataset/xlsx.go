package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadXLSX reads the sheet selected by opt.SheetName (or the 1-based opt.SheetIndex)
// and builds a table from it. The first row is the header.
func LoadXLSX(p string, opt Options) (*Table, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	rows, err := readWorkbookRows(b, filepath.Base(p), opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, &SchemaError{Reason: "empty sheet: no header row"}
	}
	return FromRows(filepath.Base(p), rows[0], rows[1:], opt)
}

func readWorkbookRows(data []byte, name, sheetName string, sheetIndex int) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	sheets := workbookSheets(zipEntry(zr, "xl/workbook.xml"))
	rels := workbookRels(zipEntry(zr, "xl/_rels/workbook.xml.rels"))

	target := ""
	if sheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s.name, sheetName) {
				target = sheetPath(rels[s.rid])
				break
			}
		}
		if target == "" {
			names := make([]string, len(sheets))
			for i, s := range sheets {
				names[i] = s.name
			}
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'; available sheets: %s",
				sheetName, name, strings.Join(names, ", "))
		}
	}
	if target == "" {
		idx := sheetIndex
		if idx <= 0 {
			idx = 1
		}
		for _, s := range sheets {
			if s.id == idx {
				target = sheetPath(rels[s.rid])
				break
			}
		}
		if target == "" {
			target = fmt.Sprintf("xl/worksheets/sheet%d.xml", idx)
		}
	}
	sheet := zipEntry(zr, target)
	if sheet == nil {
		return nil, fmt.Errorf("open xlsx: missing sheet part %s", target)
	}
	return sheetRows(sheet, sharedStrings(zipEntry(zr, "xl/sharedStrings.xml")))
}

type sheetRef struct {
	name string
	id   int
	rid  string
}

func workbookSheets(data []byte) []sheetRef {
	var out []sheetRef
	eachStart(data, "sheet", func(se xml.StartElement) {
		var s sheetRef
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.id, _ = strconv.Atoi(a.Value)
			case "id":
				s.rid = a.Value
			}
		}
		out = append(out, s)
	})
	return out
}

func workbookRels(data []byte) map[string]string {
	out := map[string]string{}
	eachStart(data, "Relationship", func(se xml.StartElement) {
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	})
	return out
}

// sheetPath turns a relationship target into a zip entry name.
func sheetPath(rel string) string {
	if rel == "" {
		return ""
	}
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}

func eachStart(data []byte, local string, fn func(xml.StartElement)) {
	if len(data) == 0 {
		return
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == local {
			fn(se)
		}
	}
}

func zipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func sharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
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
				inText = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inText {
				buf.Write(se)
			}
		}
	}
}

// sheetRows decodes every <row> of a worksheet into dense string slices.
func sheetRows(data []byte, shared []string) ([][]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		rows    [][]string
		cur     []string
		inRow   bool
		cellRef string
		cellT   string
		inValue bool
		val     strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			return nil, fmt.Errorf("decode sheet: %w", err)
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "row":
				inRow, cur = true, nil
			case "c":
				cellRef, cellT = "", ""
				val.Reset()
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						cellRef = a.Value
					case "t":
						cellT = a.Value
					}
				}
			case "v", "t":
				inValue = inRow
			}
		case xml.CharData:
			if inValue {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				inValue = false
			case "c":
				col := columnIndex(cellRef)
				if col < 0 {
					col = len(cur)
				}
				for len(cur) <= col {
					cur = append(cur, "")
				}
				v := val.String()
				if cellT == "s" {
					if i, err := strconv.Atoi(v); err == nil && i >= 0 && i < len(shared) {
						v = shared[i]
					} else {
						v = ""
					}
				}
				cur[col] = v
			case "row":
				rows = append(rows, cur)
				inRow = false
			}
		}
	}
}

// columnIndex converts a cell reference like "C12" to a 0-based column index.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		idx = idx*26 + int(c-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}
