// Package fixture loads asset performance rows from CSV, XLSX, and YAML files.
package fixture

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contentmix/internal/model"
)

// headerAliases maps normalized header spellings to the csv tags on
// model.AssetPerformance.
var headerAliases = map[string]string{
	"creator":     "creator",
	"type":        "type",
	"length":      "length",
	"campaign":    "campaign",
	"tags":        "tags",
	"daypart":     "daypart",
	"spotlength":  "spot_length",
	"conversions": "conversions",
	"contentsnid": "content_sn_id",
	"snid":        "content_sn_id",
}

// Load reads performance rows from path. The format is chosen by extension:
// .csv, .xlsx, .yaml or .yml.
func Load(path string) ([]model.AssetPerformance, error) {
	var (
		rows []model.AssetPerformance
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		var f *os.File
		f, err = os.Open(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return nil, eris.Wrap(err, "fixture: open csv")
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(f)
	case ".xlsx":
		rows, err = ReadXLSX(path)
	case ".yaml", ".yml":
		var data []byte
		data, err = os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return nil, eris.Wrap(err, "fixture: read yaml")
		}
		rows, err = ReadYAML(data)
	default:
		return nil, eris.Errorf("fixture: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadCSV decodes rows from a CSV stream with a header line. Header names
// are matched loosely, so "Content Sn ID", "contentSnId" and
// "content_sn_id" all bind to the same field.
func ReadCSV(r io.Reader) ([]model.AssetPerformance, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fixture: read csv header")
	}

	dec, err := csvutil.NewDecoder(cr, normalizeHeader(header)...)
	if err != nil {
		return nil, eris.Wrap(err, "fixture: csv decoder")
	}

	var rows []model.AssetPerformance
	for {
		var p model.AssetPerformance
		err := dec.Decode(&p)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "fixture: decode csv row %d", len(rows)+2)
		}
		rows = append(rows, trim(p))
	}
	return rows, nil
}

// ReadXLSX decodes rows from the first sheet of an XLSX workbook. The first
// row is the header.
func ReadXLSX(path string) ([]model.AssetPerformance, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fixture: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("fixture: workbook has no sheets")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	width := 0
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		blank := true
		for i, cell := range row.Cells {
			cells[i] = cell.String()
			if strings.TrimSpace(cells[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		// Trailing empty cells may be dropped on save; pad to the header width.
		if width == 0 {
			width = len(cells)
		}
		for len(cells) < width {
			cells = append(cells, "")
		}
		cells = cells[:width]
		if err := w.Write(cells); err != nil {
			return nil, eris.Wrap(err, "fixture: stage xlsx row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "fixture: stage xlsx rows")
	}

	return ReadCSV(&buf)
}

// ReadYAML decodes a YAML sequence of rows.
func ReadYAML(data []byte) ([]model.AssetPerformance, error) {
	var rows []model.AssetPerformance
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "fixture: decode yaml")
	}
	for i := range rows {
		rows[i] = trim(rows[i])
	}
	return rows, nil
}

// WriteCSV encodes rows with the canonical header.
func WriteCSV(w io.Writer, rows []model.AssetPerformance) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		if err := enc.EncodeHeader(model.AssetPerformance{}); err != nil {
			return eris.Wrap(err, "fixture: encode header")
		}
	}
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return eris.Wrapf(err, "fixture: encode row %d", i+1)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "fixture: flush csv")
}

// Validate rejects rows the attribution flow cannot use.
func Validate(rows []model.AssetPerformance) error {
	seen := make(map[string]int, len(rows))
	for i, p := range rows {
		n := i + 1
		switch {
		case p.Creator == "":
			return eris.Errorf("fixture: row %d has no creator", n)
		case p.ContentSnID == "":
			return eris.Errorf("fixture: row %d has no contentSnId", n)
		case p.Conversions < 0:
			return eris.Errorf("fixture: row %d has negative conversions", n)
		}
		if prev, ok := seen[p.ContentSnID]; ok {
			return eris.Errorf("fixture: row %d repeats contentSnId %s from row %d", n, p.ContentSnID, prev)
		}
		seen[p.ContentSnID] = n
	}
	return nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		key := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				return r
			case r >= 'A' && r <= 'Z':
				return r + ('a' - 'A')
			}
			return -1
		}, h)
		if tag, ok := headerAliases[key]; ok {
			out[i] = tag
		} else {
			out[i] = strings.TrimSpace(h)
		}
	}
	return out
}

func trim(p model.AssetPerformance) model.AssetPerformance {
	p.Creator = strings.TrimSpace(p.Creator)
	p.Type = strings.TrimSpace(p.Type)
	p.Length = strings.TrimSpace(p.Length)
	p.Campaign = strings.TrimSpace(p.Campaign)
	p.Tags = strings.TrimSpace(p.Tags)
	p.Daypart = strings.TrimSpace(p.Daypart)
	p.SpotLength = strings.TrimSpace(p.SpotLength)
	p.ContentSnID = strings.TrimSpace(p.ContentSnID)
	return p
}
