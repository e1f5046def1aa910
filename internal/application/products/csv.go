package products

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	domain "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseResult holds the data lines of a product CSV.
type ParseResult struct {
	Rows      []domain.Row
	Malformed int
}

// ParseCSV reads partNum,partDescription lines. The first line is a header and
// is ignored, blank lines are skipped, extra columns are ignored. Lines with a
// missing field are returned as-is (and counted in Malformed) so the import
// counts them as skipped.
func ParseCSV(r io.Reader) (ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ParseResult{}, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var res ParseResult
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ParseResult{}, fmt.Errorf("%w: csv: %v", domain.ErrInvalidInput, err)
		}
		if header {
			header = false
			continue
		}
		if blank(rec) {
			continue
		}
		row := domain.Row{PartNum: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			row.PartDescription = strings.TrimSpace(rec[1])
		}
		if !row.Valid() {
			res.Malformed++
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
