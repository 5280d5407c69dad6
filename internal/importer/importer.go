package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"yogurt-storefront/internal/domain"
)

// CSVImporter reads a product catalog export with the columns
// id,name,description,price,image_url,stock,category. Column order is taken
// from the header row; unknown columns are ignored.
type CSVImporter struct {
	reader *csv.Reader
	now    func() time.Time
}

func NewCSVImporter(r io.Reader) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{reader: csvr, now: time.Now}
}

// Run parses every row. Rows without an id get the next sequential numeric
// id; blank rows are skipped.
func (i *CSVImporter) Run() ([]domain.Product, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["name"]; !ok {
		return nil, errors.New("read headers: missing name column")
	}

	var (
		products []domain.Product
		line     = 1
		seen     = map[string]bool{}
		now      = i.now().UTC()
	)
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return products, fmt.Errorf("read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			return products, fmt.Errorf("row %d: %w", line, err)
		}
		if p.ID == "" {
			p.ID = domain.ID(strconv.Itoa(len(products) + 1))
		}
		if seen[string(p.ID)] {
			return products, fmt.Errorf("row %d: duplicate id %q", line, p.ID)
		}
		seen[string(p.ID)] = true
		p.CreatedAt = now
		p.UpdatedAt = now
		products = append(products, p)
	}
	return products, nil
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	name := pick(record, index, "name")
	priceStr := pick(record, index, "price")
	if name == "" || priceStr == "" {
		return domain.Product{}, errors.New("invalid product row (missing name or price)")
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid price %q for %q: %w", priceStr, name, err)
	}
	if price.IsNegative() {
		return domain.Product{}, fmt.Errorf("negative price for %q", name)
	}

	var stock int
	if s := pick(record, index, "stock"); s != "" {
		stock, err = strconv.Atoi(s)
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid stock %q for %q: %w", s, name, err)
		}
	}

	return domain.Product{
		ID:          domain.ID(pick(record, index, "id")),
		Name:        name,
		Description: pick(record, index, "description"),
		Price:       price,
		ImageURL:    pick(record, index, "image_url"),
		Stock:       stock,
		Category:    strings.ToLower(pick(record, index, "category")),
	}, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
