// Package catalog imports product catalogues into the cart service.
//
// A catalogue is a gzipped CSV file with the header
// productId,name,unitPrice,stock followed by one row per product.
package catalog

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cartsync/internal/model"

	"github.com/shopspring/decimal"
)

// Loader defines the interface for loading catalogue files.
type Loader interface {
	// Load reads a gzipped catalogue file and returns its products.
	Load(ctx context.Context, path string) ([]model.Product, error)
}

var header = []string{"productId", "name", "unitPrice", "stock"}

// ErrInvalidHeader is returned when the first row is not the expected header.
var ErrInvalidHeader = errors.New("catalog: invalid header")

// Decode reads a gzipped catalogue from r. Later rows win over earlier rows
// with the same product ID.
func Decode(ctx context.Context, r io.Reader) ([]model.Product, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	reader := csv.NewReader(gzipReader)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, name := range header {
		if !strings.EqualFold(strings.TrimSpace(first[i]), name) {
			return nil, fmt.Errorf("%w: got %q", ErrInvalidHeader, strings.Join(first, ","))
		}
	}

	index := make(map[string]int)
	var products []model.Product

	for line := 2; ; line++ {
		if line%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		product, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if i, ok := index[product.ID]; ok {
			products[i] = product
			continue
		}
		index[product.ID] = len(products)
		products = append(products, product)
	}

	return products, nil
}

func parseRecord(record []string) (model.Product, error) {
	id := strings.TrimSpace(record[0])
	if id == "" {
		return model.Product{}, fmt.Errorf("productId is required")
	}

	name := strings.TrimSpace(record[1])
	if name == "" {
		return model.Product{}, fmt.Errorf("name is required for %s", id)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return model.Product{}, fmt.Errorf("invalid unitPrice for %s: %w", id, err)
	}
	if price.IsNegative() {
		return model.Product{}, fmt.Errorf("unitPrice cannot be negative for %s", id)
	}

	stock, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return model.Product{}, fmt.Errorf("invalid stock for %s: %w", id, err)
	}
	if stock < 0 {
		return model.Product{}, fmt.Errorf("stock cannot be negative for %s", id)
	}

	return model.Product{
		ID:        id,
		Name:      name,
		Slug:      Slugify(name),
		UnitPrice: price,
		Stock:     stock,
	}, nil
}

// Slugify lower-cases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
