package main

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// generateSampleCatalog creates a sample catalogue for the cart service.
// P004 has no stock, P002 has little so quantity updates get clamped.
func main() {
	dataDir := "data/catalog"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	rows := [][]string{
		{"productId", "name", "unitPrice", "stock"},
		{"P001", "Oat Milk 1L", "1.99", "40"},
		{"P002", "Coffee Beans, Dark Roast", "12.50", "3"},
		{"P003", "Loose Tomatoes", "0.45", "200"},
		{"P004", "Sourdough Loaf", "3.20", "0"},
		{"P005", "Free Range Eggs (12)", "4.10", "25"},
	}

	filePath := filepath.Join(dataDir, "products.csv.gz")
	if err := createCatalogFile(filePath, rows); err != nil {
		log.Fatalf("Failed to create %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d products\n", filePath, len(rows)-1)
	fmt.Println("\nImport it with:")
	fmt.Printf("  CATALOG_FILE=%s go run ./cmd/cartd\n", filePath)
}

func createCatalogFile(filePath string, rows [][]string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	writer := csv.NewWriter(gzipWriter)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	return nil
}
