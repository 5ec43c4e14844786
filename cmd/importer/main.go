package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"storefront/internal/commerce/memory"
	"storefront/internal/importer"
	"storefront/internal/seed"
)

// importer checks a catalog CSV the API would load through CATALOG_CSV and prints the
// resulting catalog.
func main() {
	var (
		filePath string
		currency string
		withSeed bool
	)
	flag.StringVar(&filePath, "file", "", "Path to catalog CSV")
	flag.StringVar(&currency, "currency", "EUR", "Currency for rows without one")
	flag.BoolVar(&withSeed, "seed", false, "Merge with the built-in catalog")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(filePath)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}
	defer f.Close()

	backend := memory.New("", nil)
	if withSeed {
		seed.Apply(backend, currency)
	}

	start := time.Now()
	count, err := importer.NewCSVImporter(f, backend, currency).Run(context.Background())
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	products, err := backend.ListProducts(context.Background(), 1000, "")
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
