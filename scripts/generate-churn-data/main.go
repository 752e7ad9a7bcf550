package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
)

func main() {
	var (
		outPath = flag.String("out", "churn.csv", "Output CSV path")
		rows    = flag.Int("rows", 500, "Number of customers to generate")
		seed    = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating churn dataset...\n")
	fmt.Printf("  Rows: %d\n", *rows)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *outPath)

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	churned, err := generateCustomers(csv.NewWriter(f), *rows, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatalf("Failed to generate data: %v", err)
	}

	fmt.Printf("✓ Generated %d customers, %d churned\n", *rows, churned)
}

// generateCustomers writes tenure, monthly_charges and a churn label drawn
// from a logistic model: short tenure and high charges raise churn odds.
func generateCustomers(w *csv.Writer, rows int, rng *rand.Rand) (int, error) {
	if err := w.Write([]string{"tenure", "monthly_charges", "churn"}); err != nil {
		return 0, err
	}

	churned := 0
	for i := 0; i < rows; i++ {
		tenure := math.Floor(rng.Float64() * 72)
		charges := 20 + rng.Float64()*100

		z := -0.08*tenure + 0.05*charges - 2.0
		p := 1 / (1 + math.Exp(-z))

		label := 0
		if rng.Float64() < p {
			label = 1
			churned++
		}

		record := []string{
			strconv.FormatFloat(tenure, 'f', 0, 64),
			strconv.FormatFloat(charges, 'f', 2, 64),
			strconv.Itoa(label),
		}
		if err := w.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	w.Flush()
	return churned, w.Error()
}
