package main

import (
	"flag"
	"fmt"
	"log"

	"churn-serving/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		version  = flag.String("version", "", "Only show runs for this version")
	)
	flag.Parse()

	fmt.Printf("Inspecting run ledger in: %s\n", *dataPath)

	// Open storage
	ledger, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer ledger.Close()

	var runs []storage.Run
	if *version != "" {
		runs, err = ledger.Runs(*version)
	} else {
		runs, err = ledger.AllRuns()
	}
	if err != nil {
		log.Fatalf("Failed to read runs: %v", err)
	}

	fmt.Printf("\nFound %d runs:\n", len(runs))
	for _, r := range runs {
		fmt.Printf("%s  version=%s kind=%s accuracy=%.3f rows=%d/%d path=%s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Version, r.Kind, r.Accuracy, r.TrainRows, r.TestRows, r.Location)
		for k, v := range r.Params {
			fmt.Printf("    %s=%s\n", k, v)
		}
	}

	if *version != "" {
		latest, err := ledger.LatestRun(*version)
		if err != nil {
			log.Fatalf("Failed to read latest run: %v", err)
		}
		if latest != nil {
			fmt.Printf("\nLatest run for %s: %s (accuracy %.3f)\n", *version, latest.ID, latest.Accuracy)
		}
	}
}
