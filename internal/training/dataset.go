package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Dataset is a feature matrix with binary labels and the feature names in
// column order.
type Dataset struct {
	Features []string
	X        [][]float64
	Y        []int
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.X)
}

// DemoChurn returns the built-in churn dataset: short tenure with high
// monthly charges churns.
func DemoChurn() Dataset {
	rows := []struct {
		tenure, charges float64
		churn           int
	}{
		{1, 95, 1}, {2, 85, 1}, {3, 99, 1}, {4, 80, 1}, {5, 92, 1},
		{2, 70, 1}, {6, 88, 1}, {8, 95, 1}, {3, 75, 1}, {10, 100, 1},
		{24, 45, 0}, {36, 50, 0}, {48, 30, 0}, {60, 65, 0}, {12, 40, 0},
		{30, 85, 0}, {40, 95, 0}, {18, 35, 0}, {50, 55, 0}, {72, 90, 0},
	}

	d := Dataset{Features: []string{"tenure", "monthly_charges"}}
	for _, r := range rows {
		d.X = append(d.X, []float64{r.tenure, r.charges})
		d.Y = append(d.Y, r.churn)
	}
	return d
}

// DemoSingleFeature returns a six-row, one-feature dataset.
func DemoSingleFeature() Dataset {
	return Dataset{
		Features: []string{"x"},
		X:        [][]float64{{1}, {2}, {3}, {4}, {5}, {6}},
		Y:        []int{0, 0, 0, 1, 1, 1},
	}
}

// LoadCSV reads a dataset from a CSV file with a header row. The last column
// is the 0/1 label; every other column is a numeric feature.
func LoadCSV(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	d, err := ReadCSV(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("dataset %s: %w", path, err)
	}
	return d, nil
}

// ReadCSV parses the format described on LoadCSV.
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Dataset{}, errors.New("empty file")
		}
		return Dataset{}, err
	}
	if len(header) < 2 {
		return Dataset{}, fmt.Errorf("need at least one feature and a label column, got %d columns", len(header))
	}

	d := Dataset{Features: make([]string, len(header)-1)}
	for i, name := range header[:len(header)-1] {
		d.Features[i] = strings.TrimSpace(name)
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, err
		}

		row := make([]float64, len(rec)-1)
		for j, field := range rec[:len(rec)-1] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("line %d column %s: %w", line, header[j], err)
			}
			row[j] = v
		}
		label, err := strconv.Atoi(strings.TrimSpace(rec[len(rec)-1]))
		if err != nil {
			return Dataset{}, fmt.Errorf("line %d label: %w", line, err)
		}

		d.X = append(d.X, row)
		d.Y = append(d.Y, label)
	}

	if d.Len() == 0 {
		return Dataset{}, errors.New("no data rows")
	}
	return d, nil
}

// Split partitions the dataset into train and test sets. The split is
// stratified by label and fully determined by seed. Every class keeps at
// least one training row. A ratio of 0 returns the whole dataset as train and
// an empty test set.
func (d Dataset) Split(testRatio float64, seed int64) (train, test Dataset) {
	train = Dataset{Features: d.Features}
	test = Dataset{Features: d.Features}

	if testRatio <= 0 {
		train.X, train.Y = d.X, d.Y
		return train, test
	}

	byClass := map[int][]int{}
	for i, label := range d.Y {
		byClass[label] = append(byClass[label], i)
	}
	labels := make([]int, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	rng := rand.New(rand.NewSource(seed))
	inTest := make(map[int]bool)
	for _, label := range labels {
		idx := byClass[label]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		n := int(math.Round(float64(len(idx)) * testRatio))
		if n >= len(idx) {
			n = len(idx) - 1
		}
		for _, i := range idx[:n] {
			inTest[i] = true
		}
	}

	for i := range d.X {
		if inTest[i] {
			test.X = append(test.X, d.X[i])
			test.Y = append(test.Y, d.Y[i])
		} else {
			train.X = append(train.X, d.X[i])
			train.Y = append(train.Y, d.Y[i])
		}
	}
	return train, test
}
