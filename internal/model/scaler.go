package model

import "math"

// Scaler standardizes features to zero mean and unit variance.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func fitScaler(X [][]float64, arity int) Scaler {
	s := Scaler{
		Mean:  make([]float64, arity),
		Scale: make([]float64, arity),
	}
	n := float64(len(X))

	for _, row := range X {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range X {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Scale[j] += d * d
		}
	}
	for j := range s.Scale {
		s.Scale[j] = math.Sqrt(s.Scale[j] / n)
		// constant column
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}

	return s
}

func (s Scaler) transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}
