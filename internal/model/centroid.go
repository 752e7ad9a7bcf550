package model

// NearestCentroid assigns the label of the closer class centroid in
// standardized feature space. It has no probability output.
type NearestCentroid struct {
	Scaler    Scaler       `json:"scaler"`
	Centroids [2][]float64 `json:"centroids"`
}

var _ Classifier = (*NearestCentroid)(nil)

func NewNearestCentroid() *NearestCentroid {
	return &NearestCentroid{}
}

// Fit implements Classifier.
func (m *NearestCentroid) Fit(X [][]float64, y []int) error {
	arity, err := validateTrainingSet(X, y)
	if err != nil {
		return err
	}

	m.Scaler = fitScaler(X, arity)
	var counts [2]float64
	for c := range m.Centroids {
		m.Centroids[c] = make([]float64, arity)
	}

	for i, row := range X {
		z := m.Scaler.transform(row)
		for j, v := range z {
			m.Centroids[y[i]][j] += v
		}
		counts[y[i]]++
	}
	for c := range m.Centroids {
		for j := range m.Centroids[c] {
			m.Centroids[c][j] /= counts[c]
		}
	}

	return nil
}

// Predict implements Classifier. Ties go to class 0.
func (m *NearestCentroid) Predict(features []float64) (int, error) {
	if err := checkArity(m.NumFeatures(), len(features)); err != nil {
		return 0, err
	}

	z := m.Scaler.transform(features)
	if sqDist(z, m.Centroids[1]) < sqDist(z, m.Centroids[0]) {
		return 1, nil
	}
	return 0, nil
}

// NumFeatures implements Classifier.
func (m *NearestCentroid) NumFeatures() int {
	return len(m.Centroids[0])
}

func sqDist(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
