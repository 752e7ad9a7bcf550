package model

import "math"

// LogisticRegression is a binary logistic regression fitted with full-batch
// gradient descent on standardized features and an L2 penalty.
type LogisticRegression struct {
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Scaler       Scaler    `json:"scaler"`
	Iterations   int       `json:"iterations"`
	LearningRate float64   `json:"learning_rate"`
	L2           float64   `json:"l2"`
}

var _ ProbabilisticClassifier = (*LogisticRegression)(nil)

// NewLogisticRegression returns an unfitted model with default hyperparameters.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		Iterations:   2000,
		LearningRate: 0.1,
		L2:           0.01,
	}
}

// Fit implements Classifier. Fitting is deterministic: weights start at zero.
func (m *LogisticRegression) Fit(X [][]float64, y []int) error {
	arity, err := validateTrainingSet(X, y)
	if err != nil {
		return err
	}

	m.Scaler = fitScaler(X, arity)
	rows := make([][]float64, len(X))
	for i, row := range X {
		rows[i] = m.Scaler.transform(row)
	}

	m.Weights = make([]float64, arity)
	m.Bias = 0
	n := float64(len(rows))
	gradW := make([]float64, arity)

	for it := 0; it < m.Iterations; it++ {
		for j := range gradW {
			gradW[j] = 0
		}
		var gradB float64

		for i, row := range rows {
			e := sigmoid(m.linear(row)) - float64(y[i])
			for j, v := range row {
				gradW[j] += e * v
			}
			gradB += e
		}

		for j := range m.Weights {
			m.Weights[j] -= m.LearningRate * (gradW[j]/n + m.L2*m.Weights[j])
		}
		m.Bias -= m.LearningRate * gradB / n
	}

	return nil
}

// PredictProba implements ProbabilisticClassifier.
func (m *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if err := checkArity(len(m.Weights), len(features)); err != nil {
		return nil, err
	}
	p := sigmoid(m.linear(m.Scaler.transform(features)))
	return []float64{1 - p, p}, nil
}

// Predict implements Classifier.
func (m *LogisticRegression) Predict(features []float64) (int, error) {
	proba, err := m.PredictProba(features)
	if err != nil {
		return 0, err
	}
	if proba[1] >= 0.5 {
		return 1, nil
	}
	return 0, nil
}

// NumFeatures implements Classifier.
func (m *LogisticRegression) NumFeatures() int {
	return len(m.Weights)
}

func (m *LogisticRegression) linear(x []float64) float64 {
	z := m.Bias
	for j, v := range x {
		z += m.Weights[j] * v
	}
	return z
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1.0 / (1.0 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1.0 + e)
}
