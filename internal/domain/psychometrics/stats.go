// Package psychometrics measures the health of question items and the
// internal consistency of competencies over historical answer pools.
package psychometrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Difficulty is the mean normalized score of an item, or nil with no responses.
func Difficulty(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	m := stat.Mean(scores, nil)
	return &m
}

// Discrimination is the point-biserial correlation between item scores and the
// respondents' total scores. It is nil below minResponses or when either
// series has no variance.
func Discrimination(item, totals []float64, minResponses int) *float64 {
	if len(item) != len(totals) || len(item) < minResponses || len(item) < 2 {
		return nil
	}
	r := stat.Correlation(item, totals, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// CronbachAlpha computes the internal-consistency coefficient of a
// respondents x items score matrix. Rows must all have the same length.
// It returns nil for fewer than two items or two respondents, or when the
// total-score variance is zero.
func CronbachAlpha(matrix [][]float64) *float64 {
	n := len(matrix)
	if n < 2 {
		return nil
	}
	k := len(matrix[0])
	if k < 2 {
		return nil
	}
	totals := make([]float64, n)
	var itemVarSum float64
	column := make([]float64, n)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			column[i] = matrix[i][j]
			totals[i] += matrix[i][j]
		}
		itemVarSum += variance(column)
	}
	totalVar := variance(totals)
	if totalVar == 0 {
		return nil
	}
	kf := float64(k)
	alpha := kf / (kf - 1) * (1 - itemVarSum/totalVar)
	return &alpha
}

// variance is the sample variance (n-1 denominator), zero below two values.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.Variance(xs, nil)
}
