package gbm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// TrainTestSplit shuffles 0..n-1 and holds out ceil(testFraction*n) indexes.
// Both sides are non-empty whenever n >= 2.
func TrainTestSplit(n int, testFraction float64, seed uint64) (train, test []int) {
	perm := NewRand(seed).Perm(n)
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTest = min(max(nTest, 1), n-1)
	if n < 2 {
		return perm, nil
	}
	return perm[nTest:], perm[:nTest]
}

// KFold returns k contiguous test folds over 0..n-1. The first n%k folds
// get one extra index.
func KFold(n, k int) [][]int {
	folds := make([][]int, 0, k)
	start := 0
	for f := range k {
		size := n / k
		if f < n%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = start + i
		}
		folds = append(folds, fold)
		start += size
	}
	return folds
}

// Rows selects rows of X and y by index.
func Rows(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}

// RMSE is the root mean squared error.
func RMSE(y, pred []float64) float64 {
	var sum float64
	for i := range y {
		d := y[i] - pred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(y)))
}

// MAE is the mean absolute error.
func MAE(y, pred []float64) float64 {
	var sum float64
	for i := range y {
		sum += math.Abs(y[i] - pred[i])
	}
	return sum / float64(len(y))
}

// R2 is the coefficient of determination. A constant target scores 1 when
// predicted exactly and 0 otherwise.
func R2(y, pred []float64) float64 {
	mean := stat.Mean(y, nil)
	var res, tot float64
	for i := range y {
		res += (y[i] - pred[i]) * (y[i] - pred[i])
		tot += (y[i] - mean) * (y[i] - mean)
	}
	if tot == 0 {
		if res == 0 {
			return 1
		}
		return 0
	}
	return 1 - res/tot
}

// CrossValidateRMSE runs k-fold cross-validation and returns the mean and
// population standard deviation of the per-fold RMSE.
func CrossValidateRMSE(X [][]float64, y []float64, k int, p Params) (mean, std float64, err error) {
	if k < 2 {
		return 0, 0, fmt.Errorf("cross-validation needs at least 2 folds (got %d)", k)
	}
	if len(X) < k {
		return 0, 0, errors.New("fewer rows than folds")
	}

	scores := make([]float64, 0, k)
	for f, testIdx := range KFold(len(X), k) {
		inTest := make(map[int]struct{}, len(testIdx))
		for _, i := range testIdx {
			inTest[i] = struct{}{}
		}
		trainIdx := make([]int, 0, len(X)-len(testIdx))
		for i := range X {
			if _, ok := inTest[i]; !ok {
				trainIdx = append(trainIdx, i)
			}
		}

		xTrain, yTrain := Rows(X, y, trainIdx)
		xTest, yTest := Rows(X, y, testIdx)

		model, err := Fit(xTrain, yTrain, p)
		if err != nil {
			return 0, 0, fmt.Errorf("fold %d: %w", f, err)
		}
		pred, err := model.PredictAll(xTest)
		if err != nil {
			return 0, 0, fmt.Errorf("fold %d: %w", f, err)
		}
		scores = append(scores, RMSE(yTest, pred))
	}

	mean, std = stat.PopMeanStdDev(scores, nil)
	return mean, std, nil
}
