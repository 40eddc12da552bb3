package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Loss is a reconstruction criterion reduced by mean over every element of
// the batch.
type Loss interface {
	Forward(pred, target *mat.Dense) (float64, error)
	// Backward returns dLoss/dPred.
	Backward(pred, target *mat.Dense) (*mat.Dense, error)
	fmt.Stringer
}

// LossLookup maps configuration names to losses.
var LossLookup = map[string]Loss{
	"mse": MSELoss{},
	"bce": BCELoss{},
}

// NewLoss resolves a loss by name.
func NewLoss(name string) (Loss, error) {
	l, ok := LossLookup[name]
	if !ok {
		return nil, fmt.Errorf("unsupported loss: %s", name)
	}
	return l, nil
}

func checkDims(pred, target *mat.Dense) (int, int, error) {
	r, c := pred.Dims()
	tr, tc := target.Dims()
	if r != tr || c != tc {
		return 0, 0, fmt.Errorf("loss shape mismatch: %dx%d vs %dx%d", r, c, tr, tc)
	}
	return r, c, nil
}

// MSELoss is the mean squared error.
type MSELoss struct{}

func (MSELoss) Forward(pred, target *mat.Dense) (float64, error) {
	r, c, err := checkDims(pred, target)
	if err != nil {
		return 0, err
	}
	var diff mat.Dense
	diff.Sub(pred, target)
	sum := mat.Norm(&diff, 2)
	return sum * sum / float64(r*c), nil
}

func (MSELoss) Backward(pred, target *mat.Dense) (*mat.Dense, error) {
	r, c, err := checkDims(pred, target)
	if err != nil {
		return nil, err
	}
	grad := mat.NewDense(r, c, nil)
	grad.Sub(pred, target)
	grad.Scale(2/float64(r*c), grad)
	return grad, nil
}

func (MSELoss) String() string { return "mse" }

// bceEps keeps log() finite for saturated probabilities.
const bceEps = 1e-7

// BCELoss is binary cross-entropy on probabilities in [0,1]; pair it with a
// sigmoid output. Predictions outside the clamp range get a zero gradient,
// matching the flat loss there.
type BCELoss struct{}

func clampProb(p float64) float64 {
	return math.Min(math.Max(p, bceEps), 1-bceEps)
}

func (BCELoss) Forward(pred, target *mat.Dense) (float64, error) {
	r, c, err := checkDims(pred, target)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := clampProb(pred.At(i, j))
			t := target.At(i, j)
			sum -= t*math.Log(p) + (1-t)*math.Log(1-p)
		}
	}
	return sum / float64(r*c), nil
}

func (BCELoss) Backward(pred, target *mat.Dense) (*mat.Dense, error) {
	r, c, err := checkDims(pred, target)
	if err != nil {
		return nil, err
	}
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)
	grad.Apply(func(i, j int, v float64) float64 {
		p := clampProb(v)
		if p != v {
			return 0
		}
		t := target.At(i, j)
		return (p - t) / (p * (1 - p)) / n
	}, pred)
	return grad, nil
}

func (BCELoss) String() string { return "bce" }
