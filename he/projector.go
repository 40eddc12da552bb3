package he

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"
)

// LinearProjector evaluates x·Wᵀ + b on an encrypted, packed x. W is out×in
// as stored by layers.Linear; b is 1×out.
type LinearProjector struct {
	Layout Layout

	kit     *ServerKit
	weights []*rlwe.Plaintext
	bias    [][]float64
	workers int
}

// NewLinearProjector encodes the weight rows of W group by group.
func NewLinearProjector(kit *ServerKit, w, b *mat.Dense) (*LinearProjector, error) {
	out, in := w.Dims()
	if br, bc := b.Dims(); br != 1 || bc != out {
		return nil, fmt.Errorf("bias is %dx%d, want 1x%d", br, bc, out)
	}
	layout, err := NewLayout(kit.Params.MaxSlots(), in, out)
	if err != nil {
		return nil, err
	}
	p := &LinearProjector{Layout: layout, kit: kit, workers: runtime.GOMAXPROCS(0)}

	slots := layout.Block * layout.Copies
	for g := 0; g < layout.Groups; g++ {
		wv := make([]float64, slots)
		bv := make([]float64, slots)
		for k := 0; k < layout.Copies; k++ {
			j := layout.output(g, k)
			if j < 0 {
				break
			}
			copy(wv[k*layout.Block:], w.RawRowView(j))
			bv[k*layout.Block] = b.At(0, j)
		}
		pt := hefloat.NewPlaintext(kit.Params, kit.Params.MaxLevel())
		if err := kit.Encoder.Encode(wv, pt); err != nil {
			return nil, fmt.Errorf("encode weights group %d: %w", g, err)
		}
		p.weights = append(p.weights, pt)
		p.bias = append(p.bias, bv)
	}
	return p, nil
}

// SetWorkers bounds the number of groups evaluated concurrently.
func (p *LinearProjector) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	p.workers = n
}

// Project returns one ciphertext per output group.
func (p *LinearProjector) Project(ct *rlwe.Ciphertext) ([]*rlwe.Ciphertext, error) {
	if ct.Level() < 1 {
		return nil, fmt.Errorf("ciphertext at level %d cannot be rescaled", ct.Level())
	}
	results := make([]*rlwe.Ciphertext, p.Layout.Groups)
	errs := make([]error, p.Layout.Groups)

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := p.workers
	if workers > p.Layout.Groups {
		workers = p.Layout.Groups
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// evaluators and encoders carry scratch buffers
			eval := p.kit.Evaluator.ShallowCopy()
			enc := p.kit.Encoder.ShallowCopy()
			for g := range jobs {
				results[g], errs[g] = p.group(eval, enc, ct, g)
			}
		}()
	}
	for g := 0; g < p.Layout.Groups; g++ {
		jobs <- g
	}
	close(jobs)
	wg.Wait()

	for g, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g, err)
		}
	}
	return results, nil
}

func (p *LinearProjector) group(eval *hefloat.Evaluator, enc *hefloat.Encoder, ct *rlwe.Ciphertext, g int) (*rlwe.Ciphertext, error) {
	prod, err := eval.MulNew(ct, p.weights[g])
	if err != nil {
		return nil, err
	}
	res := hefloat.NewCiphertext(p.kit.Params, 1, prod.Level()-1)
	if err := eval.Rescale(prod, res); err != nil {
		return nil, err
	}
	for _, r := range SumRotations(p.Layout.Block) {
		rot, err := eval.RotateNew(res, r)
		if err != nil {
			return nil, err
		}
		if err := eval.Add(res, rot, res); err != nil {
			return nil, err
		}
	}

	pt := hefloat.NewPlaintext(p.kit.Params, res.Level())
	pt.Scale = res.Scale
	if err := enc.Encode(p.bias[g], pt); err != nil {
		return nil, err
	}
	if err := eval.Add(res, pt, res); err != nil {
		return nil, err
	}
	return res, nil
}

// EncryptInput packs and encrypts one input row for layout.
func (c *Context) EncryptInput(layout Layout, x []float64) (*rlwe.Ciphertext, error) {
	v, err := layout.Pack(x)
	if err != nil {
		return nil, err
	}
	return c.Encrypt(v)
}

// DecryptProjection decrypts the group ciphertexts of one projected row.
func (c *Context) DecryptProjection(layout Layout, cts []*rlwe.Ciphertext) ([]float64, error) {
	groups := make([][]float64, len(cts))
	for g, ct := range cts {
		values, err := c.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g, err)
		}
		groups[g] = values
	}
	return layout.Unpack(groups)
}
