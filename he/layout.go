package he

import "fmt"

// Layout describes how a projection in→out is packed into ciphertext slots.
// The input is padded to Block (a power of two) and replicated Copies times;
// each ciphertext of the result carries Copies outputs, one per block, in the
// block's first slot.
type Layout struct {
	InDim  int
	OutDim int
	Block  int
	Copies int
	Groups int
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NewLayout packs an in→out projection into ciphertexts of the given slot
// count.
func NewLayout(slots, in, out int) (Layout, error) {
	if in <= 0 || out <= 0 {
		return Layout{}, fmt.Errorf("invalid projection %d→%d", in, out)
	}
	block := nextPow2(in)
	if block > slots {
		return Layout{}, fmt.Errorf("input width %d needs %d slots, have %d", in, block, slots)
	}
	copies := slots / block
	return Layout{
		InDim:  in,
		OutDim: out,
		Block:  block,
		Copies: copies,
		Groups: (out + copies - 1) / copies,
	}, nil
}

// Pack replicates x into every block.
func (l Layout) Pack(x []float64) ([]float64, error) {
	if len(x) != l.InDim {
		return nil, fmt.Errorf("input width %d, layout expects %d", len(x), l.InDim)
	}
	v := make([]float64, l.Block*l.Copies)
	for k := 0; k < l.Copies; k++ {
		copy(v[k*l.Block:], x)
	}
	return v, nil
}

// Unpack collects the OutDim results from the block-leading slots of each
// group's decrypted values.
func (l Layout) Unpack(groups [][]float64) ([]float64, error) {
	if len(groups) != l.Groups {
		return nil, fmt.Errorf("%d groups, layout expects %d", len(groups), l.Groups)
	}
	out := make([]float64, l.OutDim)
	for g, values := range groups {
		for k := 0; k < l.Copies; k++ {
			j := g*l.Copies + k
			if j >= l.OutDim {
				break
			}
			out[j] = values[k*l.Block]
		}
	}
	return out, nil
}

// output returns the output row placed in block k of group g, or -1.
func (l Layout) output(g, k int) int {
	if j := g*l.Copies + k; j < l.OutDim {
		return j
	}
	return -1
}
