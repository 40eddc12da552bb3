package split

import (
	"fmt"
	"time"

	"sdae_lib/he"
	"sdae_lib/utils"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
	"gonum.org/v1/gonum/mat"
)

// Client encrypts inputs, has the server project them and decrypts the
// first layer's pre-activations.
type Client struct {
	Info   ModelInfo
	Layout he.Layout
	Timing utils.TimingStats

	proto   *Protocol
	ctx     *he.Context
	batchID int
	rows    int
}

// NewClient performs the handshake: it reads the model shape, generates keys
// for it and sends the evaluation keys.
func NewClient(p *Protocol, params hefloat.Parameters) (*Client, error) {
	info, err := p.ReceiveModelInfo()
	if err != nil {
		return nil, fmt.Errorf("model info: %w", err)
	}
	layout, err := he.NewLayout(params.MaxSlots(), info.InDim, info.OutDim)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ctx := he.NewContext(params)
	evk := ctx.EvaluationKeys(he.SumRotations(layout.Block))
	pb, err := params.MarshalBinary()
	if err != nil {
		return nil, err
	}
	eb, err := evk.MarshalBinary()
	if err != nil {
		return nil, err
	}
	c := &Client{Info: *info, Layout: layout, proto: p, ctx: ctx}
	c.Timing.ModelInitTime = time.Since(start)
	utils.Logf("Generated keys for %d rotations in %v (%d KiB)", len(he.SumRotations(layout.Block)), c.Timing.ModelInitTime, len(eb)>>10)

	if err := p.SendKeys(pb, eb); err != nil {
		return nil, err
	}
	return c, nil
}

// Encode returns x·Wᵀ + b of the server's first layer for every row of x.
func (c *Client) Encode(x *mat.Dense) (*mat.Dense, error) {
	n, d := x.Dims()
	if d != c.Info.InDim {
		return nil, fmt.Errorf("input width %d, server expects %d", d, c.Info.InDim)
	}

	start := time.Now()
	cts := make([][]byte, n)
	for i := 0; i < n; i++ {
		ct, err := c.ctx.EncryptInput(c.Layout, x.RawRowView(i))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if cts[i], err = ct.MarshalBinary(); err != nil {
			return nil, err
		}
	}
	c.Timing.EncryptionTime += time.Since(start)

	start = time.Now()
	id := c.batchID
	c.batchID++
	if err := c.proto.SendEncode(id, cts); err != nil {
		return nil, err
	}
	resp, err := c.proto.ReceiveProjection()
	if err != nil {
		return nil, err
	}
	c.Timing.RemoteEncodeTime += time.Since(start)
	if resp.BatchID != id || len(resp.Rows) != n {
		return nil, fmt.Errorf("response for batch %d with %d rows, sent batch %d with %d", resp.BatchID, len(resp.Rows), id, n)
	}

	start = time.Now()
	out := mat.NewDense(n, c.Info.OutDim, nil)
	for i, row := range resp.Rows {
		groups := make([]*rlwe.Ciphertext, len(row))
		for g, raw := range row {
			groups[g] = new(rlwe.Ciphertext)
			if err := groups[g].UnmarshalBinary(raw); err != nil {
				return nil, fmt.Errorf("row %d group %d: %w", i, g, err)
			}
		}
		values, err := c.ctx.DecryptProjection(c.Layout, groups)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out.SetRow(i, values)
	}
	c.Timing.DecryptionTime += time.Since(start)
	utils.Logf("Batch %d: %d rows, avg %.0fµs per row remote", id, n, utils.DurationUS(c.Timing.RemoteEncodeTime)/float64(c.rows+n))
	c.rows += n
	return out, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.proto.SendDone()
}
