package split

import (
	"errors"
	"fmt"
	"io"

	"sdae_lib/he"
	"sdae_lib/sdae"
	"sdae_lib/utils"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// Server evaluates the first encoder projection of a stack for one client
// at a time. It never holds the client's secret key.
type Server struct {
	Stack   *sdae.StackedDenoisingAutoencoder
	RunID   string
	Workers int
}

// NewServer serves the first layer of stack.
func NewServer(stack *sdae.StackedDenoisingAutoencoder, runID string) *Server {
	return &Server{Stack: stack, RunID: runID}
}

// Serve handles one session: model info, key exchange, then encode requests
// until the client sends Done. Failures are reported to the client before
// being returned.
func (s *Server) Serve(p *Protocol) error {
	err := s.serve(p)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = p.SendError(err)
		return err
	}
	return nil
}

func (s *Server) serve(p *Protocol) error {
	enc := s.Stack.Layers[0].Encoder
	if err := p.SendModelInfo(ModelInfo{
		InDim:  enc.InDim(),
		OutDim: enc.OutDim(),
		Dims:   s.Stack.Dims(),
		RunID:  s.RunID,
	}); err != nil {
		return err
	}

	keys, err := p.ReceiveKeys()
	if err != nil {
		return fmt.Errorf("receive keys: %w", err)
	}
	var params hefloat.Parameters
	if err := params.UnmarshalBinary(keys.Params); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}
	evk := new(rlwe.MemEvaluationKeySet)
	if err := evk.UnmarshalBinary(keys.EvalKey); err != nil {
		return fmt.Errorf("evaluation keys: %w", err)
	}
	proj, err := he.NewLinearProjector(he.NewServerKit(params, evk), enc.W.Value, enc.B.Value)
	if err != nil {
		return err
	}
	if s.Workers > 0 {
		proj.SetWorkers(s.Workers)
	}
	utils.Logf("Session ready: %d→%d, %d ciphertexts per row", proj.Layout.InDim, proj.Layout.OutDim, proj.Layout.Groups)

	for {
		req, err := p.ReceiveEncode()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rows := make([][][]byte, len(req.Ciphertexts))
		for i, raw := range req.Ciphertexts {
			ct := new(rlwe.Ciphertext)
			if err := ct.UnmarshalBinary(raw); err != nil {
				return fmt.Errorf("batch %d row %d: %w", req.BatchID, i, err)
			}
			cts, err := proj.Project(ct)
			if err != nil {
				return fmt.Errorf("batch %d row %d: %w", req.BatchID, i, err)
			}
			if rows[i], err = marshalAll(cts); err != nil {
				return err
			}
		}
		if err := p.SendProjection(req.BatchID, rows); err != nil {
			return err
		}
		utils.Logf("Projected batch %d (%d rows)", req.BatchID, len(rows))
	}
}

func marshalAll(cts []*rlwe.Ciphertext) ([][]byte, error) {
	out := make([][]byte, len(cts))
	for i, ct := range cts {
		b, err := ct.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
