// Package he evaluates the first encoder projection of a stacked autoencoder
// on CKKS-encrypted inputs.
//
// The client owns the secret key and encrypts replicated inputs; the server
// owns the weights and only ever sees ciphertexts and evaluation keys.
package he

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// DefaultLiteral is a two-level parameter set: one multiplication by a
// plaintext followed by a rescale.
var DefaultLiteral = hefloat.ParametersLiteral{
	LogN:            13,
	LogQ:            []int{50, 40},
	LogP:            []int{60},
	LogDefaultScale: 40,
}

// NewParameters builds CKKS parameters from DefaultLiteral with the given
// ring degree (zero keeps the default).
func NewParameters(logN int) (hefloat.Parameters, error) {
	lit := DefaultLiteral
	if logN > 0 {
		lit.LogN = logN
	}
	return hefloat.NewParametersFromLiteral(lit)
}

// Context is the client side: it holds the secret key.
type Context struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Encryptor *rlwe.Encryptor
	Decryptor *rlwe.Decryptor

	kgen *rlwe.KeyGenerator
	sk   *rlwe.SecretKey
	rlk  *rlwe.RelinearizationKey
}

// NewContext generates a fresh key pair.
func NewContext(params hefloat.Parameters) *Context {
	kgen := hefloat.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &Context{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Encryptor: hefloat.NewEncryptor(params, pk),
		Decryptor: hefloat.NewDecryptor(params, sk),
		kgen:      kgen,
		sk:        sk,
		rlk:       kgen.GenRelinearizationKeyNew(sk),
	}
}

// EvaluationKeys returns the relinearisation key and the Galois keys for the
// given left rotations. It never includes the secret key.
func (c *Context) EvaluationKeys(rotations []int) *rlwe.MemEvaluationKeySet {
	galEls := c.Params.GaloisElements(rotations)
	return rlwe.NewMemEvaluationKeySet(c.rlk, c.kgen.GenGaloisKeysNew(galEls, c.sk)...)
}

// ServerKit returns an evaluation-only view for the given rotations.
func (c *Context) ServerKit(rotations []int) *ServerKit {
	return NewServerKit(c.Params, c.EvaluationKeys(rotations))
}

// Encrypt encodes values at the top level and encrypts them.
func (c *Context) Encrypt(values []float64) (*rlwe.Ciphertext, error) {
	if len(values) > c.Params.MaxSlots() {
		return nil, fmt.Errorf("%d values exceed %d slots", len(values), c.Params.MaxSlots())
	}
	pt := hefloat.NewPlaintext(c.Params, c.Params.MaxLevel())
	if err := c.Encoder.Encode(values, pt); err != nil {
		return nil, err
	}
	return c.Encryptor.EncryptNew(pt)
}

// Decrypt returns every slot of ct.
func (c *Context) Decrypt(ct *rlwe.Ciphertext) ([]float64, error) {
	pt := c.Decryptor.DecryptNew(ct)
	values := make([]float64, c.Params.MaxSlots())
	if err := c.Encoder.Decode(pt, values); err != nil {
		return nil, err
	}
	return values, nil
}

// ServerKit holds what the evaluating party needs: parameters, an encoder for
// its own plaintexts and an evaluator keyed with the client's evaluation keys.
type ServerKit struct {
	Params    hefloat.Parameters
	Encoder   *hefloat.Encoder
	Evaluator *hefloat.Evaluator
}

// NewServerKit builds a ServerKit from received evaluation keys.
func NewServerKit(params hefloat.Parameters, evk rlwe.EvaluationKeySet) *ServerKit {
	return &ServerKit{
		Params:    params,
		Encoder:   hefloat.NewEncoder(params),
		Evaluator: hefloat.NewEvaluator(params, evk),
	}
}

// SumRotations lists the left rotations 1, 2, 4, … below block needed to
// fold a block of slots into its first slot.
func SumRotations(block int) []int {
	var rots []int
	for r := 1; r < block; r <<= 1 {
		rots = append(rots, r)
	}
	return rots
}
