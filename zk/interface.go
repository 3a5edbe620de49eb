// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package zk

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/types"
)

const (
	mockNonceLen = 32
	// MockProofLen is the size of a proof produced by MockProver.
	MockProofLen = mockNonceLen + hash.HashSize
)

// ErrUnsatisfied means the witness does not satisfy the circuit.
var ErrUnsatisfied = errors.New("witness does not satisfy circuit")

// Prover is an interface to the zk-snark prove function.
type Prover interface {
	// Prove creates a proof that the private inputs satisfy the
	// circuit for the given public inputs. Proving may take a long
	// time and should return early if ctx is done.
	Prove(ctx context.Context, circuit Circuit, priv *PrivateInputs, pub *PublicInputs) ([]byte, error)
}

// Verifier is an interface to the zk-snark verify function.
type Verifier interface {
	// Verify returns whether the proof is valid for the circuit and
	// public inputs.
	Verify(circuit Circuit, pub *PublicInputs, proof []byte) (bool, error)
}

// MockProver is a mock implementation of the Prover interface.
// It does validate that the witness satisfies the transaction
// constraints, but instead of a snark it returns a nonce and a
// hash binding the nonce to the circuit and public inputs.
type MockProver struct{}

// Prove checks the witness and returns a mock proof.
func (m *MockProver) Prove(ctx context.Context, circuit Circuit, priv *PrivateInputs, pub *PublicInputs) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckWitness(circuit, priv, pub); err != nil {
		return nil, err
	}
	nonce := make([]byte, mockNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return append(nonce, mockBinding(nonce, circuit, pub)...), nil
}

// MockVerifier checks the binding produced by MockProver. SetValid
// can be used to force a result regardless of the proof.
type MockVerifier struct {
	forced bool
	valid  bool
	mtx    sync.RWMutex
}

// Verify returns whether the proof was produced by MockProver for
// exactly this circuit and these public inputs.
func (m *MockVerifier) Verify(circuit Circuit, pub *PublicInputs, proof []byte) (bool, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	if m.forced {
		return m.valid, nil
	}
	if len(proof) != MockProofLen {
		return false, nil
	}
	return bytes.Equal(proof[mockNonceLen:], mockBinding(proof[:mockNonceLen], circuit, pub)), nil
}

// SetValid forces the return value of the Verify method.
func (m *MockVerifier) SetValid(valid bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.forced = true
	m.valid = valid
}

// Reset restores proof checking after SetValid.
func (m *MockVerifier) Reset() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.forced = false
}

func mockBinding(nonce []byte, circuit Circuit, pub *PublicInputs) []byte {
	return hash.CatAndHash([][]byte{nonce, []byte(circuit.Name), pub.Serialize()})
}

// CheckWitness evaluates the transaction constraints in the clear:
//   - every input commitment is poseidon(amount, poseidon(privkey), blinding)
//   - every input nullifier is derived from that commitment and index
//   - every input with a non-zero amount is in the tree under Root
//   - no nullifier repeats
//   - every output commitment matches its witness
//   - sum(inputs) + PublicAmount = sum(outputs) mod p
func CheckWitness(circuit Circuit, priv *PrivateInputs, pub *PublicInputs) error {
	if priv == nil || pub == nil {
		return fmt.Errorf("%w: missing inputs", ErrUnsatisfied)
	}
	if len(priv.Inputs) != circuit.Inputs || len(pub.InputNullifiers) != circuit.Inputs {
		return fmt.Errorf("%w: %s expects %d inputs", ErrUnsatisfied, circuit.Name, circuit.Inputs)
	}
	if len(priv.Outputs) != circuit.Outputs || len(pub.OutputCommitments) != circuit.Outputs {
		return fmt.Errorf("%w: %s expects %d outputs", ErrUnsatisfied, circuit.Name, circuit.Outputs)
	}
	if pub.PublicAmount == nil || !hash.InField(pub.PublicAmount) {
		return fmt.Errorf("%w: public amount is not a field element", ErrUnsatisfied)
	}

	sumIns := new(big.Int)
	seen := make(map[types.Nullifier]bool)
	for i, in := range priv.Inputs {
		if in.PrivateKey == nil || in.Blinding == nil {
			return fmt.Errorf("%w: input %d missing witness", ErrUnsatisfied, i)
		}
		pubkey := hash.Poseidon(in.PrivateKey)
		commitment := types.NewIDFromField(hash.Poseidon(in.Amount.BigInt(), pubkey, in.Blinding))
		index := new(big.Int).SetUint64(in.Index)
		sig := hash.Poseidon(in.PrivateKey, commitment.Field(), index)
		nullifier := types.CalculateNullifier(commitment, in.Index, sig)
		if nullifier != pub.InputNullifiers[i] {
			return fmt.Errorf("%w: input %d nullifier mismatch", ErrUnsatisfied, i)
		}
		if seen[nullifier] {
			return fmt.Errorf("%w: duplicate nullifier %s", ErrUnsatisfied, nullifier)
		}
		seen[nullifier] = true

		if in.Amount != 0 {
			proof := types.MerkleProof{
				Index:    in.Index,
				Leaf:     commitment,
				Siblings: in.Path,
				Root:     pub.Root,
			}
			if !proof.Verify() {
				return fmt.Errorf("%w: input %d is not in the tree", ErrUnsatisfied, i)
			}
		}
		sumIns.Add(sumIns, in.Amount.BigInt())
	}

	sumOuts := new(big.Int)
	for i, out := range priv.Outputs {
		if out.Pubkey == nil || out.Blinding == nil {
			return fmt.Errorf("%w: output %d missing witness", ErrUnsatisfied, i)
		}
		commitment := types.NewIDFromField(hash.Poseidon(out.Amount.BigInt(), out.Pubkey, out.Blinding))
		if commitment != pub.OutputCommitments[i] {
			return fmt.Errorf("%w: output %d commitment mismatch", ErrUnsatisfied, i)
		}
		sumOuts.Add(sumOuts, out.Amount.BigInt())
	}

	lhs := new(big.Int).Add(sumIns, pub.PublicAmount)
	lhs.Mod(lhs, hash.FieldModulus())
	if lhs.Cmp(new(big.Int).Mod(sumOuts, hash.FieldModulus())) != 0 {
		return fmt.Errorf("%w: amounts do not balance", ErrUnsatisfied)
	}
	return nil
}
