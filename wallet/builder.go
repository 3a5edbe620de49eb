// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/params"
	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
	"github.com/federava/week2/zk"
)

var (
	// ErrUnbalancedTransaction means the outputs do not equal the inputs
	// plus the public amount minus the fee.
	ErrUnbalancedTransaction = errors.New("unbalanced transaction")

	// ErrProofGenerationFailed means the prover refused or failed.
	ErrProofGenerationFailed = errors.New("proof generation failed")

	// ErrSpentInput means an input note's nullifier is already published.
	ErrSpentInput = errors.New("input already spent")

	// ErrTooManyInputs means no circuit accepts the number of inputs.
	ErrTooManyInputs = errors.New("too many inputs")

	// ErrTooManyOutputs means no circuit accepts the number of outputs.
	ErrTooManyOutputs = errors.New("too many outputs")
)

// ChainView is the read access to the pool a builder needs.
type ChainView interface {
	CurrentRoot() types.ID
	MerkleProof(index uint64) (*types.MerkleProof, error)
	NullifierExists(n types.Nullifier) (bool, error)
	Params() *params.PoolParams
}

// Input is a note to spend together with the keypair that owns it.
type Input struct {
	Note *types.Note
	Key  *crypto.Keypair
}

// TxRequest describes the intent a Builder turns into a transaction.
type TxRequest struct {
	Inputs  []Input
	Outputs []*types.Note

	// ExtAmount is the signed amount crossing the pool boundary,
	// including the fee: positive deposits, negative withdraws. If nil
	// it is derived as sum(outputs) - sum(inputs) + fee.
	ExtAmount *int64

	Fee            types.Amount
	Recipient      common.Address
	Relayer        common.Address
	IsL1Withdrawal bool
	L1Recipient    common.Address
	L1Fee          types.Amount
}

// Builder turns TxRequests into proven transactions against the
// current root of the pool.
type Builder struct {
	view   ChainView
	prover zk.Prover
	rand   io.Reader
}

// NewBuilder returns a Builder reading the pool through view.
func NewBuilder(view ChainView, prover zk.Prover) *Builder {
	return &Builder{
		view:   view,
		prover: prover,
		rand:   rand.Reader,
	}
}

// Prepare builds a transaction for the request:
//
//  1. Every input must be inserted and unspent.
//  2. Inputs and outputs are padded with zero value notes up to the
//     smallest circuit that fits.
//  3. The amounts must balance.
//  4. Inputs and outputs are shuffled.
//  5. Outputs are committed and encrypted to their owners and the ext
//     data is hashed.
//  6. The prover is asked for a proof over the public inputs.
//
// The prover is only called once every local check passed.
func (b *Builder) Prepare(ctx context.Context, req *TxRequest) (*transactions.Transaction, error) {
	prms := b.view.Params()
	root := b.view.CurrentRoot()

	nIns, ok := prms.PaddedInputs(len(req.Inputs))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrTooManyInputs, len(req.Inputs))
	}
	if len(req.Outputs) > prms.OutputArity {
		return nil, fmt.Errorf("%w: %d", ErrTooManyOutputs, len(req.Outputs))
	}

	ins := make([]Input, 0, nIns)
	paths := make([][]types.ID, 0, nIns)
	for i, in := range req.Inputs {
		path, err := b.checkInput(in, root)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		ins = append(ins, in)
		paths = append(paths, path)
	}
	for len(ins) < nIns {
		n, kp, err := types.NewDummyNote()
		if err != nil {
			return nil, err
		}
		ins = append(ins, Input{Note: n, Key: kp})
		paths = append(paths, nil)
	}
	outs := append(make([]*types.Note, 0, prms.OutputArity), req.Outputs...)
	for len(outs) < prms.OutputArity {
		n, _, err := types.NewDummyNote()
		if err != nil {
			return nil, err
		}
		outs = append(outs, n)
	}

	extAmount, err := balance(req, ins, outs)
	if err != nil {
		return nil, err
	}

	if err := shuffle(b.rand, len(ins), func(i, j int) {
		ins[i], ins[j] = ins[j], ins[i]
		paths[i], paths[j] = paths[j], paths[i]
	}); err != nil {
		return nil, err
	}
	if err := shuffle(b.rand, len(outs), func(i, j int) {
		outs[i], outs[j] = outs[j], outs[i]
	}); err != nil {
		return nil, err
	}

	tx := &transactions.Transaction{
		Root:              root,
		InputNullifiers:   make([]types.Nullifier, 0, len(ins)),
		OutputCommitments: make([]types.ID, 0, len(outs)),
		PublicAmount:      extAmount,
		ExtData: &transactions.ExtData{
			Recipient:        req.Recipient,
			Relayer:          req.Relayer,
			Fee:              req.Fee,
			EncryptedOutputs: make([][]byte, 0, len(outs)),
			IsL1Withdrawal:   req.IsL1Withdrawal,
			L1Recipient:      req.L1Recipient,
			L1Fee:            req.L1Fee,
		},
	}
	priv := &zk.PrivateInputs{
		Inputs:  make([]zk.InputWitness, 0, len(ins)),
		Outputs: make([]zk.OutputWitness, 0, len(outs)),
	}
	for i, in := range ins {
		nullifier, err := in.Note.Nullifier(in.Key)
		if err != nil {
			return nil, err
		}
		index, _ := in.Note.Index()
		tx.InputNullifiers = append(tx.InputNullifiers, nullifier)
		priv.Inputs = append(priv.Inputs, zk.InputWitness{
			Amount:     in.Note.Amount,
			Blinding:   in.Note.Blinding,
			PrivateKey: in.Key.PrivateKey(),
			Index:      index,
			Path:       paths[i],
		})
	}
	for _, out := range outs {
		ct, err := out.Encrypt()
		if err != nil {
			return nil, err
		}
		tx.OutputCommitments = append(tx.OutputCommitments, out.Commitment())
		tx.ExtData.EncryptedOutputs = append(tx.ExtData.EncryptedOutputs, ct)
		priv.Outputs = append(priv.Outputs, zk.OutputWitness{
			Amount:   out.Amount,
			Pubkey:   out.Owner.Pubkey,
			Blinding: out.Blinding,
		})
	}

	tx.ExtDataHash, err = tx.ComputeExtDataHash()
	if err != nil {
		return nil, err
	}

	circuit, err := zk.CircuitFor(len(ins), len(outs))
	if err != nil {
		return nil, err
	}
	pub := &zk.PublicInputs{
		Root:              tx.Root,
		InputNullifiers:   tx.InputNullifiers,
		OutputCommitments: tx.OutputCommitments,
		PublicAmount:      tx.CircuitAmount(),
		ExtDataHash:       tx.ExtDataHash,
	}
	proof, err := b.prover.Prove(ctx, circuit, priv, pub)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProofGenerationFailed, err)
	}
	tx.Proof = proof

	log.Debug("Transaction prepared", log.Args("circuit", circuit.Name, "root", root.String(), "public amount", extAmount))
	return tx, nil
}

// checkInput returns the merkle path of a spendable input.
func (b *Builder) checkInput(in Input, root types.ID) ([]types.ID, error) {
	if in.Note == nil || in.Key == nil {
		return nil, errors.New("missing note or key")
	}
	nullifier, err := in.Note.Nullifier(in.Key)
	if err != nil {
		return nil, err
	}
	spent, err := b.view.NullifierExists(nullifier)
	if err != nil {
		return nil, err
	}
	if spent {
		return nil, fmt.Errorf("%w: %s", ErrSpentInput, nullifier)
	}
	index, _ := in.Note.Index()
	proof, err := b.view.MerkleProof(index)
	if err != nil {
		return nil, err
	}
	if proof.Leaf != in.Note.Commitment() {
		return nil, fmt.Errorf("note is not in the tree at index %d", index)
	}
	if proof.Root != root {
		// The pool moved on between the two reads.
		return nil, pool.RuleError{ErrorCode: pool.ErrStaleRoot, Description: "root changed while building"}
	}
	return proof.Siblings, nil
}

// balance resolves the external amount and checks
// sum(outputs) = sum(inputs) + extAmount - fee.
func balance(req *TxRequest, ins []Input, outs []*types.Note) (int64, error) {
	sumIns, sumOuts := new(big.Int), new(big.Int)
	for _, in := range ins {
		sumIns.Add(sumIns, in.Note.Amount.BigInt())
	}
	for _, out := range outs {
		sumOuts.Add(sumOuts, out.Amount.BigInt())
	}
	fee := req.Fee.BigInt()

	if req.ExtAmount == nil {
		ext := new(big.Int).Sub(sumOuts, sumIns)
		ext.Add(ext, fee)
		if !ext.IsInt64() {
			return 0, fmt.Errorf("%w: external amount %s out of range", ErrUnbalancedTransaction, ext)
		}
		return ext.Int64(), nil
	}

	expected := new(big.Int).Add(sumIns, big.NewInt(*req.ExtAmount))
	expected.Sub(expected, fee)
	if expected.Cmp(sumOuts) != 0 {
		return 0, fmt.Errorf("%w: inputs %s, external %d, fee %s, outputs %s",
			ErrUnbalancedTransaction, sumIns, *req.ExtAmount, req.Fee, sumOuts)
	}
	if sumOuts.Cmp(hash.FieldModulus()) >= 0 {
		return 0, fmt.Errorf("%w: outputs exceed the field", ErrUnbalancedTransaction)
	}
	return *req.ExtAmount, nil
}

// shuffle is a Fisher-Yates shuffle drawing from r, so the permutation
// is uniform when r is.
func shuffle(r io.Reader, n int, swap func(i, j int)) error {
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(r, big.NewInt(int64(i+1)))
		if err != nil {
			return err
		}
		swap(i, int(j.Int64()))
	}
	return nil
}
