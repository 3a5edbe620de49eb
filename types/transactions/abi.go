// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package transactions

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/federava/week2/types"
)

// proofArgsABI mirrors the Solidity Proof struct. Field names and
// types must match what abi.Arguments.Unpack generates for the tuple.
type proofArgsABI struct {
	Proof             []byte
	Root              [32]byte
	InputNullifiers   [][32]byte
	OutputCommitments [][32]byte
	PublicAmount      *big.Int
	ExtDataHash       [32]byte
}

// extDataABI mirrors the Solidity ExtData struct.
type extDataABI struct {
	Recipient        common.Address
	ExtAmount        *big.Int
	Relayer          common.Address
	Fee              *big.Int
	EncryptedOutputs [][]byte
	IsL1Withdrawal   bool
	L1Recipient      common.Address
	L1Fee            *big.Int
}

var (
	proofArgsType = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "proof", Type: "bytes"},
		{Name: "root", Type: "bytes32"},
		{Name: "inputNullifiers", Type: "bytes32[]"},
		{Name: "outputCommitments", Type: "bytes32[]"},
		{Name: "publicAmount", Type: "int256"},
		{Name: "extDataHash", Type: "bytes32"},
	})
	extDataType = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "recipient", Type: "address"},
		{Name: "extAmount", Type: "int256"},
		{Name: "relayer", Type: "address"},
		{Name: "fee", Type: "uint256"},
		{Name: "encryptedOutputs", Type: "bytes[]"},
		{Name: "isL1Withdrawal", Type: "bool"},
		{Name: "l1Recipient", Type: "address"},
		{Name: "l1Fee", Type: "uint256"},
	})

	extDataArgs = abi.Arguments{{Type: extDataType}}
	payloadArgs = abi.Arguments{{Type: proofArgsType}, {Type: extDataType}}
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

func keccak256(data []byte) []byte {
	return crypto.Keccak256(data)
}

func toExtDataABI(e *ExtData, extAmount int64) extDataABI {
	outputs := e.EncryptedOutputs
	if outputs == nil {
		outputs = [][]byte{}
	}
	return extDataABI{
		Recipient:        e.Recipient,
		ExtAmount:        big.NewInt(extAmount),
		Relayer:          e.Relayer,
		Fee:              e.Fee.BigInt(),
		EncryptedOutputs: outputs,
		IsL1Withdrawal:   e.IsL1Withdrawal,
		L1Recipient:      e.L1Recipient,
		L1Fee:            e.L1Fee.BigInt(),
	}
}

// EncodeBridgePayload returns abi.encode(proofArgs, extData). This is
// the payload an L1 client attaches to a bridged deposit.
func EncodeBridgePayload(tx *Transaction) ([]byte, error) {
	if tx.ExtData == nil {
		return nil, fmt.Errorf("%w: missing ext data", ErrMalformedPayload)
	}
	args := proofArgsABI{
		Proof:             tx.Proof,
		Root:              tx.Root,
		InputNullifiers:   make([][32]byte, len(tx.InputNullifiers)),
		OutputCommitments: make([][32]byte, len(tx.OutputCommitments)),
		PublicAmount:      big.NewInt(tx.PublicAmount),
		ExtDataHash:       tx.ExtDataHash,
	}
	if args.Proof == nil {
		args.Proof = []byte{}
	}
	for i, n := range tx.InputNullifiers {
		args.InputNullifiers[i] = n
	}
	for i, c := range tx.OutputCommitments {
		args.OutputCommitments[i] = c
	}
	return payloadArgs.Pack(args, toExtDataABI(tx.ExtData, tx.PublicAmount))
}

// DecodeBridgePayload parses a payload produced by EncodeBridgePayload.
// The public amount carried in the proof args must agree with the ext
// amount in the ext data tuple.
func DecodeBridgePayload(data []byte) (*Transaction, error) {
	out, err := payloadArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("%w: expected 2 values, got %d", ErrMalformedPayload, len(out))
	}
	args, ok := abi.ConvertType(out[0], new(proofArgsABI)).(*proofArgsABI)
	if !ok {
		return nil, fmt.Errorf("%w: proof args", ErrMalformedPayload)
	}
	ext, ok := abi.ConvertType(out[1], new(extDataABI)).(*extDataABI)
	if !ok {
		return nil, fmt.Errorf("%w: ext data", ErrMalformedPayload)
	}

	if !args.PublicAmount.IsInt64() {
		return nil, fmt.Errorf("%w: public amount out of range", ErrMalformedPayload)
	}
	if args.PublicAmount.Cmp(ext.ExtAmount) != 0 {
		return nil, fmt.Errorf("%w: public amount disagrees with ext amount", ErrMalformedPayload)
	}
	if !ext.Fee.IsUint64() || !ext.L1Fee.IsUint64() {
		return nil, fmt.Errorf("%w: fee out of range", ErrMalformedPayload)
	}

	tx := &Transaction{
		Root:              types.NewID(args.Root[:]),
		InputNullifiers:   make([]types.Nullifier, len(args.InputNullifiers)),
		OutputCommitments: make([]types.ID, len(args.OutputCommitments)),
		PublicAmount:      args.PublicAmount.Int64(),
		ExtDataHash:       types.NewID(args.ExtDataHash[:]),
		Proof:             args.Proof,
		ExtData: &ExtData{
			Recipient:        ext.Recipient,
			Relayer:          ext.Relayer,
			Fee:              types.Amount(ext.Fee.Uint64()),
			EncryptedOutputs: ext.EncryptedOutputs,
			IsL1Withdrawal:   ext.IsL1Withdrawal,
			L1Recipient:      ext.L1Recipient,
			L1Fee:            types.Amount(ext.L1Fee.Uint64()),
		},
	}
	for i, n := range args.InputNullifiers {
		tx.InputNullifiers[i] = types.NewNullifier(n[:])
	}
	for i, c := range args.OutputCommitments {
		tx.OutputCommitments[i] = types.NewID(c[:])
	}
	return tx, nil
}
