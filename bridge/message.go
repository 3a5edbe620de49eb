// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/federava/week2/types"
	"github.com/libp2p/go-libp2p/core/crypto"
)

// OutboundMessage instructs the L1 side of the bridge to release
// Amount of Token to Recipient, of which L1Fee goes to the unwrapper.
type OutboundMessage struct {
	Nonce     uint64
	ChainID   uint64
	Token     common.Address
	Recipient common.Address
	Amount    types.Amount
	L1Fee     types.Amount
	Signature []byte
}

type outboundABI struct {
	Nonce     uint64
	ChainID   *big.Int
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
	L1Fee     *big.Int
	Signature []byte
}

var (
	outboundType = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "nonce", Type: "uint64"},
		{Name: "chainId", Type: "uint256"},
		{Name: "token", Type: "address"},
		{Name: "recipient", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "l1Fee", Type: "uint256"},
		{Name: "signature", Type: "bytes"},
	})
	outboundArgs = abi.Arguments{{Type: outboundType}}
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

func (m *OutboundMessage) toABI(withSig bool) outboundABI {
	sig := []byte{}
	if withSig && m.Signature != nil {
		sig = m.Signature
	}
	return outboundABI{
		Nonce:     m.Nonce,
		ChainID:   new(big.Int).SetUint64(m.ChainID),
		Token:     m.Token,
		Recipient: m.Recipient,
		Amount:    m.Amount.BigInt(),
		L1Fee:     m.L1Fee.BigInt(),
		Signature: sig,
	}
}

// SigHash returns the keccak256 hash of the message encoded without
// its signature.
func (m *OutboundMessage) SigHash() ([]byte, error) {
	enc, err := outboundArgs.Pack(m.toABI(false))
	if err != nil {
		return nil, err
	}
	return ethcrypto.Keccak256(enc), nil
}

// Sign signs the message with the bridge key.
func (m *OutboundMessage) Sign(key crypto.PrivKey) error {
	h, err := m.SigHash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(h)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// Verify checks the signature against the bridge public key.
func (m *OutboundMessage) Verify(pub crypto.PubKey) (bool, error) {
	h, err := m.SigHash()
	if err != nil {
		return false, err
	}
	return pub.Verify(h, m.Signature)
}

// Serialize returns the ABI encoding of the message.
func (m *OutboundMessage) Serialize() ([]byte, error) {
	return outboundArgs.Pack(m.toABI(true))
}

// Deserialize decodes an ABI encoded message.
func (m *OutboundMessage) Deserialize(data []byte) error {
	out, err := outboundArgs.Unpack(data)
	if err != nil {
		return err
	}
	if len(out) != 1 {
		return errors.New("invalid outbound message")
	}
	dec, ok := abi.ConvertType(out[0], new(outboundABI)).(*outboundABI)
	if !ok {
		return errors.New("invalid outbound message")
	}
	for _, x := range []*big.Int{dec.ChainID, dec.Amount, dec.L1Fee} {
		if !x.IsUint64() {
			return fmt.Errorf("outbound message value %s out of range", x)
		}
	}
	*m = OutboundMessage{
		Nonce:     dec.Nonce,
		ChainID:   dec.ChainID.Uint64(),
		Token:     dec.Token,
		Recipient: dec.Recipient,
		Amount:    types.Amount(dec.Amount.Uint64()),
		L1Fee:     types.Amount(dec.L1Fee.Uint64()),
		Signature: dec.Signature,
	}
	return nil
}
