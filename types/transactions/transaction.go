// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package transactions

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/types"
)

// ErrMalformedPayload means a bridge payload could not be decoded.
var ErrMalformedPayload = errors.New("malformed transaction payload")

// ExtData is the part of a transaction the circuit does not see
// directly. It is bound to the proof through its hash.
type ExtData struct {
	// Recipient receives withdrawn funds on the local chain. For L1
	// withdrawals it is the L1 destination unless L1Recipient is set.
	Recipient common.Address
	// Relayer receives Fee.
	Relayer common.Address
	// Fee is paid out of the pool to the relayer.
	Fee types.Amount
	// EncryptedOutputs holds one ciphertext per output commitment,
	// in the same order.
	EncryptedOutputs [][]byte
	// IsL1Withdrawal routes a withdrawal through the bridge.
	IsL1Withdrawal bool
	// L1Recipient optionally overrides Recipient as the L1 destination.
	L1Recipient common.Address
	// L1Fee is forwarded to the L1 unwrapper with the bridged funds.
	L1Fee types.Amount
}

// Hash returns keccak256(abi.encode(extData)) reduced into the field.
// The external amount is part of the encoded tuple.
func (e *ExtData) Hash(extAmount int64) (types.ID, error) {
	enc, err := extDataArgs.Pack(toExtDataABI(e, extAmount))
	if err != nil {
		return types.ID{}, err
	}
	return types.NewIDFromField(hash.ToField(keccak256(enc))), nil
}

// L1Destination returns the address bridged funds are delivered to.
func (e *ExtData) L1Destination() common.Address {
	if e.L1Recipient != (common.Address{}) {
		return e.L1Recipient
	}
	return e.Recipient
}

// Transaction is a proof gated state transition of the pool. It
// spends the notes behind InputNullifiers, creates the notes behind
// OutputCommitments and moves PublicAmount across the pool boundary.
type Transaction struct {
	Root              types.ID
	InputNullifiers   []types.Nullifier
	OutputCommitments []types.ID
	// PublicAmount is the signed external flow including the fee:
	// positive for deposits, negative for withdrawals.
	PublicAmount int64
	ExtDataHash  types.ID
	Proof        []byte
	ExtData      *ExtData

	cachedTxid []byte
}

// ID returns the txid: the hash of the serialized transaction. The
// result is cached.
func (tx *Transaction) ID() types.ID {
	if len(tx.cachedTxid) > 0 {
		return types.NewID(tx.cachedTxid)
	}
	ser, err := tx.Serialize()
	if err != nil {
		return types.ID{}
	}
	id := types.NewIDFromData(ser)
	tx.cachedTxid = id.Bytes()
	return id
}

// Serialize returns the ABI bridge payload encoding of the transaction.
func (tx *Transaction) Serialize() ([]byte, error) {
	return EncodeBridgePayload(tx)
}

// Deserialize decodes a bridge payload into the transaction.
func (tx *Transaction) Deserialize(data []byte) error {
	newTx, err := DecodeBridgePayload(data)
	if err != nil {
		return err
	}
	*tx = *newTx
	return nil
}

// ComputeExtDataHash hashes the transaction's ext data together with
// its public amount.
func (tx *Transaction) ComputeExtDataHash() (types.ID, error) {
	if tx.ExtData == nil {
		return types.ID{}, errors.New("missing ext data")
	}
	return tx.ExtData.Hash(tx.PublicAmount)
}

// Fee returns the relayer fee or zero if the ext data is missing.
func (tx *Transaction) Fee() types.Amount {
	if tx.ExtData == nil {
		return 0
	}
	return tx.ExtData.Fee
}

// CircuitAmount returns the public amount as the circuit sees it.
func (tx *Transaction) CircuitAmount() *big.Int {
	return CircuitPublicAmount(tx.PublicAmount, tx.Fee())
}

// CircuitPublicAmount returns (extAmount - fee) mod p. Negative values
// wrap around the field so sum(outputs) = sum(inputs) + amount holds
// in field arithmetic.
func CircuitPublicAmount(extAmount int64, fee types.Amount) *big.Int {
	a := new(big.Int).Sub(big.NewInt(extAmount), fee.BigInt())
	return a.Mod(a, hash.FieldModulus())
}
