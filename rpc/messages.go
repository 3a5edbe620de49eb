// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package rpc

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/types"
)

type GetPoolInfoRequest struct{}

type GetPoolInfoResponse struct {
	Network   string         `json:"network"`
	Token     common.Address `json:"token"`
	Root      types.ID       `json:"root"`
	NumLeaves uint64         `json:"num_leaves"`
	Capacity  uint64         `json:"capacity"`
}

// SubmitTransactionRequest carries a transaction in the ABI encoding
// used for bridge payloads.
type SubmitTransactionRequest struct {
	Payload []byte `json:"payload"`
}

// TransactionReceipt reports an applied transaction. SettlementError
// is set if the transaction was applied but its funds did not move.
type TransactionReceipt struct {
	Txid            types.ID       `json:"txid"`
	Indexes         []uint64       `json:"indexes"`
	Root            types.ID       `json:"root"`
	Deposit         types.Amount   `json:"deposit"`
	Withdrawal      types.Amount   `json:"withdrawal"`
	Recipient       common.Address `json:"recipient"`
	ToL1            bool           `json:"to_l1"`
	Fee             types.Amount   `json:"fee"`
	SettlementError string         `json:"settlement_error,omitempty"`
}

// RelayDepositRequest locks amount on the L1 side of the bridge and
// relays it to the pool with the attached deposit payload.
type RelayDepositRequest struct {
	Token   common.Address `json:"token"`
	Amount  types.Amount   `json:"amount"`
	Payload []byte         `json:"payload"`
}

// RelayDepositResponse holds the receipt of an applied deposit. If the
// deposit could not be applied Receipt is nil and PendingDeposit names
// the escrow holding its funds.
type RelayDepositResponse struct {
	Receipt        *TransactionReceipt `json:"receipt,omitempty"`
	PendingDeposit *types.ID           `json:"pending_deposit,omitempty"`
	Reason         string              `json:"reason,omitempty"`
}

type ListPendingDepositsRequest struct{}

type PendingDeposit struct {
	ID        types.ID       `json:"id"`
	Token     common.Address `json:"token"`
	Amount    types.Amount   `json:"amount"`
	Reason    string         `json:"reason"`
	Timestamp time.Time      `json:"timestamp"`
}

type ListPendingDepositsResponse struct {
	Deposits []*PendingDeposit `json:"deposits"`
}

// ResubmitDepositRequest retries a pending deposit with a payload
// built against the current root.
type ResubmitDepositRequest struct {
	ID      types.ID `json:"id"`
	Payload []byte   `json:"payload"`
}

type RescueDepositRequest struct {
	ID types.ID `json:"id"`
}

type RescueDepositResponse struct{}

type ListStuckTransfersRequest struct{}

type StuckTransfer struct {
	Nonce     uint64         `json:"nonce"`
	Token     common.Address `json:"token"`
	Recipient common.Address `json:"recipient"`
	Amount    types.Amount   `json:"amount"`
	L1Fee     types.Amount   `json:"l1_fee"`
	Signature []byte         `json:"signature"`
}

type ListStuckTransfersResponse struct {
	Transfers []*StuckTransfer `json:"transfers"`
}

type GetNullifierRequest struct {
	Nullifier types.Nullifier `json:"nullifier"`
}

type GetNullifierResponse struct {
	Spent bool `json:"spent"`
}

// GetEventsRequest selects the commitment events starting at leaf
// index From.
type GetEventsRequest struct {
	From uint64 `json:"from"`
}

type CommitmentEvent struct {
	Index           uint64   `json:"index"`
	Commitment      types.ID `json:"commitment"`
	EncryptedOutput []byte   `json:"encrypted_output"`
	Root            types.ID `json:"root"`
}

type GetEventsResponse struct {
	Events []*CommitmentEvent `json:"events"`
}
