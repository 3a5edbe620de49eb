// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
)

// BridgeLedger is the token ledger the mock bridge mints into and
// escrows from.
type BridgeLedger interface {
	Mint(token, to common.Address, amount types.Amount) error
	Escrow(token, from common.Address, depositID types.ID, amount types.Amount) error
}

// MockOmniBridge is an in-memory stand-in for the omni bridge. Inbound
// it mints the bridged tokens to its own account, escrows them into the
// pool and calls the adapter. Outbound it records the messages it is
// asked to deliver.
type MockOmniBridge struct {
	ledger  BridgeLedger
	adapter *Adapter
	account common.Address

	sent    []*OutboundMessage
	fail    error
	relayed uint64
	mtx     sync.Mutex
}

var _ Transport = (*MockOmniBridge)(nil)

// NewMockOmniBridge returns a mock bridge whose local custody account
// is account.
func NewMockOmniBridge(ledger BridgeLedger, account common.Address) *MockOmniBridge {
	return &MockOmniBridge{
		ledger:  ledger,
		account: account,
	}
}

// SetAdapter connects the inbound side to the adapter.
func (m *MockOmniBridge) SetAdapter(adapter *Adapter) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.adapter = adapter
}

// RelayDeposit delivers amount of token locked on L1 together with
// the deposit payload. Every relayed transfer gets its own deposit id,
// derived like an omni bridge message id, and its funds are escrowed
// under it.
func (m *MockOmniBridge) RelayDeposit(ctx context.Context, token common.Address, amount types.Amount, payload []byte) (*pool.Receipt, error) {
	m.mtx.Lock()
	adapter := m.adapter
	m.relayed++
	id := messageID(token, amount, m.relayed, payload)
	m.mtx.Unlock()

	if err := m.ledger.Mint(token, m.account, amount); err != nil {
		return nil, err
	}
	if err := m.ledger.Escrow(token, m.account, id, amount); err != nil {
		return nil, err
	}
	return adapter.OnBridgedDeposit(ctx, id, token, amount, payload)
}

// SendToL1 implements Transport.
func (m *MockOmniBridge) SendToL1(ctx context.Context, msg *OutboundMessage) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

// SetFailure makes SendToL1 return err. A nil err restores delivery.
func (m *MockOmniBridge) SetFailure(err error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.fail = err
}

// Sent returns the delivered outbound messages.
func (m *MockOmniBridge) Sent() []*OutboundMessage {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	sent := make([]*OutboundMessage, len(m.sent))
	copy(sent, m.sent)
	return sent
}

// Account returns the bridge custody account on the local chain.
func (m *MockOmniBridge) Account() common.Address {
	return m.account
}

func messageID(token common.Address, amount types.Amount, seq uint64, payload []byte) types.ID {
	data := make([]byte, 0, common.AddressLength+16+len(payload))
	data = append(data, token.Bytes()...)
	data = append(data, amount.ToBytes()...)
	data = binary.BigEndian.AppendUint64(data, seq)
	data = append(data, payload...)
	return types.NewIDFromData(data)
}
