// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"github.com/libp2p/go-libp2p/core/crypto"
)

// Transport delivers outbound messages to the L1 side of the bridge.
type Transport interface {
	SendToL1(ctx context.Context, msg *OutboundMessage) error
}

// Outbox routes L1 withdrawals: it moves the funds from pool custody
// to the bridge and hands a signed release message to the transport.
// Delivery is fire-and-forget. A message the transport refuses is
// stored as stuck for operators and is not retried.
type Outbox struct {
	ds        repo.Datastore
	ledger    pool.TokenLedger
	bridge    common.Address
	transport Transport
	key       crypto.PrivKey
	chainID   uint64

	nonce uint64
	mtx   sync.Mutex
}

var _ pool.WithdrawalRouter = (*Outbox)(nil)

// NewOutbox returns an Outbox paying into the bridge custody account.
func NewOutbox(ds repo.Datastore, ledger pool.TokenLedger, bridge common.Address, transport Transport, key crypto.PrivKey, chainID uint64) (*Outbox, error) {
	if ds == nil || ledger == nil || transport == nil || key == nil {
		return nil, errors.New("outbox: datastore, ledger, transport and key are required")
	}
	nonce, err := dsFetchOutboundNonce(ds)
	if err != nil {
		return nil, err
	}
	return &Outbox{
		ds:        ds,
		ledger:    ledger,
		bridge:    bridge,
		transport: transport,
		key:       key,
		chainID:   chainID,
		nonce:     nonce,
	}, nil
}

// RouteWithdrawalToL1 implements pool.WithdrawalRouter. The message
// nonce is persisted before the funds leave pool custody. An error is
// returned if either step fails, in which case no funds moved.
func (o *Outbox) RouteWithdrawalToL1(token common.Address, amount types.Amount, l1Recipient common.Address, l1Fee types.Amount) error {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	if err := dsPutOutboundNonce(o.ds, o.nonce+1); err != nil {
		return fmt.Errorf("persisting outbound nonce: %w", err)
	}
	if err := o.ledger.Transfer(token, o.bridge, amount); err != nil {
		if rerr := dsPutOutboundNonce(o.ds, o.nonce); rerr != nil {
			log.WithCaller(true).Warn("Failed to release outbound nonce", log.Args("nonce", o.nonce, "error", rerr))
		}
		return fmt.Errorf("moving withdrawal to bridge custody: %w", err)
	}

	msg := &OutboundMessage{
		Nonce:     o.nonce,
		ChainID:   o.chainID,
		Token:     token,
		Recipient: l1Recipient,
		Amount:    amount,
		L1Fee:     l1Fee,
	}
	o.nonce++

	if err := msg.Sign(o.key); err != nil {
		o.markStuck(msg, err)
		return nil
	}
	if err := o.transport.SendToL1(context.Background(), msg); err != nil {
		o.markStuck(msg, err)
		return nil
	}
	log.Info("Withdrawal routed to L1", log.Args("nonce", msg.Nonce, "recipient", l1Recipient.Hex(), "amount", amount.String()))
	return nil
}

func (o *Outbox) markStuck(msg *OutboundMessage, cause error) {
	log.WithCaller(true).Error("Stuck transfer: outbound bridge message not delivered",
		log.Args("nonce", msg.Nonce, "recipient", msg.Recipient.Hex(), "amount", msg.Amount.String(), "error", cause))
	if err := dsPutStuckMessage(o.ds, msg); err != nil {
		log.WithCaller(true).Error("Failed to persist stuck outbound message", log.Args("nonce", msg.Nonce, "error", err))
	}
}

// StuckTransfers returns the outbound messages the transport refused.
func (o *Outbox) StuckTransfers() ([]*OutboundMessage, error) {
	return dsFetchStuckMessages(o.ds)
}

// ClearStuckTransfer removes a stuck message once an operator has
// delivered it by other means.
func (o *Outbox) ClearStuckTransfer(nonce uint64) error {
	return o.ds.Delete(context.Background(), outboundKey(nonce))
}

// PublicKey returns the key the L1 side verifies messages with.
func (o *Outbox) PublicKey() crypto.PubKey {
	return o.key.GetPublic()
}

func outboundKey(nonce uint64) datastore.Key {
	return datastore.NewKey(fmt.Sprintf("%s%016x", repo.OutboundKeyPrefix, nonce))
}

var outboundNonceKey = datastore.NewKey(repo.OutboundKeyPrefix + "nonce")

func dsPutOutboundNonce(ds repo.Datastore, nonce uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, nonce)
	return ds.Put(context.Background(), outboundNonceKey, b)
}

func dsFetchOutboundNonce(ds repo.Datastore) (uint64, error) {
	b, err := ds.Get(context.Background(), outboundNonceKey)
	if errors.Is(err, datastore.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, errors.New("invalid outbound nonce record")
	}
	return binary.BigEndian.Uint64(b), nil
}

func dsPutStuckMessage(ds repo.Datastore, msg *OutboundMessage) error {
	ser, err := msg.Serialize()
	if err != nil {
		return err
	}
	return ds.Put(context.Background(), outboundKey(msg.Nonce), ser)
}

func dsFetchStuckMessages(ds repo.Datastore) ([]*OutboundMessage, error) {
	q := query.Query{
		Prefix: repo.OutboundKeyPrefix,
		Orders: []query.Order{query.OrderByKey{}},
	}
	results, err := ds.Query(context.Background(), q)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var msgs []*OutboundMessage
	for result, ok := results.NextSync(); ok; result, ok = results.NextSync() {
		if result.Error != nil {
			return nil, result.Error
		}
		if result.Key == outboundNonceKey.String() {
			continue
		}
		msg := new(OutboundMessage)
		if err := msg.Deserialize(result.Value); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
