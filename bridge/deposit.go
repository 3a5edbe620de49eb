// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
)

// PendingDeposit is a bridged deposit whose funds sit in pool escrow
// but whose transaction could not be applied.
type PendingDeposit struct {
	ID        types.ID
	Token     common.Address
	Amount    types.Amount
	Payload   []byte
	Reason    string
	Timestamp time.Time
}

type pendingDepositABI struct {
	Token     common.Address
	Amount    *big.Int
	Payload   []byte
	Reason    string
	Timestamp uint64
}

var (
	pendingDepositType = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "payload", Type: "bytes"},
		{Name: "reason", Type: "string"},
		{Name: "timestamp", Type: "uint64"},
	})
	pendingDepositArgs = abi.Arguments{{Type: pendingDepositType}}
)

func depositKey(id types.ID) datastore.Key {
	return datastore.NewKey(repo.DepositKeyPrefix + id.String())
}

func serializePendingDeposit(d *PendingDeposit) ([]byte, error) {
	payload := d.Payload
	if payload == nil {
		payload = []byte{}
	}
	return pendingDepositArgs.Pack(pendingDepositABI{
		Token:     d.Token,
		Amount:    d.Amount.BigInt(),
		Payload:   payload,
		Reason:    d.Reason,
		Timestamp: uint64(d.Timestamp.Unix()),
	})
}

func deserializePendingDeposit(id types.ID, ser []byte) (*PendingDeposit, error) {
	out, err := pendingDepositArgs.Unpack(ser)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, errors.New("invalid pending deposit record")
	}
	dec, ok := abi.ConvertType(out[0], new(pendingDepositABI)).(*pendingDepositABI)
	if !ok || !dec.Amount.IsUint64() {
		return nil, errors.New("invalid pending deposit record")
	}
	return &PendingDeposit{
		ID:        id,
		Token:     dec.Token,
		Amount:    types.Amount(dec.Amount.Uint64()),
		Payload:   dec.Payload,
		Reason:    dec.Reason,
		Timestamp: time.Unix(int64(dec.Timestamp), 0),
	}, nil
}

func dsPutPendingDeposit(ds repo.Datastore, d *PendingDeposit) error {
	ser, err := serializePendingDeposit(d)
	if err != nil {
		return err
	}
	return ds.Put(context.Background(), depositKey(d.ID), ser)
}

func dsFetchPendingDeposit(ds repo.Datastore, id types.ID) (*PendingDeposit, error) {
	ser, err := ds.Get(context.Background(), depositKey(id))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeposit, id)
	}
	if err != nil {
		return nil, err
	}
	return deserializePendingDeposit(id, ser)
}

func dsDeletePendingDeposit(ds repo.Datastore, id types.ID) error {
	return ds.Delete(context.Background(), depositKey(id))
}

func dsFetchPendingDeposits(ds repo.Datastore) ([]*PendingDeposit, error) {
	q := query.Query{
		Prefix: repo.DepositKeyPrefix,
	}
	results, err := ds.Query(context.Background(), q)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var deposits []*PendingDeposit
	for result, ok := results.NextSync(); ok; result, ok = results.NextSync() {
		if result.Error != nil {
			return nil, result.Error
		}
		id, err := types.NewIDFromString(datastore.NewKey(result.Key).Name())
		if err != nil {
			return nil, err
		}
		d, err := deserializePendingDeposit(id, result.Value)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, nil
}
