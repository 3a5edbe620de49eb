// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/holiman/uint256"
	datastore "github.com/ipfs/go-datastore"
)

type reader interface {
	Get(ctx context.Context, key datastore.Key) ([]byte, error)
}

func balanceKey(token, holder common.Address) datastore.Key {
	return datastore.NewKey(repo.LedgerBalanceKeyPrefix + strings.ToLower(token.Hex()) + "/" + strings.ToLower(holder.Hex()))
}

func escrowKey(token common.Address) datastore.Key {
	return datastore.NewKey(repo.LedgerEscrowKeyPrefix + strings.ToLower(token.Hex()))
}

func ticketKey(token common.Address, id types.ID) datastore.Key {
	return datastore.NewKey(repo.LedgerTicketKeyPrefix + strings.ToLower(token.Hex()) + "/" + id.String())
}

// fetchUint returns zero for a missing key.
func fetchUint(r reader, key datastore.Key) (*uint256.Int, error) {
	b, err := r.Get(context.Background(), key)
	if errors.Is(err, datastore.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}

func putUint(dbtx datastore.Txn, key datastore.Key, x *uint256.Int) error {
	b := x.Bytes32()
	return dbtx.Put(context.Background(), key, b[:])
}
