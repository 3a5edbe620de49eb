// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
)

// DepositRelayer locks funds on L1 and hands the bridged deposit to the
// pool's bridge adapter.
type DepositRelayer interface {
	RelayDeposit(ctx context.Context, token common.Address, amount types.Amount, payload []byte) (*pool.Receipt, error)
}
