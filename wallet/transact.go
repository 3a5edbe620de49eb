// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types/transactions"
)

// DefaultRetryTimeout bounds how long Transact keeps rebuilding a
// transaction whose root went stale.
const DefaultRetryTimeout = time.Minute

// Submitter accepts a transaction into the pool.
type Submitter interface {
	ProcessTransaction(tx *transactions.Transaction) (*pool.Receipt, error)
}

// Transact builds and submits the request. If the pool rejects the
// transaction because its root is no longer current the transaction is
// rebuilt against the new root and resubmitted with an exponential
// backoff. Any other error is returned immediately.
//
// A receipt is returned together with a *pool.SettlementError when the
// transaction was applied but its funds could not be moved.
func Transact(ctx context.Context, b *Builder, s Submitter, req *TxRequest) (*pool.Receipt, error) {
	var (
		receipt  *pool.Receipt
		attempts int
	)
	op := func() error {
		attempts++
		tx, err := b.Prepare(ctx, req)
		if err != nil {
			if pool.ErrorIs(err, pool.ErrStaleRoot) {
				return err
			}
			return backoff.Permanent(err)
		}
		r, err := s.ProcessTransaction(tx)
		var serr *pool.SettlementError
		switch {
		case err == nil:
			receipt = r
			return nil
		case errors.As(err, &serr):
			receipt = r
			return backoff.Permanent(err)
		case pool.ErrorIs(err, pool.ErrStaleRoot):
			log.Debug("Root went stale, rebuilding transaction", log.Args("attempt", attempts))
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     50 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         time.Second,
		MaxElapsedTime:      DefaultRetryTimeout,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	return receipt, err
}
