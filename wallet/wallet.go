// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"sort"
	"sync"

	"github.com/federava/week2/crypto"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
)

// ErrInsufficientFunds means the unspent notes do not cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// NullifierChecker reports whether a nullifier has been published.
type NullifierChecker interface {
	NullifierExists(n types.Nullifier) (bool, error)
}

// Wallet tracks the notes owned by a single keypair.
type Wallet struct {
	key    *crypto.Keypair
	view   NullifierChecker
	notes  map[uint64]*types.Note
	synced uint64
	mtx    sync.RWMutex
}

// NewWallet returns an empty wallet for kp. Nullifiers are checked
// against checker to tell spent notes from unspent ones.
func NewWallet(kp *crypto.Keypair, checker NullifierChecker) *Wallet {
	return &Wallet{
		key:   kp,
		view:  checker,
		notes: make(map[uint64]*types.Note),
	}
}

// Key returns the wallet keypair.
func (w *Wallet) Key() *crypto.Keypair {
	return w.key
}

// PublicKey returns the public key senders address notes to.
func (w *Wallet) PublicKey() *crypto.PublicKey {
	return w.key.PublicKey()
}

// SyncHeight returns the number of leaves the wallet has scanned.
func (w *Wallet) SyncHeight() uint64 {
	w.mtx.RLock()
	defer w.mtx.RUnlock()
	return w.synced
}

// Sync scans events for notes owned by the wallet. Events below the
// current sync height are skipped.
func (w *Wallet) Sync(events []*pool.CommitmentEvent) int {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	added := 0
	for _, ev := range events {
		if ev.Index < w.synced {
			continue
		}
		if n := TryDecrypt(w.key, ev); n != nil && n.Amount > 0 {
			w.notes[ev.Index] = n
			added++
		}
		w.synced = ev.Index + 1
	}
	if added > 0 {
		log.Debug("Wallet found notes", log.Args("count", added, "height", w.synced))
	}
	return added
}

// Unspent returns the notes whose nullifier has not been published,
// ordered by leaf index.
func (w *Wallet) Unspent() ([]*types.Note, error) {
	w.mtx.RLock()
	defer w.mtx.RUnlock()

	indexes := make([]uint64, 0, len(w.notes))
	for i := range w.notes {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })

	unspent := make([]*types.Note, 0, len(indexes))
	for _, i := range indexes {
		n := w.notes[i]
		nullifier, err := n.Nullifier(w.key)
		if err != nil {
			return nil, err
		}
		spent, err := w.view.NullifierExists(nullifier)
		if err != nil {
			return nil, err
		}
		if !spent {
			unspent = append(unspent, n)
		}
	}
	return unspent, nil
}

// Balance returns the sum of the unspent notes.
func (w *Wallet) Balance() (types.Amount, error) {
	unspent, err := w.Unspent()
	if err != nil {
		return 0, err
	}
	var total types.Amount
	for _, n := range unspent {
		total += n.Amount
	}
	return total, nil
}

// SelectInputs returns unspent notes, largest first, until they cover
// amount. At most max notes are selected.
func (w *Wallet) SelectInputs(amount types.Amount, max int) ([]Input, error) {
	unspent, err := w.Unspent()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(unspent, func(a, b int) bool { return unspent[a].Amount > unspent[b].Amount })

	var (
		total  types.Amount
		inputs []Input
	)
	for _, n := range unspent {
		if total >= amount && len(inputs) > 0 {
			break
		}
		if len(inputs) == max {
			return nil, ErrInsufficientFunds
		}
		inputs = append(inputs, Input{Note: n, Key: w.key})
		total += n.Amount
	}
	if total < amount {
		return nil, ErrInsufficientFunds
	}
	return inputs, nil
}
