// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"sync"

	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	datastore "github.com/ipfs/go-datastore"
)

// NullifierSet provides cached access to the nullifier set database.
type NullifierSet struct {
	ds            repo.Datastore
	cachedEntries map[types.Nullifier]bool
	maxEntries    uint
	mtx           sync.RWMutex
}

// NewNullifierSet returns a new NullifierSet. maxEntries controls how
// much memory is used for cache purposes.
func NewNullifierSet(ds repo.Datastore, maxEntries uint) *NullifierSet {
	return &NullifierSet{
		ds:            ds,
		cachedEntries: make(map[types.Nullifier]bool),
		maxEntries:    maxEntries,
		mtx:           sync.RWMutex{},
	}
}

// NullifierExists returns whether or not the nullifier exists in the
// nullifier set. If the entry is cached we'll return from memory, otherwise
// we have to check the disk.
//
// After determining if the nullifier exists we'll update the cache with the
// value. This is useful, for example, if CheckTransaction checks the existence
// of the nullifier, we cache it, then ProcessTransaction doesn't need to hit
// the disk a second time.
func (ns *NullifierSet) NullifierExists(nullifier types.Nullifier) (bool, error) {
	ns.mtx.Lock()
	defer ns.mtx.Unlock()

	exists, ok := ns.cachedEntries[nullifier]
	if ok {
		return exists, nil
	}

	exists, err := dsNullifierExists(ns.ds, nullifier)
	if err != nil {
		return false, err
	}

	if ns.maxEntries <= 0 {
		return exists, nil
	}

	ns.limitCache(1)
	ns.cachedEntries[nullifier] = exists
	return exists, nil
}

// CheckNullifiers returns an ErrDoubleSpend rule error naming the first
// nullifier that is either already in the set or repeated within the
// batch.
func (ns *NullifierSet) CheckNullifiers(nullifiers []types.Nullifier) error {
	seen := make(map[types.Nullifier]bool, len(nullifiers))
	for _, n := range nullifiers {
		if seen[n] {
			return ruleError(ErrDoubleSpend, "duplicate nullifier "+n.String()+" in transaction")
		}
		seen[n] = true

		exists, err := ns.NullifierExists(n)
		if err != nil {
			return err
		}
		if exists {
			return ruleError(ErrDoubleSpend, "nullifier "+n.String()+" already spent")
		}
	}
	return nil
}

// AddNullifiers adds the nullifiers to the database using the provided
// database transaction. Nothing is visible until the transaction is
// committed so the batch lands whole or not at all.
func (ns *NullifierSet) AddNullifiers(dbtx datastore.Txn, nullifiers []types.Nullifier) error {
	ns.mtx.Lock()
	defer ns.mtx.Unlock()

	// We're just going to delete the cached entry here rather than
	// update the cache. The reason for this it's unlikely we'll need
	// to check if the nullifier exists again after adding it (this would
	// only happen in a double spend). We also want to avoid having an
	// incorrect value in the cache in case the database transaction is
	// discarded.
	for _, n := range nullifiers {
		delete(ns.cachedEntries, n)
	}

	return dsPutNullifiers(dbtx, nullifiers)
}

func (ns *NullifierSet) limitCache(newEntries int) {
	// If adding this new entry will put us over the max number of allowed
	// entries, then evict an entry.
	i := 0
	if uint(len(ns.cachedEntries)+newEntries) > ns.maxEntries {
		// Remove a random entry from the map. Relying on the random
		// starting point of Go's map iteration.
		for nullifier := range ns.cachedEntries {
			delete(ns.cachedEntries, nullifier)
			i++
			if i >= newEntries {
				break
			}
		}
	}
}
