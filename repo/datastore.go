// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"github.com/ipfs/go-datastore"
)

// Datastore is the storage backend of the pool, the ledger and the
// bridge. All pool state transitions are written through a single
// transaction so either every key of a transition is persisted or
// none is.
type Datastore interface {
	datastore.Datastore
	datastore.Batching
	datastore.PersistentDatastore
	datastore.TxnDatastore
}
