// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/federava/week2/repo"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"
)

var _ repo.Datastore = (*MapDatastore)(nil)

// MapDatastore is an in-memory repo.Datastore. Transactions stage
// their writes and apply them atomically on commit.
type MapDatastore struct {
	*dssync.MutexDatastore
	commitMtx sync.Mutex
}

func NewMapDatastore() *MapDatastore {
	return &MapDatastore{MutexDatastore: dssync.MutexWrap(datastore.NewMapDatastore())}
}

func (ds *MapDatastore) DiskUsage(ctx context.Context) (uint64, error) {
	return 0, nil
}

func (ds *MapDatastore) NewTransaction(ctx context.Context, readOnly bool) (datastore.Txn, error) {
	return &txn{
		readOnly: readOnly,
		ds:       ds,
		puts:     make(map[datastore.Key][]byte),
		deletes:  make(map[datastore.Key]struct{}),
	}, nil
}

type txn struct {
	readOnly bool
	ds       *MapDatastore
	puts     map[datastore.Key][]byte
	deletes  map[datastore.Key]struct{}
}

// Get reads through the staged writes of the transaction.
func (t *txn) Get(ctx context.Context, key datastore.Key) (value []byte, err error) {
	if v, ok := t.puts[key]; ok {
		return v, nil
	}
	if _, ok := t.deletes[key]; ok {
		return nil, datastore.ErrNotFound
	}
	return t.ds.Get(ctx, key)
}

func (t *txn) Has(ctx context.Context, key datastore.Key) (exists bool, err error) {
	if _, ok := t.puts[key]; ok {
		return true, nil
	}
	if _, ok := t.deletes[key]; ok {
		return false, nil
	}
	return t.ds.Has(ctx, key)
}

func (t *txn) GetSize(ctx context.Context, key datastore.Key) (size int, err error) {
	v, err := t.Get(ctx, key)
	if err != nil {
		return -1, err
	}
	return len(v), nil
}

// Query does not see staged writes.
func (t *txn) Query(ctx context.Context, q query.Query) (query.Results, error) {
	return t.ds.Query(ctx, q)
}

func (t *txn) Put(ctx context.Context, key datastore.Key, value []byte) error {
	if t.readOnly {
		return errors.New("transaction is read only")
	}
	delete(t.deletes, key)
	t.puts[key] = value
	return nil
}

func (t *txn) Delete(ctx context.Context, key datastore.Key) error {
	if t.readOnly {
		return errors.New("transaction is read only")
	}
	delete(t.puts, key)
	t.deletes[key] = struct{}{}
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.readOnly {
		return nil
	}
	t.ds.commitMtx.Lock()
	defer t.ds.commitMtx.Unlock()

	for k, v := range t.puts {
		if err := t.ds.Put(ctx, k, v); err != nil {
			return err
		}
	}
	for k := range t.deletes {
		if err := t.ds.Delete(ctx, k); err != nil {
			return err
		}
	}
	t.Discard(ctx)
	return nil
}

func (t *txn) Discard(ctx context.Context) {
	t.puts = make(map[datastore.Key][]byte)
	t.deletes = make(map[datastore.Key]struct{})
}
