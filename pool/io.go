// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/params/hash"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
)

// leafKey zero pads the index so the keys sort in insertion order.
func leafKey(index uint64) datastore.Key {
	return datastore.NewKey(fmt.Sprintf("%s%016x", repo.LeafKeyPrefix, index))
}

// serializeLeaf encodes commitment || root || encrypted output where
// root is the tree root after the inserting transaction.
func serializeLeaf(ev *CommitmentEvent) []byte {
	ser := make([]byte, 0, hash.HashSize*2+len(ev.EncryptedOutput))
	ser = append(ser, ev.Commitment[:]...)
	ser = append(ser, ev.Root[:]...)
	return append(ser, ev.EncryptedOutput...)
}

func deserializeLeaf(index uint64, ser []byte) (*CommitmentEvent, error) {
	if len(ser) < hash.HashSize*2 {
		return nil, errors.New("leaf record too short")
	}
	encryptedOutput := make([]byte, len(ser)-hash.HashSize*2)
	copy(encryptedOutput, ser[hash.HashSize*2:])
	return &CommitmentEvent{
		Commitment:      types.NewID(ser[:hash.HashSize]),
		Root:            types.NewID(ser[hash.HashSize : hash.HashSize*2]),
		EncryptedOutput: encryptedOutput,
		Index:           index,
	}, nil
}

func dsNullifierExists(ds repo.Datastore, nullifier types.Nullifier) (bool, error) {
	return ds.Has(context.Background(), datastore.NewKey(repo.NullifierKeyPrefix+nullifier.String()))
}

func dsPutNullifiers(dbtx datastore.Txn, nullifiers []types.Nullifier) error {
	for _, n := range nullifiers {
		if err := dbtx.Put(context.Background(), datastore.NewKey(repo.NullifierKeyPrefix+n.String()), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func dsPutLeaf(dbtx datastore.Txn, ev *CommitmentEvent) error {
	return dbtx.Put(context.Background(), leafKey(ev.Index), serializeLeaf(ev))
}

func dsFetchLeaf(ds repo.Datastore, index uint64) (*CommitmentEvent, error) {
	ser, err := ds.Get(context.Background(), leafKey(index))
	if err != nil {
		return nil, err
	}
	return deserializeLeaf(index, ser)
}

// dsFetchLeaves returns every stored commitment in leaf index order.
func dsFetchLeaves(ds repo.Datastore) ([]types.ID, error) {
	q := query.Query{
		Prefix: repo.LeafKeyPrefix,
		Orders: []query.Order{query.OrderByKey{}},
	}

	results, err := ds.Query(context.Background(), q)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	var leaves []types.ID
	for result, ok := results.NextSync(); ok; result, ok = results.NextSync() {
		if result.Error != nil {
			return nil, result.Error
		}
		ev, err := deserializeLeaf(uint64(len(leaves)), result.Value)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, ev.Commitment)
	}
	return leaves, nil
}

func dsPutTreeState(dbtx datastore.Txn, root types.ID, size uint64) error {
	if err := dbtx.Put(context.Background(), datastore.NewKey(repo.TreeRootKey), root.Bytes()); err != nil {
		return err
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, size)
	return dbtx.Put(context.Background(), datastore.NewKey(repo.TreeSizeKey), b)
}

// dsFetchTreeState returns the stored root and leaf count. A fresh
// datastore reports ok == false.
func dsFetchTreeState(ds repo.Datastore) (root types.ID, size uint64, ok bool, err error) {
	rootBytes, err := ds.Get(context.Background(), datastore.NewKey(repo.TreeRootKey))
	if errors.Is(err, datastore.ErrNotFound) {
		return types.ID{}, 0, false, nil
	}
	if err != nil {
		return types.ID{}, 0, false, err
	}
	sizeBytes, err := ds.Get(context.Background(), datastore.NewKey(repo.TreeSizeKey))
	if err != nil {
		return types.ID{}, 0, false, err
	}
	if len(sizeBytes) != 8 {
		return types.ID{}, 0, false, errors.New("invalid tree size record")
	}
	return types.NewID(rootBytes), binary.BigEndian.Uint64(sizeBytes), true, nil
}

func accountKey(owner common.Address) datastore.Key {
	return datastore.NewKey(repo.AccountKeyPrefix + hex.EncodeToString(owner.Bytes()))
}

func dsPutAccount(ds repo.Datastore, owner common.Address, pub *crypto.PublicKey) error {
	return ds.Put(context.Background(), accountKey(owner), pub.Bytes())
}

func dsFetchAccount(ds repo.Datastore, owner common.Address) (*crypto.PublicKey, error) {
	ser, err := ds.Get(context.Background(), accountKey(owner))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return crypto.PublicKeyFromBytes(ser)
}
