// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

import (
	"context"
	"crypto/rand"

	"github.com/ipfs/go-datastore"
	"github.com/libp2p/go-libp2p/core/crypto"
)

// HasBridgeKey returns whether a bridge signing key has been stored.
func HasBridgeKey(ds Datastore) (bool, error) {
	return ds.Has(context.Background(), datastore.NewKey(BridgeKeyDatastoreKey))
}

// LoadBridgeKey loads the key outbound bridge messages are signed with.
func LoadBridgeKey(ds Datastore) (crypto.PrivKey, error) {
	keyBytes, err := ds.Get(context.Background(), datastore.NewKey(BridgeKeyDatastoreKey))
	if err != nil {
		return nil, err
	}
	return crypto.UnmarshalPrivateKey(keyBytes)
}

// PutBridgeKey persists the bridge signing key.
func PutBridgeKey(ds Datastore, key crypto.PrivKey) error {
	keyBytes, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return err
	}
	return ds.Put(context.Background(), datastore.NewKey(BridgeKeyDatastoreKey), keyBytes)
}

// GenerateBridgeKey returns a new ed25519 signing key.
func GenerateBridgeKey() (crypto.PrivKey, error) {
	privkey, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, err
	}
	return privkey, nil
}

// LoadOrCreateBridgeKey returns the stored bridge key, generating and
// storing one on first use.
func LoadOrCreateBridgeKey(ds Datastore) (crypto.PrivKey, error) {
	has, err := HasBridgeKey(ds)
	if err != nil {
		return nil, err
	}
	if has {
		return LoadBridgeKey(ds)
	}
	key, err := GenerateBridgeKey()
	if err != nil {
		return nil, err
	}
	if err := PutBridgeKey(ds, key); err != nil {
		return nil, err
	}
	return key, nil
}
