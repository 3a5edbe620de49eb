// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

const (
	// Length of nacl ephemeral public key
	EphemeralPublicKeyBytes = 32

	// SealOverhead is the number of bytes an anonymous box adds to the
	// plaintext.
	SealOverhead = EphemeralPublicKeyBytes + box.Overhead
)

// ErrBoxDecryption Nacl box decryption failed
var ErrBoxDecryption = errors.New("failed to decrypt curve25519")

// Encrypt seals the plaintext to the public key with an ephemeral
// sender key (x25519-xsalsa20-poly1305).
func Encrypt(pubKey *Curve25519PublicKey, plaintext []byte) ([]byte, error) {
	if pubKey == nil {
		return nil, errors.New("nil curve25519 public key")
	}
	return box.SealAnonymous(nil, plaintext, &pubKey.k, rand.Reader)
}

// Decrypt opens a ciphertext produced by Encrypt. It returns
// ErrBoxDecryption if the ciphertext was not sealed to this key
// or has been tampered with.
func Decrypt(privKey *Curve25519PrivateKey, ciphertext []byte) ([]byte, error) {
	if privKey == nil {
		return nil, errors.New("nil curve25519 private key")
	}
	plaintext, ok := box.OpenAnonymous(nil, ciphertext, &privKey.pub, &privKey.priv)
	if !ok {
		return nil, ErrBoxDecryption
	}
	return plaintext, nil
}
