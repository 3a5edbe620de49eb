// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/federava/week2/crypto"
	"github.com/federava/week2/params/hash"
)

const (
	// AmountLen is the serialized size of a note amount.
	AmountLen = 8
	// BlindingLen is the serialized size of a note blinding factor.
	BlindingLen = hash.HashSize
	// NotePlaintextLen is the size of a serialized note before encryption.
	NotePlaintextLen = AmountLen + BlindingLen
	// EncryptedNoteLen is the size of an encrypted output.
	EncryptedNoteLen = NotePlaintextLen + crypto.SealOverhead
)

var (
	// ErrNotInserted means the note has no leaf index yet, so its
	// nullifier cannot be derived.
	ErrNotInserted = errors.New("note has not been inserted into the commitment tree")
	// ErrWrongOwner means the keypair does not own the note.
	ErrWrongOwner = errors.New("keypair does not own note")
	// ErrDecryptionFailed means the ciphertext was not addressed to the key.
	ErrDecryptionFailed = errors.New("output decryption failed")
)

// Note is a shielded UTXO. Only its commitment is published; the
// amount, owner and blinding stay with the owner, who learns them
// by decrypting the output attached to the commitment.
type Note struct {
	Amount   Amount
	Owner    *crypto.PublicKey
	Blinding *big.Int

	index    uint64
	inserted bool
}

// NewNote returns a note with the given amount and owner. If blinding
// is nil a fresh random field element is drawn.
func NewNote(amount Amount, owner *crypto.PublicKey, blinding *big.Int) (*Note, error) {
	if owner == nil || !hash.InField(owner.Pubkey) {
		return nil, crypto.ErrInvalidPublicKey
	}
	if blinding == nil {
		b, err := hash.RandomFieldElement(nil)
		if err != nil {
			return nil, err
		}
		blinding = b
	} else if !hash.InField(blinding) {
		return nil, errors.New("blinding is not a field element")
	}
	return &Note{
		Amount:   amount,
		Owner:    owner,
		Blinding: new(big.Int).Set(blinding),
	}, nil
}

// NewDummyNote returns a zero value note owned by a throwaway key.
// Dummy notes pad transactions up to a circuit arity and are treated
// as inserted at index zero so their nullifiers can be derived.
func NewDummyNote() (*Note, *crypto.Keypair, error) {
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, nil, err
	}
	n, err := NewNote(0, kp.PublicKey(), nil)
	if err != nil {
		return nil, nil, err
	}
	n.SetIndex(0)
	return n, kp, nil
}

// Commitment returns poseidon(amount, pubkey, blinding).
func (n *Note) Commitment() ID {
	h := hash.Poseidon(n.Amount.BigInt(), n.Owner.Pubkey, n.Blinding)
	return NewIDFromField(h)
}

// SetIndex records the leaf index the note's commitment was inserted at.
func (n *Note) SetIndex(index uint64) {
	n.index = index
	n.inserted = true
}

// Index returns the leaf index and whether it is known.
func (n *Note) Index() (uint64, bool) {
	return n.index, n.inserted
}

// IsDummy returns whether the note carries no value.
func (n *Note) IsDummy() bool {
	return n.Amount == 0
}

// Nullifier derives the note's nullifier. Only the owning keypair
// can do this, and only once the note has a leaf index.
func (n *Note) Nullifier(kp *crypto.Keypair) (Nullifier, error) {
	if !n.inserted {
		return Nullifier{}, ErrNotInserted
	}
	if !kp.Owns(n.Owner) {
		return Nullifier{}, ErrWrongOwner
	}
	commitment := n.Commitment()
	sig := kp.Sign(commitment.Field(), n.index)
	return CalculateNullifier(commitment, n.index, sig), nil
}

// Serialize returns the note plaintext: the big endian amount
// followed by the blinding factor.
func (n *Note) Serialize() []byte {
	ser := make([]byte, 0, NotePlaintextLen)
	ser = append(ser, n.Amount.ToBytes()...)
	return append(ser, hash.FieldBytes(n.Blinding)...)
}

// Encrypt seals the note plaintext to the owner's encryption key.
func (n *Note) Encrypt() ([]byte, error) {
	return n.Owner.Encrypt(n.Serialize())
}

// DecryptNote opens an encrypted output with kp and rebuilds the
// note at the given leaf index. ErrDecryptionFailed is returned if
// the output was not addressed to kp.
func DecryptNote(kp *crypto.Keypair, ciphertext []byte, index uint64) (*Note, error) {
	pt, err := kp.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDecryptionFailed, err)
	}
	if len(pt) != NotePlaintextLen {
		return nil, fmt.Errorf("%w: plaintext length %d", ErrDecryptionFailed, len(pt))
	}
	blinding := new(big.Int).SetBytes(pt[AmountLen:])
	if !hash.InField(blinding) {
		return nil, fmt.Errorf("%w: blinding out of range", ErrDecryptionFailed)
	}
	n := &Note{
		Amount:   Amount(binary.BigEndian.Uint64(pt[:AmountLen])),
		Owner:    kp.PublicKey(),
		Blinding: blinding,
	}
	n.SetIndex(index)
	return n, nil
}
