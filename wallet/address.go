// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/params"
)

// AddressVersion is the only address version currently defined.
const AddressVersion byte = 1

// ErrInvalidAddress means an address string could not be parsed.
var ErrInvalidAddress = errors.New("invalid address")

// Address is the shareable form of a shielded public key. It carries
// no private material: anyone holding it can address notes to the key
// but only the keypair owner can decrypt or spend them.
type Address struct {
	params  *params.PoolParams
	version byte
	pub     *crypto.PublicKey
}

// NewAddress returns the address of the public key.
func NewAddress(pub *crypto.PublicKey, params *params.PoolParams) (*Address, error) {
	if pub == nil || pub.EncryptionKey == nil {
		return nil, fmt.Errorf("%w: missing public key", ErrInvalidAddress)
	}
	return &Address{
		params:  params,
		version: AddressVersion,
		pub:     pub,
	}, nil
}

// PublicKey returns the public key the address encodes.
func (a *Address) PublicKey() *crypto.PublicKey {
	return a.pub
}

// EncodeAddress returns the bech32 string form of the address.
func (a *Address) EncodeAddress() string {
	converted, err := bech32.ConvertBits(a.pub.Bytes(), 8, 5, true)
	if err != nil {
		return ""
	}
	combined := make([]byte, len(converted)+1)
	combined[0] = a.version
	copy(combined[1:], converted)
	ret, err := bech32.EncodeM(a.params.AddressPrefix, combined)
	if err != nil {
		return ""
	}
	return ret
}

func (a *Address) String() string {
	return a.EncodeAddress()
}

// DecodeAddress parses an address string for the given params.
func DecodeAddress(addr string, params *params.PoolParams) (*Address, error) {
	// Decode the bech32 encoded address.
	hrp, data, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if hrp != params.AddressPrefix {
		return nil, fmt.Errorf("%w: prefix %q is not %q", ErrInvalidAddress, hrp, params.AddressPrefix)
	}

	// The first byte of the decoded address is the version, it must exist.
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: no version", ErrInvalidAddress)
	}
	if data[0] != AddressVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidAddress, data[0])
	}

	// The remaining characters of the address returned are grouped into
	// words of 5 bits. In order to restore the original address bytes,
	// we'll need to regroup into 8 bit words.
	regrouped, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	pub, err := crypto.PublicKeyFromBytes(regrouped)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}

	return &Address{
		params:  params,
		version: data[0],
		pub:     pub,
	}, nil
}
