// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testSerializedID = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

func TestNewIDFromString(t *testing.T) {
	id, err := NewIDFromString(testSerializedID)
	if err != nil {
		t.Error(err)
	}

	if id.String() != testSerializedID {
		t.Errorf("Expected %s, got %s", testSerializedID, id.String())
	}

	_, err = NewIDFromString(testSerializedID + "00")
	assert.ErrorIs(t, err, ErrIDStrSize)
}

func TestIDJSON(t *testing.T) {
	id, err := NewIDFromString(testSerializedID)
	assert.NoError(t, err)

	j, err := json.Marshal(id)
	assert.NoError(t, err)
	assert.Equal(t, `"`+testSerializedID+`"`, string(j))

	var id2 ID
	assert.NoError(t, json.Unmarshal(j, &id2))
	assert.Equal(t, id, id2)

	n := NewNullifier(id.Bytes())
	j, err = json.Marshal(n)
	assert.NoError(t, err)

	var n2 Nullifier
	assert.NoError(t, json.Unmarshal(j, &n2))
	assert.Equal(t, n, n2)

	_, err = NewNullifierFromString("zz")
	assert.Error(t, err)
}

func TestIDField(t *testing.T) {
	x := big.NewInt(123456789)
	id := NewIDFromField(x)
	assert.Equal(t, 0, x.Cmp(id.Field()))
}
