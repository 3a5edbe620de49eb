// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPolicy(t *testing.T) {
	p, err := applyPolicy(&params.RegtestParams, repo.Policy{
		MaxDepositAmount:    "2",
		MinWithdrawalAmount: "0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2*types.UnitsPerToken, p.MaximumDepositAmount)
	assert.Equal(t, types.UnitsPerToken/10, p.MinimalWithdrawalAmount)
	assert.Equal(t, params.RegtestParams.MaximumFee, p.MaximumFee)

	// The network params are left untouched.
	assert.Equal(t, types.UnitsPerToken, params.RegtestParams.MaximumDepositAmount)

	_, err = applyPolicy(&params.RegtestParams, repo.Policy{MaxFee: "-1"})
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	_, err = applyPolicy(&params.RegtestParams, repo.Policy{MinDepositAmount: "1.5"})
	assert.Error(t, err)
}
