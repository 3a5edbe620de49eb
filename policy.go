// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
)

// applyPolicy returns a copy of the network params with the configured
// limits applied. Empty policy fields keep the network default.
func applyPolicy(netParams *params.PoolParams, policy repo.Policy) (*params.PoolParams, error) {
	p := *netParams
	p.InputArities = append([]int(nil), netParams.InputArities...)

	overrides := []struct {
		name  string
		value string
		dest  *types.Amount
	}{
		{"maxdeposit", policy.MaxDepositAmount, &p.MaximumDepositAmount},
		{"mindeposit", policy.MinDepositAmount, &p.MinimumDepositAmount},
		{"minwithdrawal", policy.MinWithdrawalAmount, &p.MinimalWithdrawalAmount},
		{"maxfee", policy.MaxFee, &p.MaximumFee},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		amt, err := types.AmountFromTokens(o.value)
		if err != nil {
			return nil, fmt.Errorf("policy %s: %w", o.name, err)
		}
		*o.dest = amt
	}
	if p.MinimumDepositAmount > p.MaximumDepositAmount {
		return nil, fmt.Errorf("policy: minimum deposit %s exceeds maximum deposit %s", p.MinimumDepositAmount, p.MaximumDepositAmount)
	}
	return &p, nil
}
