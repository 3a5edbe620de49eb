// Copyright (c) 2022 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/harness"
	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/types"
	"github.com/pterm/pterm"
)

var (
	demoDepositor = common.HexToAddress("0xa1")
	demoReceiver  = common.HexToAddress("0xb1")
	demoL1Account = common.HexToAddress("0xd1")
)

// runDemo runs a deposit, an internal transfer, a local withdrawal and
// an L1 withdrawal against an in-memory regtest pool and prints the
// resulting balances.
func runDemo(cfg *repo.Config) error {
	ctx := context.Background()

	prms, err := applyPolicy(&params.RegtestParams, cfg.Policy)
	if err != nil {
		return err
	}
	h, err := harness.NewTestHarness(harness.DefaultOptions(), harness.Params(prms))
	if err != nil {
		return err
	}

	alice, err := h.NewParty("alice", demoDepositor)
	if err != nil {
		return err
	}
	bob, err := h.NewParty("bob", demoReceiver)
	if err != nil {
		return err
	}
	bobAddr, err := h.Address(bob)
	if err != nil {
		return err
	}

	amounts := make(map[string]types.Amount)
	for _, s := range []string{"0.13", "0.06", "0.07"} {
		amounts[s], err = types.AmountFromTokens(s)
		if err != nil {
			return err
		}
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"alice deposits 0.13 through the bridge", func() error {
			_, err := h.Deposit(ctx, alice, amounts["0.13"])
			return err
		}},
		{"alice sends 0.06 to " + bobAddr, func() error {
			_, err := h.Transfer(ctx, alice, bobAddr, amounts["0.06"])
			return err
		}},
		{"bob withdraws 0.06 locally", func() error {
			_, err := h.Withdraw(ctx, bob, amounts["0.06"], bob.Account)
			return err
		}},
		{"alice withdraws 0.07 to L1", func() error {
			_, err := h.WithdrawToL1(ctx, alice, amounts["0.07"], demoL1Account, 0)
			return err
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		log.Info(step.name, log.Args("root", h.Pool().CurrentRoot().String(), "leaves", h.Pool().NumLeaves()))
	}

	data := pterm.TableData{{"Holder", "Balance"}}
	for _, row := range []struct {
		name string
		bal  func() (types.Amount, error)
	}{
		{"alice (shielded)", func() (types.Amount, error) { return h.ShieldedBalance(alice) }},
		{"bob (shielded)", func() (types.Amount, error) { return h.ShieldedBalance(bob) }},
		{"bob account", func() (types.Amount, error) { return h.BalanceOf(bob.Account) }},
		{"pool custody", h.CustodyBalance},
		{"bridge custody", func() (types.Amount, error) { return h.BalanceOf(h.BridgeAccount()) }},
	} {
		bal, err := row.bal()
		if err != nil {
			return err
		}
		data = append(data, []string{row.name, bal.String()})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
