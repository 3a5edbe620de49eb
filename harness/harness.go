// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package harness

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/bridge"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/ledger"
	"github.com/federava/week2/params"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
	"github.com/federava/week2/wallet"
)

// Party is a user of the pool: an account on the local chain that
// holds plain tokens and a shielded wallet.
type Party struct {
	Name    string
	Account common.Address
	Wallet  *wallet.Wallet
}

// TestHarness wires a ledger, a pool, an L1 outbox and a mock omni
// bridge together in one process so full deposit and withdrawal flows
// can be driven from tests.
type TestHarness struct {
	cfg     *config
	ledger  *ledger.Ledger
	pool    *pool.Pool
	omni    *bridge.MockOmniBridge
	outbox  *bridge.Outbox
	adapter *bridge.Adapter
	builder *wallet.Builder
}

func NewTestHarness(opts ...Option) (*TestHarness, error) {
	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	l := ledger.NewLedger(cfg.datastore, cfg.poolAddress)
	omni := bridge.NewMockOmniBridge(l, cfg.bridgeAddress)
	outbox, err := bridge.NewOutbox(cfg.datastore, l, cfg.bridgeAddress, omni, cfg.bridgeKey, cfg.params.L1ChainID)
	if err != nil {
		return nil, err
	}
	p, err := pool.NewPool(
		pool.Params(cfg.params),
		pool.Datastore(cfg.datastore),
		pool.Verifier(cfg.verifier),
		pool.Ledger(l),
		pool.L1Router(outbox),
		pool.Token(cfg.token),
		pool.MaxNullifiers(pool.DefaultMaxNullifiers),
	)
	if err != nil {
		return nil, err
	}
	adapter := bridge.NewAdapter(cfg.datastore, p, l, cfg.multisig)
	omni.SetAdapter(adapter)

	return &TestHarness{
		cfg:     &cfg,
		ledger:  l,
		pool:    p,
		omni:    omni,
		outbox:  outbox,
		adapter: adapter,
		builder: wallet.NewBuilder(p, cfg.prover),
	}, nil
}

func (h *TestHarness) Pool() *pool.Pool               { return h.pool }
func (h *TestHarness) Ledger() *ledger.Ledger         { return h.ledger }
func (h *TestHarness) Bridge() *bridge.MockOmniBridge { return h.omni }
func (h *TestHarness) Outbox() *bridge.Outbox         { return h.outbox }
func (h *TestHarness) Adapter() *bridge.Adapter       { return h.adapter }
func (h *TestHarness) Params() *params.PoolParams     { return h.cfg.params }
func (h *TestHarness) Token() common.Address          { return h.cfg.token }
func (h *TestHarness) BridgeAccount() common.Address  { return h.cfg.bridgeAddress }
func (h *TestHarness) PoolAccount() common.Address    { return h.cfg.poolAddress }
func (h *TestHarness) Builder() *wallet.Builder       { return h.builder }

// NewParty creates a party with a fresh shielded key and registers
// its public key with the pool under account.
func (h *TestHarness) NewParty(name string, account common.Address) (*Party, error) {
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := h.pool.RegisterAccount(account, kp.PublicKey()); err != nil {
		return nil, err
	}
	return &Party{
		Name:    name,
		Account: account,
		Wallet:  wallet.NewWallet(kp, h.pool),
	}, nil
}

// Address returns the shielded address of the party.
func (h *TestHarness) Address(p *Party) (string, error) {
	addr, err := wallet.NewAddress(p.Wallet.PublicKey(), h.cfg.params)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// Sync scans the commitment events the party has not seen yet.
func (h *TestHarness) Sync(p *Party) error {
	events, err := h.pool.Events(p.Wallet.SyncHeight())
	if err != nil {
		return err
	}
	p.Wallet.Sync(events)
	return nil
}

// ShieldedBalance returns the unspent shielded balance of the party.
func (h *TestHarness) ShieldedBalance(p *Party) (types.Amount, error) {
	if err := h.Sync(p); err != nil {
		return 0, err
	}
	return p.Wallet.Balance()
}

// BalanceOf returns the plain token balance of an account.
func (h *TestHarness) BalanceOf(account common.Address) (types.Amount, error) {
	return h.ledger.BalanceOf(h.cfg.token, account)
}

// CustodyBalance returns the funds held by the pool on behalf of
// shielded notes.
func (h *TestHarness) CustodyBalance() (types.Amount, error) {
	return h.ledger.CustodyBalance(h.cfg.token)
}

// Deposit locks amount on L1 and relays it through the bridge into a
// single note owned by the party.
func (h *TestHarness) Deposit(ctx context.Context, p *Party, amount types.Amount) (*pool.Receipt, error) {
	note, err := types.NewNote(amount, p.Wallet.PublicKey(), nil)
	if err != nil {
		return nil, err
	}
	tx, err := h.builder.Prepare(ctx, &wallet.TxRequest{
		Outputs: []*types.Note{note},
	})
	if err != nil {
		return nil, err
	}
	payload, err := transactions.EncodeBridgePayload(tx)
	if err != nil {
		return nil, err
	}
	return h.omni.RelayDeposit(ctx, h.cfg.token, amount, payload)
}

// Transfer sends amount from the party to a shielded address. Change
// goes back to the sender.
func (h *TestHarness) Transfer(ctx context.Context, from *Party, to string, amount types.Amount) (*pool.Receipt, error) {
	addr, err := wallet.DecodeAddress(to, h.cfg.params)
	if err != nil {
		return nil, err
	}
	out, err := types.NewNote(amount, addr.PublicKey(), nil)
	if err != nil {
		return nil, err
	}
	return h.spend(ctx, from, amount, &wallet.TxRequest{
		Outputs: []*types.Note{out},
	})
}

// Withdraw pays amount out of the party's notes to a local account.
func (h *TestHarness) Withdraw(ctx context.Context, from *Party, amount types.Amount, recipient common.Address) (*pool.Receipt, error) {
	return h.spend(ctx, from, amount, &wallet.TxRequest{
		Recipient: recipient,
	})
}

// WithdrawToL1 pays amount out of the party's notes to an L1 account
// through the bridge.
func (h *TestHarness) WithdrawToL1(ctx context.Context, from *Party, amount types.Amount, l1Recipient common.Address, l1Fee types.Amount) (*pool.Receipt, error) {
	return h.spend(ctx, from, amount, &wallet.TxRequest{
		IsL1Withdrawal: true,
		L1Recipient:    l1Recipient,
		L1Fee:          l1Fee,
	})
}

// spend selects inputs covering amount, adds a change note and
// submits req.
func (h *TestHarness) spend(ctx context.Context, from *Party, amount types.Amount, req *wallet.TxRequest) (*pool.Receipt, error) {
	if err := h.Sync(from); err != nil {
		return nil, err
	}
	arities := h.cfg.params.InputArities
	inputs, err := from.Wallet.SelectInputs(amount, arities[len(arities)-1])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from.Name, err)
	}
	var total types.Amount
	for _, in := range inputs {
		total += in.Note.Amount
	}
	req.Inputs = inputs
	if change := total - amount; change > 0 {
		note, err := types.NewNote(change, from.Wallet.PublicKey(), nil)
		if err != nil {
			return nil, err
		}
		req.Outputs = append(req.Outputs, note)
	}
	return wallet.Transact(ctx, h.builder, h.pool, req)
}
