// Copyright (c) 2022 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/ledger"
	"github.com/federava/week2/params"
	"github.com/federava/week2/repo"
	"github.com/federava/week2/repo/mock"
	"github.com/federava/week2/types"
	"github.com/federava/week2/types/transactions"
	"github.com/federava/week2/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testToken    = common.HexToAddress("0xe1")
	testCustody  = common.HexToAddress("0x01")
	testBridge   = common.HexToAddress("0x02")
	testSender   = common.HexToAddress("0xa1")
	testReceiver = common.HexToAddress("0xb0")
	testRelayer  = common.HexToAddress("0xc0")
)

type routedWithdrawal struct {
	amount    types.Amount
	recipient common.Address
	l1Fee     types.Amount
}

type mockRouter struct {
	ledger *ledger.Ledger
	fail   error
	routed []routedWithdrawal
	mtx    sync.Mutex
}

func (r *mockRouter) RouteWithdrawalToL1(token common.Address, amount types.Amount, l1Recipient common.Address, l1Fee types.Amount) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.fail != nil {
		return r.fail
	}
	if err := r.ledger.Transfer(token, testBridge, amount); err != nil {
		return err
	}
	r.routed = append(r.routed, routedWithdrawal{amount, l1Recipient, l1Fee})
	return nil
}

type testPool struct {
	*Pool
	ds     repo.Datastore
	ledger *ledger.Ledger
	router *mockRouter
}

func newTestPool(t *testing.T, opts ...Option) *testPool {
	ds := mock.NewMapDatastore()
	l := ledger.NewLedger(ds, testCustody)
	router := &mockRouter{ledger: l}
	allOpts := append([]Option{
		DefaultOptions(),
		Datastore(ds),
		Ledger(l),
		L1Router(router),
		Token(testToken),
	}, opts...)
	p, err := NewPool(allOpts...)
	require.NoError(t, err)
	return &testPool{Pool: p, ds: ds, ledger: l, router: router}
}

type spend struct {
	note *types.Note
	key  *crypto.Keypair
}

// buildTx builds a mock-proven transaction against the pool's current
// root, padding inputs and outputs with zero value notes.
func buildTx(t *testing.T, p *Pool, ins []spend, outs []*types.Note, extAmount int64, ext *transactions.ExtData) *transactions.Transaction {
	t.Helper()

	nIns, ok := p.Params().PaddedInputs(len(ins))
	require.True(t, ok)
	for len(ins) < nIns {
		n, kp, err := types.NewDummyNote()
		require.NoError(t, err)
		ins = append(ins, spend{n, kp})
	}
	for len(outs) < p.Params().OutputArity {
		n, _, err := types.NewDummyNote()
		require.NoError(t, err)
		outs = append(outs, n)
	}

	priv := &zk.PrivateInputs{}
	tx := &transactions.Transaction{
		Root:         p.CurrentRoot(),
		PublicAmount: extAmount,
		ExtData:      ext,
	}
	for _, in := range ins {
		nullifier, err := in.note.Nullifier(in.key)
		require.NoError(t, err)
		tx.InputNullifiers = append(tx.InputNullifiers, nullifier)

		index, _ := in.note.Index()
		w := zk.InputWitness{
			Amount:     in.note.Amount,
			Blinding:   in.note.Blinding,
			PrivateKey: in.key.PrivateKey(),
			Index:      index,
		}
		if !in.note.IsDummy() {
			proof, err := p.MerkleProof(index)
			require.NoError(t, err)
			w.Path = proof.Siblings
		}
		priv.Inputs = append(priv.Inputs, w)
	}
	ext.EncryptedOutputs = nil
	for _, out := range outs {
		tx.OutputCommitments = append(tx.OutputCommitments, out.Commitment())
		ct, err := out.Encrypt()
		require.NoError(t, err)
		ext.EncryptedOutputs = append(ext.EncryptedOutputs, ct)
		priv.Outputs = append(priv.Outputs, zk.OutputWitness{
			Amount:   out.Amount,
			Pubkey:   out.Owner.Pubkey,
			Blinding: out.Blinding,
		})
	}

	extHash, err := tx.ComputeExtDataHash()
	require.NoError(t, err)
	tx.ExtDataHash = extHash

	circuit, err := zk.CircuitFor(len(ins), len(outs))
	require.NoError(t, err)
	pub := &zk.PublicInputs{
		Root:              tx.Root,
		InputNullifiers:   tx.InputNullifiers,
		OutputCommitments: tx.OutputCommitments,
		PublicAmount:      tx.CircuitAmount(),
		ExtDataHash:       extHash,
	}
	tx.Proof, err = (&zk.MockProver{}).Prove(context.Background(), circuit, priv, pub)
	require.NoError(t, err)
	return tx
}

func newNote(t *testing.T, amount types.Amount, kp *crypto.Keypair) *types.Note {
	n, err := types.NewNote(amount, kp.PublicKey(), nil)
	require.NoError(t, err)
	return n
}

// escrow mints amount to the sender and escrows it for the pool under
// a fresh deposit id.
func escrow(t *testing.T, tp *testPool, amount types.Amount) types.ID {
	t.Helper()
	var id types.ID
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	require.NoError(t, tp.ledger.Mint(testToken, testSender, amount))
	require.NoError(t, tp.ledger.Escrow(testToken, testSender, id, amount))
	return id
}

// deposit escrows amount from the sender and applies a deposit of a
// single note of that amount owned by kp.
func deposit(t *testing.T, tp *testPool, kp *crypto.Keypair, amount types.Amount) (*types.Note, *Receipt) {
	t.Helper()
	id := escrow(t, tp, amount)

	note := newNote(t, amount, kp)
	tx := buildTx(t, tp.Pool, nil, []*types.Note{note}, int64(amount), &transactions.ExtData{})
	receipt, err := tp.ProcessDeposit(tx, id)
	require.NoError(t, err)
	note.SetIndex(receipt.Indexes[0])
	return note, receipt
}

func TestPoolDepositAndWithdraw(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	var (
		events []*CommitmentEvent
		mtx    sync.Mutex
	)
	tp.Subscribe(func(n *Notification) {
		if n.Type != NTNewCommitment {
			return
		}
		mtx.Lock()
		events = append(events, n.Data.(*CommitmentEvent))
		mtx.Unlock()
	})

	amount := types.UnitsPerToken / 10
	note, receipt := deposit(t, tp, kp, amount)
	assert.Equal(t, []uint64{0, 1}, receipt.Indexes)
	assert.Equal(t, amount, receipt.Settlement.Deposit)
	assert.NotEqual(t, types.ID{}, receipt.Settlement.DepositID)
	assert.Equal(t, uint64(2), tp.NumLeaves())
	assert.Equal(t, receipt.Root, tp.CurrentRoot())

	custody, err := tp.ledger.CustodyBalance(testToken)
	require.NoError(t, err)
	assert.Equal(t, amount, custody)

	assert.Eventually(t, func() bool {
		mtx.Lock()
		defer mtx.Unlock()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	stored, err := tp.Events(0)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	found, err := types.DecryptNote(kp, stored[0].EncryptedOutput, stored[0].Index)
	require.NoError(t, err)
	assert.Equal(t, note.Commitment(), found.Commitment())
	assert.Equal(t, receipt.Root, stored[1].Root)

	// Withdraw 0.08 locally and keep 0.02 in a change note.
	withdraw := types.UnitsPerToken * 8 / 100
	change := newNote(t, amount-withdraw, kp)
	tx := buildTx(t, tp.Pool, []spend{{note, kp}}, []*types.Note{change}, -int64(withdraw), &transactions.ExtData{Recipient: testReceiver})
	receipt, err = tp.ProcessTransaction(tx)
	require.NoError(t, err)
	assert.Equal(t, withdraw, receipt.Settlement.Withdrawal)

	bal, err := tp.ledger.BalanceOf(testToken, testReceiver)
	require.NoError(t, err)
	assert.Equal(t, withdraw, bal)
	bal, err = tp.ledger.BalanceOf(testToken, testCustody)
	require.NoError(t, err)
	assert.Equal(t, amount-withdraw, bal)

	for _, n := range tx.InputNullifiers {
		exists, err := tp.NullifierExists(n)
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestPoolRejections(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	amount := types.UnitsPerToken / 10
	note, _ := deposit(t, tp, kp, amount)

	assertRejected := func(t *testing.T, tx *transactions.Transaction, code ErrorCode) {
		t.Helper()
		root, leaves := tp.CurrentRoot(), tp.NumLeaves()
		custody, err := tp.ledger.CustodyBalance(testToken)
		require.NoError(t, err)

		assert.True(t, ErrorIs(tp.CheckTransaction(tx), code))
		_, err = tp.ProcessTransaction(tx)
		assert.True(t, ErrorIs(err, code), "expected %s, got %v", code, err)

		assert.Equal(t, root, tp.CurrentRoot())
		assert.Equal(t, leaves, tp.NumLeaves())
		after, err := tp.ledger.CustodyBalance(testToken)
		require.NoError(t, err)
		assert.Equal(t, custody, after)
	}

	t.Run("invalid arity", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, nil, nil, 0, &transactions.ExtData{})
		tx.InputNullifiers = tx.InputNullifiers[:1]
		assertRejected(t, tx, ErrInvalidArity)
	})

	t.Run("tampered ext data", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, []spend{{note, kp}}, nil, -int64(amount), &transactions.ExtData{Recipient: testReceiver})
		tx.ExtData.Recipient = testRelayer
		assertRejected(t, tx, ErrInvalidProof)
	})

	t.Run("tampered public amount", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, []spend{{note, kp}}, []*types.Note{newNote(t, amount/2, kp)}, -int64(amount/2), &transactions.ExtData{Recipient: testReceiver})
		tx.PublicAmount = -int64(amount)
		tx.ExtDataHash, err = tx.ComputeExtDataHash()
		require.NoError(t, err)
		assertRejected(t, tx, ErrInvalidProof)
	})

	t.Run("stale root", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, []spend{{note, kp}}, nil, -int64(amount), &transactions.ExtData{Recipient: testReceiver})
		// Another transaction moves the root first.
		deposit(t, tp, kp, 1)
		assertRejected(t, tx, ErrStaleRoot)
	})

	t.Run("deposit above maximum", func(t *testing.T) {
		big := tp.Params().MaximumDepositAmount + 1
		id := escrow(t, tp, big)
		tx := buildTx(t, tp.Pool, nil, []*types.Note{newNote(t, big, kp)}, int64(big), &transactions.ExtData{})
		assertRejected(t, tx, ErrAmountOutOfRange)
		_, err := tp.ProcessDeposit(tx, id)
		assert.True(t, ErrorIs(err, ErrAmountOutOfRange))
		require.NoError(t, tp.ledger.ReleaseEscrow(testToken, id, testSender))
	})

	t.Run("L1 withdrawal below minimum", func(t *testing.T) {
		w := tp.Params().MinimalWithdrawalAmount - 1
		tx := buildTx(t, tp.Pool, []spend{{note, kp}}, []*types.Note{newNote(t, amount-w, kp)}, -int64(w), &transactions.ExtData{Recipient: testReceiver, IsL1Withdrawal: true})
		assertRejected(t, tx, ErrAmountOutOfRange)
	})

	t.Run("fee above maximum", func(t *testing.T) {
		// The fee exceeds the note so one unit is deposited to balance.
		fee := tp.Params().MaximumFee + 1
		require.Equal(t, amount+1, fee)
		tx := buildTx(t, tp.Pool, []spend{{note, kp}}, nil, 1, &transactions.ExtData{Fee: fee, Relayer: testRelayer})
		assertRejected(t, tx, ErrInvalidFee)
	})

	t.Run("withdrawal to zero address", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, []spend{{note, kp}}, nil, -int64(amount), &transactions.ExtData{})
		assertRejected(t, tx, ErrMalformedTx)
	})

	t.Run("missing escrow", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, nil, []*types.Note{newNote(t, amount, kp)}, int64(amount), &transactions.ExtData{})
		assertRejected(t, tx, ErrMissingEscrow)
	})

	t.Run("forced invalid proof", func(t *testing.T) {
		verifier := &zk.MockVerifier{}
		tp2 := newTestPool(t, Verifier(verifier))
		verifier.SetValid(false)
		tx := buildTx(t, tp2.Pool, nil, nil, 0, &transactions.ExtData{})
		_, err := tp2.ProcessTransaction(tx)
		assert.True(t, ErrorIs(err, ErrInvalidProof))
	})
}

func TestPoolDepositEscrowIsolation(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	amount := types.UnitsPerToken / 2

	// Funds escrowed for one deposit sit in the pool unclaimed.
	pending := escrow(t, tp, amount)

	assertUnclaimed := func(t *testing.T) {
		t.Helper()
		held, err := tp.ledger.EscrowHeld(testToken, pending)
		require.NoError(t, err)
		assert.Equal(t, amount, held)
	}

	t.Run("deposit without escrow", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, nil, []*types.Note{newNote(t, amount, kp)}, int64(amount), &transactions.ExtData{})
		_, err := tp.ProcessTransaction(tx)
		assert.True(t, ErrorIs(err, ErrMissingEscrow), "got %v", err)
		assertUnclaimed(t)
	})

	t.Run("claim of a different deposit", func(t *testing.T) {
		other := escrow(t, tp, amount/5)
		tx := buildTx(t, tp.Pool, nil, []*types.Note{newNote(t, amount, kp)}, int64(amount), &transactions.ExtData{})
		_, err := tp.ProcessDeposit(tx, other)
		assert.True(t, ErrorIs(err, ErrMissingEscrow), "got %v", err)
		assertUnclaimed(t)

		// The other deposit still lands with its own escrow.
		note := newNote(t, amount/5, kp)
		tx = buildTx(t, tp.Pool, nil, []*types.Note{note}, int64(amount/5), &transactions.ExtData{})
		_, err = tp.ProcessDeposit(tx, other)
		require.NoError(t, err)
		assertUnclaimed(t)
	})

	t.Run("smaller deposit against the escrow", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, nil, []*types.Note{newNote(t, amount-1, kp)}, int64(amount-1), &transactions.ExtData{})
		_, err := tp.ProcessDeposit(tx, pending)
		assert.True(t, ErrorIs(err, ErrMissingEscrow), "got %v", err)
		assertUnclaimed(t)
	})

	t.Run("escrow on a transfer", func(t *testing.T) {
		tx := buildTx(t, tp.Pool, nil, nil, 0, &transactions.ExtData{})
		_, err := tp.ProcessDeposit(tx, pending)
		assert.True(t, ErrorIs(err, ErrMalformedTx), "got %v", err)
		assertUnclaimed(t)
	})

	// The escrow can still be returned in full.
	require.NoError(t, tp.ledger.ReleaseEscrow(testToken, pending, testSender))
	bal, err := tp.ledger.BalanceOf(testToken, testSender)
	require.NoError(t, err)
	assert.Equal(t, amount, bal)
}

func TestPoolDoubleSpend(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	amount := types.UnitsPerToken / 10
	note, _ := deposit(t, tp, kp, amount)

	other := newNote(t, amount, kp)
	tx := buildTx(t, tp.Pool, []spend{{note, kp}}, []*types.Note{other}, 0, &transactions.ExtData{})
	receipt, err := tp.ProcessTransaction(tx)
	require.NoError(t, err)
	other.SetIndex(receipt.Indexes[0])

	// Spending the same note again is rejected whatever the shape of
	// the transaction.
	tx = buildTx(t, tp.Pool, []spend{{note, kp}}, nil, -int64(amount), &transactions.ExtData{Recipient: testReceiver})
	_, err = tp.ProcessTransaction(tx)
	assert.True(t, ErrorIs(err, ErrDoubleSpend))
	class, ok := ClassOf(err)
	assert.True(t, ok)
	assert.Equal(t, IntegrityError, class)

	ins := []spend{{other, kp}, {note, kp}}
	for len(ins) < 3 {
		n, dk, err := types.NewDummyNote()
		require.NoError(t, err)
		ins = append(ins, spend{n, dk})
	}
	tx = buildTx(t, tp.Pool, ins, nil, -int64(amount*2), &transactions.ExtData{Recipient: testReceiver})
	assert.Len(t, tx.InputNullifiers, 16)
	_, err = tp.ProcessTransaction(tx)
	assert.True(t, ErrorIs(err, ErrDoubleSpend))

	// The untouched note is still spendable.
	exists, err := tp.NullifierExists(tx.InputNullifiers[0])
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPoolTreeFull(t *testing.T) {
	prms := params.RegtestParams
	prms.TreeHeight = 2
	tp := newTestPool(t, Params(&prms))
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	deposit(t, tp, kp, 1)
	deposit(t, tp, kp, 1)

	id := escrow(t, tp, 1)
	tx := buildTx(t, tp.Pool, nil, []*types.Note{newNote(t, 1, kp)}, 1, &transactions.ExtData{})
	_, err = tp.ProcessDeposit(tx, id)
	assert.True(t, ErrorIs(err, ErrTreeFull))
	class, _ := ClassOf(err)
	assert.Equal(t, CapacityError, class)
}

func TestPoolL1WithdrawalAndFee(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	amount := types.UnitsPerToken / 10
	note, _ := deposit(t, tp, kp, amount)

	fee := types.UnitsPerToken / 100
	withdraw := amount - fee
	l1Recipient := common.HexToAddress("0x11")
	tx := buildTx(t, tp.Pool, []spend{{note, kp}}, nil, -int64(withdraw), &transactions.ExtData{
		Recipient:      testReceiver,
		L1Recipient:    l1Recipient,
		IsL1Withdrawal: true,
		Fee:            fee,
		Relayer:        testRelayer,
	})
	receipt, err := tp.ProcessTransaction(tx)
	require.NoError(t, err)
	assert.True(t, receipt.Settlement.ToL1)
	assert.Equal(t, l1Recipient, receipt.Settlement.Recipient)

	require.Len(t, tp.router.routed, 1)
	assert.Equal(t, withdraw, tp.router.routed[0].amount)
	assert.Equal(t, l1Recipient, tp.router.routed[0].recipient)

	bal, err := tp.ledger.BalanceOf(testToken, testRelayer)
	require.NoError(t, err)
	assert.Equal(t, fee, bal)
	bal, err = tp.ledger.BalanceOf(testToken, testBridge)
	require.NoError(t, err)
	assert.Equal(t, withdraw, bal)
	bal, err = tp.ledger.BalanceOf(testToken, testCustody)
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestPoolSettlementFailure(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	amount := types.UnitsPerToken / 10
	note, _ := deposit(t, tp, kp, amount)

	tp.router.fail = errors.New("bridge offline")
	tx := buildTx(t, tp.Pool, []spend{{note, kp}}, nil, -int64(amount), &transactions.ExtData{Recipient: testReceiver, IsL1Withdrawal: true})
	receipt, err := tp.ProcessTransaction(tx)
	require.Error(t, err)

	var settlementErr *SettlementError
	require.ErrorAs(t, err, &settlementErr)
	assert.Equal(t, tx.ID(), settlementErr.TxID)
	require.NotNil(t, receipt)

	// The state transition is final even though the funds are stuck.
	assert.Equal(t, receipt.Root, tp.CurrentRoot())
	exists, err := tp.NullifierExists(tx.InputNullifiers[0])
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPoolReload(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	deposit(t, tp, kp, 5)
	deposit(t, tp, kp, 7)

	p2, err := NewPool(DefaultOptions(), Datastore(tp.ds), Ledger(tp.ledger), Token(testToken))
	require.NoError(t, err)
	assert.Equal(t, tp.CurrentRoot(), p2.CurrentRoot())
	assert.Equal(t, tp.NumLeaves(), p2.NumLeaves())

	proof, err := p2.MerkleProof(2)
	require.NoError(t, err)
	assert.True(t, proof.Verify())
}

func TestPoolAccounts(t *testing.T) {
	tp := newTestPool(t)
	kp, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	_, err = tp.LookupAccount(testSender)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, tp.RegisterAccount(testSender, kp.PublicKey()))
	pub, err := tp.LookupAccount(testSender)
	require.NoError(t, err)
	assert.True(t, pub.Equals(kp.PublicKey()))

	// Re-registering the same key is accepted, another key is refused.
	require.NoError(t, tp.RegisterAccount(testSender, kp.PublicKey()))
	other, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	assert.ErrorIs(t, tp.RegisterAccount(testSender, other.PublicKey()), ErrAccountExists)

	pub, err = tp.LookupAccount(testSender)
	require.NoError(t, err)
	assert.True(t, pub.Equals(kp.PublicKey()))
}

func TestPoolOptions(t *testing.T) {
	_, err := NewPool(DefaultOptions(), Token(testToken))
	assert.Error(t, err)

	mainnet := params.MainnetParams
	_, err = NewPool(DefaultOptions(), Params(&mainnet), Ledger(ledger.NewLedger(mock.NewMapDatastore(), testCustody)), Token(testToken))
	assert.Error(t, err)
}
