// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"errors"

	"github.com/federava/week2/bridge"
	"github.com/federava/week2/pool"
	"github.com/federava/week2/types/transactions"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ PoolServiceServer = (*GrpcServer)(nil)

// GetPoolInfo returns the current root and fill of the commitment tree.
func (s *GrpcServer) GetPoolInfo(ctx context.Context, req *GetPoolInfoRequest) (*GetPoolInfoResponse, error) {
	params := s.pool.Params()
	return &GetPoolInfoResponse{
		Network:   params.Name,
		Token:     s.pool.Token(),
		Root:      s.pool.CurrentRoot(),
		NumLeaves: s.pool.NumLeaves(),
		Capacity:  params.Capacity(),
	}, nil
}

// SubmitTransaction applies a transfer or withdrawal. Deposits are
// rejected: they must arrive through the bridge so the pool can claim
// the funds escrowed for them.
func (s *GrpcServer) SubmitTransaction(ctx context.Context, req *SubmitTransactionRequest) (*TransactionReceipt, error) {
	tx, err := transactions.DecodeBridgePayload(req.Payload)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	receipt, err := s.pool.ProcessTransaction(tx)
	return receiptResponse(receipt, err)
}

// RelayDeposit sends a deposit through the bridge transport, which
// escrows the funds under a fresh deposit ID before the pool sees the
// transaction. A deposit the pool rejects is reported as pending rather
// than as an error.
func (s *GrpcServer) RelayDeposit(ctx context.Context, req *RelayDepositRequest) (*RelayDepositResponse, error) {
	if s.bridge == nil {
		return nil, status.Error(codes.Unimplemented, "no bridge transport available")
	}
	receipt, err := s.bridge.RelayDeposit(ctx, req.Token, req.Amount, req.Payload)
	return depositResponse(receipt, err)
}

// ListPendingDeposits returns the bridged deposits waiting in escrow.
func (s *GrpcServer) ListPendingDeposits(ctx context.Context, req *ListPendingDepositsRequest) (*ListPendingDepositsResponse, error) {
	pending, err := s.adapter.PendingDeposits()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	resp := &ListPendingDepositsResponse{
		Deposits: make([]*PendingDeposit, 0, len(pending)),
	}
	for _, d := range pending {
		resp.Deposits = append(resp.Deposits, &PendingDeposit{
			ID:        d.ID,
			Token:     d.Token,
			Amount:    d.Amount,
			Reason:    d.Reason,
			Timestamp: d.Timestamp,
		})
	}
	return resp, nil
}

// ResubmitDeposit retries a pending deposit with a fresh payload.
func (s *GrpcServer) ResubmitDeposit(ctx context.Context, req *ResubmitDepositRequest) (*RelayDepositResponse, error) {
	receipt, err := s.adapter.ResubmitDeposit(ctx, req.ID, req.Payload)
	return depositResponse(receipt, err)
}

// RescueDeposit releases the escrow of a pending deposit to the
// configured multisig.
func (s *GrpcServer) RescueDeposit(ctx context.Context, req *RescueDepositRequest) (*RescueDepositResponse, error) {
	if err := s.adapter.Rescue(req.ID); err != nil {
		return nil, statusFromError(err)
	}
	return &RescueDepositResponse{}, nil
}

// ListStuckTransfers returns the L1 releases the bridge refused.
func (s *GrpcServer) ListStuckTransfers(ctx context.Context, req *ListStuckTransfersRequest) (*ListStuckTransfersResponse, error) {
	stuck, err := s.outbox.StuckTransfers()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	resp := &ListStuckTransfersResponse{
		Transfers: make([]*StuckTransfer, 0, len(stuck)),
	}
	for _, msg := range stuck {
		resp.Transfers = append(resp.Transfers, &StuckTransfer{
			Nonce:     msg.Nonce,
			Token:     msg.Token,
			Recipient: msg.Recipient,
			Amount:    msg.Amount,
			L1Fee:     msg.L1Fee,
			Signature: msg.Signature,
		})
	}
	return resp, nil
}

// GetNullifier returns whether a nullifier has been spent.
func (s *GrpcServer) GetNullifier(ctx context.Context, req *GetNullifierRequest) (*GetNullifierResponse, error) {
	spent, err := s.pool.NullifierExists(req.Nullifier)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &GetNullifierResponse{Spent: spent}, nil
}

// GetEvents returns the commitment events from a leaf index onward.
func (s *GrpcServer) GetEvents(ctx context.Context, req *GetEventsRequest) (*GetEventsResponse, error) {
	events, err := s.pool.Events(req.From)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	resp := &GetEventsResponse{
		Events: make([]*CommitmentEvent, 0, len(events)),
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, commitmentEvent(ev))
	}
	return resp, nil
}

// SubscribeEvents streams every commitment event from a leaf index
// onward, in leaf order, and then each new one as it is added.
func (s *GrpcServer) SubscribeEvents(req *GetEventsRequest, stream PoolService_SubscribeEventsServer) error {
	notify, cancel := s.subscribeEvents()
	defer cancel()

	next := req.From
	for {
		events, err := s.pool.Events(next)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		for _, ev := range events {
			if err := stream.Send(commitmentEvent(ev)); err != nil {
				return err
			}
			next = ev.Index + 1
		}

		select {
		case <-s.quit:
			return nil
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-notify:
		}
	}
}

func commitmentEvent(ev *pool.CommitmentEvent) *CommitmentEvent {
	return &CommitmentEvent{
		Index:           ev.Index,
		Commitment:      ev.Commitment,
		EncryptedOutput: ev.EncryptedOutput,
		Root:            ev.Root,
	}
}

// receiptResponse converts the result of applying a transaction. A
// transaction that was applied but not settled still returns its
// receipt.
func receiptResponse(receipt *pool.Receipt, err error) (*TransactionReceipt, error) {
	if receipt == nil {
		return nil, statusFromError(err)
	}
	resp := &TransactionReceipt{
		Txid:       receipt.TxID,
		Indexes:    receipt.Indexes,
		Root:       receipt.Root,
		Deposit:    receipt.Settlement.Deposit,
		Withdrawal: receipt.Settlement.Withdrawal,
		Recipient:  receipt.Settlement.Recipient,
		ToL1:       receipt.Settlement.ToL1,
		Fee:        receipt.Settlement.Fee,
	}
	if err != nil {
		resp.SettlementError = err.Error()
	}
	return resp, nil
}

func depositResponse(receipt *pool.Receipt, err error) (*RelayDepositResponse, error) {
	var depErr *bridge.DepositError
	if errors.As(err, &depErr) {
		id := depErr.DepositID
		return &RelayDepositResponse{
			PendingDeposit: &id,
			Reason:         depErr.Err.Error(),
		}, nil
	}
	r, err := receiptResponse(receipt, err)
	if err != nil {
		return nil, err
	}
	return &RelayDepositResponse{Receipt: r}, nil
}

// statusFromError maps pool and bridge errors onto gRPC status codes.
func statusFromError(err error) error {
	var ruleErr pool.RuleError
	switch {
	case errors.As(err, &ruleErr):
		switch {
		case ruleErr.ErrorCode == pool.ErrMissingEscrow || ruleErr.ErrorCode == pool.ErrInsufficientCustody:
			return status.Error(codes.FailedPrecondition, err.Error())
		case ruleErr.ErrorCode.Class() == pool.ConcurrencyError:
			return status.Error(codes.Aborted, err.Error())
		case ruleErr.ErrorCode.Class() == pool.CapacityError:
			return status.Error(codes.ResourceExhausted, err.Error())
		default:
			return status.Error(codes.InvalidArgument, err.Error())
		}
	case errors.Is(err, bridge.ErrUnknownDeposit):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, bridge.ErrNoMultisig):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
