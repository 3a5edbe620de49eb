// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package repo

const (
	// BridgeKeyDatastoreKey is the datastore key for the bridge operator signing key.
	BridgeKeyDatastoreKey = "/pool/bridgekey/"
	// NullifierKeyPrefix is the datastore key prefix for storing nullifiers in the nullifier set.
	NullifierKeyPrefix = "/pool/nullifier/"
	// LeafKeyPrefix is the datastore key prefix for commitment tree leaves by index.
	LeafKeyPrefix = "/pool/leaf/"
	// TreeRootKey is the datastore key for the current commitment tree root.
	TreeRootKey = "/pool/root/"
	// TreeSizeKey is the datastore key for the number of leaves in the commitment tree.
	TreeSizeKey = "/pool/treesize/"
	// AccountKeyPrefix is the datastore key prefix for registered shielded accounts.
	AccountKeyPrefix = "/pool/account/"
	// LedgerBalanceKeyPrefix is the datastore key prefix for token balances by token and holder.
	LedgerBalanceKeyPrefix = "/ledger/balance/"
	// LedgerEscrowKeyPrefix is the datastore key prefix for unclaimed escrow by token.
	LedgerEscrowKeyPrefix = "/ledger/escrow/"
	// LedgerTicketKeyPrefix is the datastore key prefix for escrow held per deposit.
	LedgerTicketKeyPrefix = "/ledger/ticket/"
	// DepositKeyPrefix is the datastore key prefix for bridged deposits that failed to apply.
	DepositKeyPrefix = "/bridge/deposit/"
	// OutboundKeyPrefix is the datastore key prefix for outbound bridge messages that could not be delivered.
	OutboundKeyPrefix = "/bridge/outbound/"
)
