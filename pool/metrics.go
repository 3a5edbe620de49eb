// Copyright (c) 2024 Project Illium
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package pool

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 50000, 100000)
)

// Keys
var (
	KeyErrorCode, _ = tag.NewKey("error_code")
	KeyDirection, _ = tag.NewKey("direction")
)

// Measures
var (
	AppliedTransactions  = stats.Int64("shieldedpool/pool/applied_transactions", "Total number of transactions applied to the pool", stats.UnitDimensionless)
	RejectedTransactions = stats.Int64("shieldedpool/pool/rejected_transactions", "Total number of transactions rejected by the pool", stats.UnitDimensionless)
	StuckTransfers       = stats.Int64("shieldedpool/pool/stuck_transfers", "Total number of applied transactions whose settlement failed", stats.UnitDimensionless)
	ProcessingLatency    = stats.Float64("shieldedpool/pool/processing_latency", "Latency of processing a transaction", stats.UnitMilliseconds)
	TreeSize             = stats.Int64("shieldedpool/pool/tree_size", "Number of commitments in the tree", stats.UnitDimensionless)
)

// Views
var (
	AppliedTransactionsView = &view.View{
		Measure:     AppliedTransactions,
		TagKeys:     []tag.Key{KeyDirection},
		Aggregation: view.Count(),
	}
	RejectedTransactionsView = &view.View{
		Measure:     RejectedTransactions,
		TagKeys:     []tag.Key{KeyErrorCode},
		Aggregation: view.Count(),
	}
	StuckTransfersView = &view.View{
		Measure:     StuckTransfers,
		Aggregation: view.Count(),
	}
	ProcessingLatencyView = &view.View{
		Measure:     ProcessingLatency,
		Aggregation: defaultMillisecondsDistribution,
	}
	TreeSizeView = &view.View{
		Measure:     TreeSize,
		Aggregation: view.LastValue(),
	}
)

// DefaultViews with all views in it.
var DefaultViews = []*view.View{
	AppliedTransactionsView,
	RejectedTransactionsView,
	StuckTransfersView,
	ProcessingLatencyView,
	TreeSizeView,
}
