package solana

import "github.com/shopspring/decimal"

// LamportsPerSol is the number of lamports in one SOL
const LamportsPerSol = 1_000_000_000

// ToLamports converts SOL to lamports, truncating sub-lamport dust
func ToLamports(sol decimal.Decimal) uint64 {
	if !sol.IsPositive() {
		return 0
	}
	return uint64(sol.Shift(9).Truncate(0).IntPart())
}

// FromLamports converts lamports to SOL
func FromLamports(lamports uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lamports)).Shift(-9)
}
