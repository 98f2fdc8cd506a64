// internal/settlement/dividend.go
package settlement

import (
	"fmt"

	stderrors "business-empire/internal/common/errors"
	"business-empire/internal/models"
)

// ==========================
// Dividend Allocator
// ==========================

// AllocateDividends splits a positive net profit among shareholders in
// proportion to stake. Each amount floors to the minor unit; the rounding
// remainder goes to the boss so the paid total equals netProfit exactly.
// Non-positive profit pays nothing: losses are never clawed back from
// shareholders. The allocator only reads stakes, it never adjusts them.
func AllocateDividends(netProfit int64, snap *models.CompanySnapshot) []models.Dividend {
	if netProfit <= 0 || len(snap.Shareholders) == 0 {
		return nil
	}

	dividends := make([]models.Dividend, 0, len(snap.Shareholders))
	var paid int64
	bossIdx := -1
	for _, sh := range snap.Shareholders {
		amount := netProfit * sh.StakeBps / models.StakeScale
		paid += amount
		if sh.HolderID == snap.Company.OwnerID {
			bossIdx = len(dividends)
		}
		dividends = append(dividends, models.Dividend{HolderID: sh.HolderID, Amount: amount})
	}

	if remainder := netProfit - paid; remainder > 0 && bossIdx >= 0 {
		dividends[bossIdx].Amount += remainder
	}
	return dividends
}

// CheckStakeInvariants rejects snapshots whose shareholder table would make
// dividend accounting wrong: stakes must sum to exactly the fixed-point
// scale, every stake must be non-negative, and the boss must hold at least
// the configured floor. Violations are surfaced, never clamped.
func CheckStakeInvariants(snap *models.CompanySnapshot, stakeFloorBps int64) error {
	for _, sh := range snap.Shareholders {
		if sh.StakeBps < 0 {
			return stderrors.NewInvariantViolationError(snap.Company.ID,
				fmt.Sprintf("negative stake %d for holder %d", sh.StakeBps, sh.HolderID))
		}
	}

	if sum := snap.StakeSum(); sum != models.StakeScale {
		return stderrors.NewInvariantViolationError(snap.Company.ID,
			fmt.Sprintf("stake sum %d != %d", sum, models.StakeScale))
	}

	boss := snap.Boss()
	if boss == nil {
		return stderrors.NewInvariantViolationError(snap.Company.ID,
			fmt.Sprintf("owner %d holds no stake", snap.Company.OwnerID))
	}
	if boss.StakeBps < stakeFloorBps {
		return stderrors.NewInvariantViolationError(snap.Company.ID,
			fmt.Sprintf("owner stake %d below floor %d", boss.StakeBps, stakeFloorBps))
	}
	return nil
}
