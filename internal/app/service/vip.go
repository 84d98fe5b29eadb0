package service

import (
	"sort"

	"github.com/instafly/instafly/internal/app/models"
)

// StarterTierName is reported when the customer has not reached any
// configured tier yet.
const StarterTierName = "Iniciante"

type VipProgress struct {
	CurrentTier string  `json:"current_tier"`
	NextTier    string  `json:"next_tier"`
	Progress    float64 `json:"progress"`
	MaxLevel    bool    `json:"max_level"`
	Discount    float64 `json:"discount_percentage"`
}

// ComputeVipProgress resolves the customer's tier from total spend. Spend
// equal to a threshold counts as having reached that tier; progress toward
// the next tier is clamped to [0,100] and pinned at 100 when no higher tier
// exists.
func ComputeVipProgress(totalSpent float64, tiers models.VipTierList) VipProgress {
	sorted := make([]models.VipTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinSpent < sorted[j].MinSpent })

	current := -1
	for i, tier := range sorted {
		if totalSpent >= tier.MinSpent {
			current = i
		}
	}

	progress := VipProgress{CurrentTier: StarterTierName}
	if current >= 0 {
		progress.CurrentTier = sorted[current].Name
		progress.Discount = sorted[current].DiscountPercentage
	}

	next := current + 1
	if next >= len(sorted) {
		// Already at the top tier (or no tiers configured at all).
		progress.Progress = 100
		progress.MaxLevel = true
		return progress
	}

	progress.NextTier = sorted[next].Name
	floor := 0.0
	if current >= 0 {
		floor = sorted[current].MinSpent
	}
	span := sorted[next].MinSpent - floor
	if span <= 0 {
		progress.Progress = 100
		return progress
	}
	pct := (totalSpent - floor) / span * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	progress.Progress = pct
	return progress
}

// DepositBonus returns the bonus amount for a deposit: the rule with the
// highest threshold not exceeding the deposit applies.
func DepositBonus(amount float64, rules models.BonusRuleList) float64 {
	best := -1.0
	bonusPct := 0.0
	for _, rule := range rules {
		if amount >= rule.DepositAmount && rule.DepositAmount > best {
			best = rule.DepositAmount
			bonusPct = rule.BonusPercentage
		}
	}
	if bonusPct <= 0 {
		return 0
	}
	return amount * bonusPct / 100
}
