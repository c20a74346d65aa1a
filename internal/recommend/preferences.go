package recommend

import (
	"math"

	"github.com/donaldgifford/surplus-ml/pkg/features"
	domain "github.com/donaldgifford/surplus-ml/pkg/types"
)

// DefaultCategoryWeight is assigned to known categories with no interactions.
const DefaultCategoryWeight = 0.1

// actionWeights rank sharing and selling above consumption. Other types
// carry no preference signal.
var actionWeights = map[domain.InteractionType]float64{
	domain.InteractionConsumed: 1,
	domain.InteractionShared:   2,
	domain.InteractionSold:     2,
}

// UserProfiles aggregates weighted action counts per user and category and
// scales each user's weights so their top category is 1.
func UserProfiles(actions []domain.CategoryAction) map[int64]map[string]float64 {
	raw := make(map[int64]map[string]float64)
	for _, a := range actions {
		w, ok := actionWeights[a.Type]
		if !ok || a.Count <= 0 {
			continue
		}
		prefs, ok := raw[a.UserID]
		if !ok {
			prefs = make(map[string]float64)
			raw[a.UserID] = prefs
		}
		prefs[features.NormalizeCategory(a.Category)] += w * float64(a.Count)
	}

	for user, prefs := range raw {
		top := maxValue(prefs)
		if top <= 0 {
			delete(raw, user)
			continue
		}
		for c, v := range prefs {
			prefs[c] = v / top
		}
	}
	return raw
}

// GlobalWeights aggregates weighted action counts across all users, scales
// them by the most popular category and fills every known category that
// has no interactions with DefaultCategoryWeight. With no usable actions at
// all every category weighs 1.
func GlobalWeights(actions []domain.CategoryAction) map[string]float64 {
	totals := make(map[string]float64)
	for _, a := range actions {
		w, ok := actionWeights[a.Type]
		if !ok || a.Count <= 0 {
			continue
		}
		totals[features.NormalizeCategory(a.Category)] += w * float64(a.Count)
	}

	weights := make(map[string]float64, len(features.Categories()))
	if len(totals) == 0 {
		for _, c := range features.Categories() {
			weights[c] = 1
		}
		return weights
	}

	top := maxValue(totals)
	for c, v := range totals {
		weights[c] = math.Round(v/top*1e4) / 1e4
	}
	for _, c := range features.Categories() {
		if _, ok := weights[c]; !ok {
			weights[c] = DefaultCategoryWeight
		}
	}
	return weights
}

func maxValue(m map[string]float64) float64 {
	var top float64
	for _, v := range m {
		top = math.Max(top, v)
	}
	return top
}
