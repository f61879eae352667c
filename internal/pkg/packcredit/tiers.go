package packcredit

import (
	"strings"

	"github.com/portraitforge/portraitforge/app/models"
)

// TierGrant describes what one pack tier is worth when a purchase is
// confirmed.
type TierGrant struct {
	Generations int
	Downloads   int
}

var tierGrants = map[models.PackTier]TierGrant{
	models.PackTierStarter: {Generations: 5, Downloads: 1},
	models.PackTierClassic: {Generations: 15, Downloads: 3},
	models.PackTierStudio:  {Generations: 40, Downloads: 10},
}

// GrantForTier resolves a tier name to its credit grants. Unknown tiers
// resolve to the starter grant.
func GrantForTier(tier string) (models.PackTier, TierGrant) {
	t := models.PackTier(strings.ToLower(strings.TrimSpace(tier)))
	if grant, ok := tierGrants[t]; ok {
		return t, grant
	}
	return models.PackTierStarter, tierGrants[models.PackTierStarter]
}
