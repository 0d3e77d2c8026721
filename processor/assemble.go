package processor

import "optionflow/models"

// Assemble merges the primary page with pages for further maturities into
// one snapshot. Every record takes the primary page's CreatedAt; values are
// not recomputed.
func Assemble(primary *Page, secondaries ...*Page) models.Snapshot {
	chains := make([]models.Chain, 0, 1+len(secondaries))
	chains = append(chains, models.Chain{Calls: primary.Calls, Puts: primary.Puts})
	for _, p := range secondaries {
		chains = append(chains, models.Chain{Calls: p.Calls, Puts: p.Puts})
	}
	return models.NewSnapshot(primary.CreatedAt, primary.Spot, primary.Future, chains...)
}
