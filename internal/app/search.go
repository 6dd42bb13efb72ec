package app

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rbaird/canteen/internal/model"
)

// Search runs a substring search over the aggregated state and records the
// results. An empty or whitespace-only query clears both the results and the
// persisted last-search value. A non-empty query is persisted raw, while
// matching is done on the trimmed, lower-cased form.
//
// Only selected buildings with a resident detail are searched. Ignored brand
// names skip the whole brand; an ignored menu-group label skips the group.
// The result order is the traversal order: selection order across buildings,
// source order within.
func (o *Orchestrator) Search(query string) []model.SearchResult {
	if strings.TrimSpace(query) == "" {
		o.mu.Lock()
		o.searchQuery = ""
		o.searchResults = nil
		o.prefs.SetLastSearch("")
		o.mu.Unlock()
		o.notifyChanged()
		return nil
	}

	needle := strings.ToLower(strings.TrimSpace(query))

	o.mu.Lock()
	o.searchQuery = query
	o.prefs.SetLastSearch(query)

	var floor decimal.Decimal
	if o.minPrice > 0 {
		floor = decimal.NewFromFloat(o.minPrice)
	}

	var results []model.SearchResult
	for _, buildingID := range o.selectedIDs {
		detail, ok := o.details[buildingID]
		if !ok {
			continue
		}
		for _, loc := range detail.Locations {
			for _, brand := range loc.Brands {
				if slices.Contains(o.ignoredBrands, brand.Name) {
					continue
				}
				for _, ref := range brand.Menus {
					menu, ok := o.menus[ref.ID]
					if !ok {
						continue
					}
					for _, group := range menu.Groups {
						if slices.Contains(o.ignoredBrands, group.Label.En) {
							continue
						}
						for _, item := range group.Items {
							if !matches(item, needle) {
								continue
							}
							if o.minPrice > 0 && item.Price.Amount.LessThan(floor) {
								continue
							}
							results = append(results, model.SearchResult{
								Item:         item,
								BuildingID:   buildingID,
								BuildingName: detail.Name,
								LocationName: brand.Name,
								BrandID:      brand.ID,
								MenuName:     menu.Label.En,
							})
						}
					}
				}
			}
		}
	}

	o.searchResults = results
	o.mu.Unlock()
	o.notifyChanged()
	return results
}

func matches(item model.MenuItem, needle string) bool {
	if strings.Contains(strings.ToLower(item.Label.En), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(item.Description.En), needle)
}
