package model

// SearchResult is one matching menu item together with the structural context
// the UI needs to display it.
type SearchResult struct {
	Item         MenuItem `json:"item"`
	BuildingID   string   `json:"building_id"`
	BuildingName string   `json:"building_name"`
	LocationName string   `json:"location_name"`
	BrandID      string   `json:"brand_id"`
	MenuName     string   `json:"menu_name"`
}
