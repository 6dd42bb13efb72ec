package model

import "github.com/shopspring/decimal"

// Label holds the localized display text used throughout the catalog API.
type Label struct {
	En string `json:"en"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Address struct {
	Address     string      `json:"address"`
	City        string      `json:"city"`
	State       string      `json:"state"`
	Zip         string      `json:"zip"`
	Country     string      `json:"country"`
	Coordinates Coordinates `json:"coordinates"`
}

// Timestamps mirrors the catalog's "date" object. Values are RFC 3339 strings
// as returned by the service; they are display data, never parsed.
type Timestamps struct {
	Created   string `json:"created,omitempty"`
	Modified  string `json:"modified,omitempty"`
	Published string `json:"published,omitempty"`
}

// Building is one entry of the building catalog. Immutable once fetched;
// a re-fetch replaces it wholesale.
type Building struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Label   Label      `json:"label"`
	Address Address    `json:"address"`
	Date    Timestamps `json:"date"`
}

// BuildingGroup is the response shape of the full catalog fetch.
type BuildingGroup struct {
	ID     string     `json:"id"`
	Groups []Building `json:"groups"`
}

// BuildingDetail is fetched lazily, only for selected buildings.
type BuildingDetail struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Locations []DiningLocation `json:"locations"`
}

type DiningLocation struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Label   Label         `json:"label"`
	Address Address       `json:"address"`
	Brands  []DiningBrand `json:"brands"`
}

// DiningBrand groups the menus of one vendor inside a location. Location is a
// back-reference to the parent location id, never used for ownership.
type DiningBrand struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Label    Label     `json:"label"`
	Menus    []MenuRef `json:"menus"`
	Location string    `json:"location"`
}

// MenuRef is the lightweight pointer a brand holds to a menu. The same menu id
// may be referenced by brands in different buildings.
type MenuRef struct {
	ID    string `json:"id"`
	Label Label  `json:"label"`
	State string `json:"state"`
}

type Menu struct {
	ID     string      `json:"id"`
	Label  Label       `json:"label"`
	Groups []MenuGroup `json:"groups"`
	Date   Timestamps  `json:"date"`
}

type MenuGroup struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Label Label      `json:"label"`
	Items []MenuItem `json:"items"`
}

type Price struct {
	Amount decimal.Decimal `json:"amount"`
}

type ItemMeta struct {
	MenuSortNumber int    `json:"menu_sort_number"`
	PLU            string `json:"plu"`
	UniqueID       int64  `json:"unique_id"`
}

// MenuItem is immutable value data.
type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Label       Label    `json:"label"`
	Description Label    `json:"description"`
	Price       Price    `json:"price"`
	Meta        ItemMeta `json:"meta"`
}

// CachedMenu wraps a menu with the unix-millisecond timestamp at which it was
// written to the device cache.
type CachedMenu struct {
	Menu      Menu  `json:"menu"`
	Timestamp int64 `json:"timestamp"`
}

// MenuCache maps menu id to its cached copy. It is a superset across all
// cities ever fetched on the device: never pruned, last write wins per id.
type MenuCache map[string]CachedMenu
