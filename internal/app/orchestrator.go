package app

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbaird/canteen/internal/catalog"
	"github.com/rbaird/canteen/internal/model"
	"github.com/rbaird/canteen/internal/store"
)

const maxConcurrentFetches = 8

// Catalog is the slice of the catalog client the orchestrator depends on.
type Catalog interface {
	FetchBuildings(ctx context.Context) (model.BuildingGroup, error)
	FetchBuildingDetail(ctx context.Context, buildingID string) (model.BuildingDetail, error)
	FetchMenuWithFallback(ctx context.Context, menuID string, cache model.MenuCache) (catalog.FallbackResult, error)
}

// State is the read-only snapshot handed to the presentation layer. The view
// never touches the orchestrator's maps directly.
type State struct {
	Buildings           []model.Building                `json:"buildings"`
	SelectedBuildingIDs []string                        `json:"selected_building_ids"`
	BuildingDetails     map[string]model.BuildingDetail `json:"building_details"`
	Menus               map[string]model.Menu           `json:"menus"`
	IgnoredBrands       []string                        `json:"ignored_brands"`
	MinPrice            float64                         `json:"min_price"`
	SelectedCity        string                          `json:"selected_city"`
	SearchQuery         string                          `json:"search_query"`
	SearchResults       []model.SearchResult            `json:"search_results"`
	IsShowingCachedData bool                            `json:"is_showing_cached_data"`
	CacheDate           *time.Time                      `json:"cache_date"`
	IsLoading           bool                            `json:"is_loading"`
	Error               string                          `json:"error,omitempty"`
}

// Orchestrator owns the aggregated menu state: the building list for the
// selected city, the user's ordered selection, lazily fetched building
// details, and the merged menu map. All mutation goes through its methods,
// which drive the fetch pipeline (buildings -> details -> menus) and persist
// preference changes as they happen.
type Orchestrator struct {
	catalog  Catalog
	prefs    *store.PreferencesStore
	cache    *store.MenuCacheStore
	logger   *slog.Logger
	onChange func()

	mu sync.Mutex
	// generation tags fetch batches; a city switch bumps it so in-flight
	// batches from the previous city are discarded instead of merged into
	// the freshly reset state.
	generation    uint64
	buildings     []model.Building
	selectedIDs   []string
	details       map[string]model.BuildingDetail
	menus         map[string]model.Menu
	ignoredBrands []string
	minPrice      float64
	selectedCity  string
	searchQuery   string
	searchResults []model.SearchResult
	showingCached bool
	cacheDate     time.Time
	loading       bool
	lastError     string
}

// New creates an orchestrator seeded from the persisted preferences.
// onChange, if non-nil, is invoked after every state mutation so the view
// layer can re-render; it must not call back into the orchestrator's mutating
// methods.
func New(cat Catalog, prefs *store.PreferencesStore, cache *store.MenuCacheStore, logger *slog.Logger, onChange func()) *Orchestrator {
	p := prefs.Load()
	return &Orchestrator{
		catalog:       cat,
		prefs:         prefs,
		cache:         cache,
		logger:        logger,
		onChange:      onChange,
		selectedIDs:   p.SelectedBuildings,
		ignoredBrands: p.IgnoredBrands,
		minPrice:      p.MinPrice,
		selectedCity:  p.SelectedCity,
		details:       make(map[string]model.BuildingDetail),
		menus:         make(map[string]model.Menu),
	}
}

func (o *Orchestrator) notifyChanged() {
	if o.onChange != nil {
		o.onChange()
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := State{
		Buildings:           slices.Clone(o.buildings),
		SelectedBuildingIDs: slices.Clone(o.selectedIDs),
		BuildingDetails:     make(map[string]model.BuildingDetail, len(o.details)),
		Menus:               make(map[string]model.Menu, len(o.menus)),
		IgnoredBrands:       slices.Clone(o.ignoredBrands),
		MinPrice:            o.minPrice,
		SelectedCity:        o.selectedCity,
		SearchQuery:         o.searchQuery,
		SearchResults:       slices.Clone(o.searchResults),
		IsShowingCachedData: o.showingCached,
		IsLoading:           o.loading,
		Error:               o.lastError,
	}
	for id, d := range o.details {
		st.BuildingDetails[id] = d
	}
	for id, m := range o.menus {
		st.Menus[id] = m
	}
	if !o.cacheDate.IsZero() {
		d := o.cacheDate
		st.CacheDate = &d
	}
	return st
}

// RefreshBuildings fetches the full building catalog, keeps the buildings of
// the selected city, and fetches details for any selected building not yet
// resident. A failure of this top-level fetch is the only error surfaced to
// the user; everything downstream degrades silently.
func (o *Orchestrator) RefreshBuildings(ctx context.Context) {
	o.mu.Lock()
	city := o.selectedCity
	gen := o.generation
	if city == "" {
		o.loading = false
		o.mu.Unlock()
		o.notifyChanged()
		return
	}
	o.loading = true
	o.lastError = ""
	o.mu.Unlock()
	o.notifyChanged()

	group, err := o.catalog.FetchBuildings(ctx)
	if err != nil {
		o.logger.Error("fetch buildings", "error", err)
		o.mu.Lock()
		if gen == o.generation {
			o.lastError = "Failed to load buildings"
		}
		o.loading = false
		o.mu.Unlock()
		o.notifyChanged()
		return
	}

	cityBuildings := make([]model.Building, 0, len(group.Groups))
	for _, b := range group.Groups {
		if b.Address.City == city {
			cityBuildings = append(cityBuildings, b)
		}
	}

	o.mu.Lock()
	var missing []string
	if gen == o.generation {
		o.buildings = cityBuildings
		for _, id := range o.selectedIDs {
			if _, ok := o.details[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	o.mu.Unlock()
	o.notifyChanged()

	o.fetchDetails(ctx, gen, missing)

	o.mu.Lock()
	o.loading = false
	o.mu.Unlock()
	o.notifyChanged()
}

// ToggleSelection adds or removes a building from the ordered selection and
// persists the new list. A newly added building without a resident detail
// triggers a detail fetch for just that id.
func (o *Orchestrator) ToggleSelection(ctx context.Context, buildingID string) {
	o.mu.Lock()
	var toFetch []string
	if i := slices.Index(o.selectedIDs, buildingID); i >= 0 {
		o.selectedIDs = slices.Delete(slices.Clone(o.selectedIDs), i, i+1)
	} else {
		o.selectedIDs = append(slices.Clone(o.selectedIDs), buildingID)
		if _, ok := o.details[buildingID]; !ok {
			toFetch = []string{buildingID}
		}
	}
	o.prefs.SetSelectedBuildings(slices.Clone(o.selectedIDs))
	gen := o.generation
	o.mu.Unlock()
	o.notifyChanged()

	o.fetchDetails(ctx, gen, toFetch)
}

// SetIgnoredBrands replaces the ignored-brand list and re-runs the detail
// pipeline for every selected building: brand exclusion decides which menus
// get requested at all, so the previous batches may have skipped menus that
// are now wanted.
func (o *Orchestrator) SetIgnoredBrands(ctx context.Context, brands []string) {
	o.mu.Lock()
	o.ignoredBrands = slices.Clone(brands)
	o.prefs.SetIgnoredBrands(brands)
	ids := slices.Clone(o.selectedIDs)
	gen := o.generation
	o.mu.Unlock()
	o.notifyChanged()

	o.fetchDetails(ctx, gen, ids)
}

// SetMinPrice updates and persists the minimum price floor. Zero disables it.
func (o *Orchestrator) SetMinPrice(minPrice float64) {
	o.mu.Lock()
	o.minPrice = minPrice
	o.prefs.SetMinPrice(minPrice)
	o.mu.Unlock()
	o.notifyChanged()
}

// SetSelectedCity switches the city. A no-op when unchanged; otherwise a hard
// reset: buildings, details, menus, selection and search results are all
// city-scoped and cleared before the new city's catalog is fetched. The
// device menu cache is keyed by global menu id and survives the switch.
func (o *Orchestrator) SetSelectedCity(ctx context.Context, city string) {
	o.mu.Lock()
	if city == o.selectedCity {
		o.mu.Unlock()
		return
	}
	o.generation++
	o.selectedCity = city
	o.buildings = nil
	o.details = make(map[string]model.BuildingDetail)
	o.menus = make(map[string]model.Menu)
	o.selectedIDs = []string{}
	o.searchQuery = ""
	o.searchResults = nil
	o.showingCached = false
	o.cacheDate = time.Time{}
	o.prefs.SetSelectedCity(city)
	o.prefs.SetSelectedBuildings([]string{})
	o.mu.Unlock()
	o.notifyChanged()

	o.RefreshBuildings(ctx)
}

// fetchDetails fans out detail fetches for ids, merges the successes, and
// fetches the menus those details reference. A per-id failure is logged and
// that id omitted; it never aborts the batch. The merge happens only after
// the whole batch settles, and only if the batch's generation is still
// current.
func (o *Orchestrator) fetchDetails(ctx context.Context, gen uint64, ids []string) {
	if len(ids) == 0 {
		return
	}

	fetched := make(map[string]model.BuildingDetail, len(ids))
	var fetchedMu sync.Mutex
	eg := &errgroup.Group{}
	eg.SetLimit(maxConcurrentFetches)
	for _, id := range ids {
		eg.Go(func() error {
			detail, err := o.catalog.FetchBuildingDetail(ctx, id)
			if err != nil {
				o.logger.Error("fetch building detail", "building_id", id, "error", err)
				return nil
			}
			fetchedMu.Lock()
			fetched[id] = detail
			fetchedMu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	if len(fetched) == 0 {
		return
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.logger.Debug("discarding superseded detail batch", "buildings", len(fetched))
		return
	}
	// Collect every referenced menu id, skipping ignored brands. Duplicate
	// ids across buildings are expected; the menu map is keyed by id.
	var menuIDs []string
	for _, id := range ids {
		detail, ok := fetched[id]
		if !ok {
			continue
		}
		o.details[detail.ID] = detail
		for _, loc := range detail.Locations {
			for _, brand := range loc.Brands {
				if slices.Contains(o.ignoredBrands, brand.Name) {
					continue
				}
				for _, ref := range brand.Menus {
					if ref.ID != "" {
						menuIDs = append(menuIDs, ref.ID)
					}
				}
			}
		}
	}
	o.mu.Unlock()
	o.notifyChanged()

	o.fetchMenus(ctx, gen, menuIDs)
}

// fetchMenus fans out menu fetches through the cache fallback. Fresh results
// are written through to the device cache as each one resolves; the in-memory
// merge and the cache-status flags are updated only after the batch settles.
// The flags describe this batch alone, not a running maximum.
func (o *Orchestrator) fetchMenus(ctx context.Context, gen uint64, menuIDs []string) {
	if len(menuIDs) == 0 {
		return
	}

	cached := o.cache.Load()

	newMenus := make(map[string]model.Menu, len(menuIDs))
	var (
		resultMu  sync.Mutex
		usedCache bool
		latest    time.Time
	)
	eg := &errgroup.Group{}
	eg.SetLimit(maxConcurrentFetches)
	for _, menuID := range menuIDs {
		eg.Go(func() error {
			res, err := o.catalog.FetchMenuWithFallback(ctx, menuID, cached)
			if err != nil {
				o.logger.Warn("fetch menu", "menu_id", menuID, "error", err)
				return nil
			}
			if !res.IsCached {
				o.cache.CacheMenu(menuID, res.Menu)
			}
			resultMu.Lock()
			newMenus[menuID] = res.Menu
			if res.IsCached {
				usedCache = true
				if res.CachedAt.After(latest) {
					latest = res.CachedAt
				}
			}
			resultMu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.logger.Debug("discarding superseded menu batch", "menus", len(newMenus))
		return
	}
	for id, menu := range newMenus {
		o.menus[id] = menu
	}
	o.showingCached = usedCache
	o.cacheDate = latest
	o.mu.Unlock()
	o.notifyChanged()
}
