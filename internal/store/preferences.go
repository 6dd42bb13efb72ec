package store

import (
	"encoding/json"
	"log/slog"

	"github.com/rbaird/canteen/internal/model"
)

const preferencesKey = "preferences"

// PreferencesStore persists the single per-device preferences record. Its
// contract is deliberately forgiving: loads fall back to defaults and saves
// absorb storage errors, so a broken preferences blob never takes the app down.
type PreferencesStore struct {
	kv     *KV
	logger *slog.Logger
}

func NewPreferencesStore(kv *KV, logger *slog.Logger) *PreferencesStore {
	return &PreferencesStore{kv: kv, logger: logger}
}

// Load returns the saved preferences, or the documented defaults when the
// record is missing or unreadable. It never fails the caller.
func (s *PreferencesStore) Load() model.Preferences {
	raw, ok, err := s.kv.Get(preferencesKey)
	if err != nil {
		s.logger.Error("load preferences", "error", err)
		return model.DefaultPreferences()
	}
	if !ok {
		return model.DefaultPreferences()
	}

	prefs := model.DefaultPreferences()
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		s.logger.Error("parse preferences", "error", err)
		return model.DefaultPreferences()
	}
	if prefs.SelectedBuildings == nil {
		prefs.SelectedBuildings = []string{}
	}
	return prefs
}

// Save overwrites the stored record with prefs. Storage errors are logged and
// absorbed, never propagated.
func (s *PreferencesStore) Save(prefs model.Preferences) {
	raw, err := json.Marshal(prefs)
	if err != nil {
		s.logger.Error("marshal preferences", "error", err)
		return
	}
	if err := s.kv.Set(preferencesKey, string(raw)); err != nil {
		s.logger.Error("save preferences", "error", err)
	}
}

// SetSelectedBuildings persists a new ordered selection, keeping the other
// preference fields intact.
func (s *PreferencesStore) SetSelectedBuildings(ids []string) {
	prefs := s.Load()
	prefs.SelectedBuildings = ids
	s.Save(prefs)
}

// SetLastSearch persists the raw search text. An empty string clears it.
func (s *PreferencesStore) SetLastSearch(query string) {
	prefs := s.Load()
	prefs.LastSearch = query
	s.Save(prefs)
}

func (s *PreferencesStore) SetIgnoredBrands(brands []string) {
	prefs := s.Load()
	prefs.IgnoredBrands = brands
	s.Save(prefs)
}

func (s *PreferencesStore) SetMinPrice(minPrice float64) {
	prefs := s.Load()
	prefs.MinPrice = minPrice
	s.Save(prefs)
}

func (s *PreferencesStore) SetSelectedCity(city string) {
	prefs := s.Load()
	prefs.SelectedCity = city
	s.Save(prefs)
}
