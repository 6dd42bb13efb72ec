package store

import (
	"log/slog"
	"slices"
	"testing"

	"github.com/rbaird/canteen/internal/model"
)

func setupPreferencesStore(t *testing.T) (*PreferencesStore, *KV) {
	t.Helper()
	kv := setupKV(t)
	return NewPreferencesStore(kv, slog.Default()), kv
}

func TestPreferencesDefaults(t *testing.T) {
	ps, _ := setupPreferencesStore(t)

	prefs := ps.Load()
	if prefs.SelectedCity != model.DefaultCity {
		t.Errorf("selected city = %q, want %q", prefs.SelectedCity, model.DefaultCity)
	}
	if len(prefs.SelectedBuildings) != 0 {
		t.Errorf("expected empty selection, got %v", prefs.SelectedBuildings)
	}
	if prefs.MinPrice != 0 {
		t.Errorf("min price = %v, want 0", prefs.MinPrice)
	}
	if !slices.Equal(prefs.IgnoredBrands, model.DefaultIgnoredBrands) {
		t.Errorf("ignored brands = %v, want defaults", prefs.IgnoredBrands)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	ps, _ := setupPreferencesStore(t)

	in := model.Preferences{
		SelectedBuildings: []string{"b2", "b1"},
		LastSearch:        "burger",
		IgnoredBrands:     []string{"SCAN & PAY"},
		MinPrice:          5.50,
		SelectedCity:      "Austin",
	}
	ps.Save(in)

	out := ps.Load()
	if !slices.Equal(out.SelectedBuildings, in.SelectedBuildings) {
		t.Errorf("selection = %v, want %v", out.SelectedBuildings, in.SelectedBuildings)
	}
	if out.LastSearch != "burger" || out.MinPrice != 5.50 || out.SelectedCity != "Austin" {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !slices.Equal(out.IgnoredBrands, in.IgnoredBrands) {
		t.Errorf("ignored brands = %v, want %v", out.IgnoredBrands, in.IgnoredBrands)
	}
}

func TestPreferencesCorruptRecordFallsBackToDefaults(t *testing.T) {
	ps, kv := setupPreferencesStore(t)

	if err := kv.Set(preferencesKey, "{not json"); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}

	prefs := ps.Load()
	if prefs.SelectedCity != model.DefaultCity {
		t.Errorf("selected city = %q, want default after corrupt record", prefs.SelectedCity)
	}
}

func TestPreferencesPartialSetters(t *testing.T) {
	ps, _ := setupPreferencesStore(t)

	ps.Save(model.Preferences{
		SelectedBuildings: []string{"b1"},
		IgnoredBrands:     []string{"Barcoder"},
		MinPrice:          2,
		SelectedCity:      "Seattle",
	})

	ps.SetLastSearch("coffee")
	ps.SetMinPrice(3.25)

	out := ps.Load()
	if out.LastSearch != "coffee" {
		t.Errorf("last search = %q, want %q", out.LastSearch, "coffee")
	}
	if out.MinPrice != 3.25 {
		t.Errorf("min price = %v, want 3.25", out.MinPrice)
	}
	// Untouched fields survive the read-modify-write
	if !slices.Equal(out.SelectedBuildings, []string{"b1"}) {
		t.Errorf("selection = %v, want [b1]", out.SelectedBuildings)
	}
	if out.SelectedCity != "Seattle" {
		t.Errorf("city = %q, want Seattle", out.SelectedCity)
	}

	ps.SetSelectedBuildings([]string{"b1", "b2"})
	ps.SetSelectedCity("Austin")
	ps.SetIgnoredBrands([]string{"Barcoder", "SCAN & PAY"})

	out = ps.Load()
	if !slices.Equal(out.SelectedBuildings, []string{"b1", "b2"}) {
		t.Errorf("selection = %v, want [b1 b2]", out.SelectedBuildings)
	}
	if out.SelectedCity != "Austin" {
		t.Errorf("city = %q, want Austin", out.SelectedCity)
	}
	if !slices.Equal(out.IgnoredBrands, []string{"Barcoder", "SCAN & PAY"}) {
		t.Errorf("ignored brands = %v", out.IgnoredBrands)
	}
}

func TestPreferencesClearLastSearch(t *testing.T) {
	ps, _ := setupPreferencesStore(t)

	ps.SetLastSearch("ramen")
	ps.SetLastSearch("")

	if got := ps.Load().LastSearch; got != "" {
		t.Errorf("last search = %q, want empty", got)
	}
}
