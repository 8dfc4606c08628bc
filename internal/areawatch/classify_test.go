package areawatch

import "testing"

func TestClassifyDefaults(t *testing.T) {
	c := NewClassifier(DefaultClassifierConfig())

	cases := []struct {
		code string
		want Zone
	}{
		{"G1_town", ZoneSafe},
		{"G_Endgame_Town", ZoneSafe},
		{"HideoutFelled", ZoneSafe},
		{"HideoutCanal", ZoneSafe},
		{"MapSteppe", ZoneMap},
		{"MapVaalCity", ZoneMap},
		{"MapAbyss_Pocket", ZoneSub},
		{"BreachDomain", ZoneSub},
		{"MapMonolith", ZoneTrigger},
		{"Tutorial_Start", ZoneSafe},
		{"Cinematic_Opening", ZoneSafe},
		// Unknown codes default to map, not safe.
		{"Sanctum_Floor1", ZoneMap},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.code); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// A code that matches both the sub marker and the map prefix must
	// classify as sub: markers outrank prefixes.
	c := NewClassifier(ClassifierConfig{
		SubMarkers:  []string{"Abyss"},
		MapPrefixes: []string{"Map"},
	})
	if got := c.Classify("MapAbyssalDepths"); got != ZoneSub {
		t.Fatalf("Classify(MapAbyssalDepths) = %v, want %v", got, ZoneSub)
	}
}

func TestIsSafeTarget(t *testing.T) {
	all := NewClassifier(ClassifierConfig{})
	if !all.IsSafeTarget("anything") {
		t.Error("empty target set should accept every code")
	}

	limited := NewClassifier(ClassifierConfig{SafeTargets: []string{"G1_town"}})
	if !limited.IsSafeTarget("G1_town") {
		t.Error("listed target rejected")
	}
	if limited.IsSafeTarget("HideoutFelled") {
		t.Error("unlisted target accepted")
	}
}
