package areawatch

import "strings"

// Zone is the semantic classification of an area code.
type Zone int

const (
	// ZoneSafe is a hub (hideout or town); no run is active there.
	ZoneSafe Zone = iota
	// ZoneMap is a run-bearing endgame area.
	ZoneMap
	// ZoneSub is a nested pocket (abyss, breach) reachable from within a
	// map that must not end the run.
	ZoneSub
	// ZoneTrigger is a designated area whose exit into a safe target
	// fires the trigger callback instead of a plain transition.
	ZoneTrigger
)

func (z Zone) String() string {
	switch z {
	case ZoneSafe:
		return "safe"
	case ZoneMap:
		return "map"
	case ZoneSub:
		return "sub"
	case ZoneTrigger:
		return "trigger"
	default:
		return "unknown"
	}
}

// ClassifierConfig holds the code sets and markers driving classification.
type ClassifierConfig struct {
	// SafeCodes are exact codes for towns and other hubs.
	SafeCodes []string
	// SafePrefixes classify by prefix, e.g. every hideout variant.
	SafePrefixes []string
	// TriggerCodes are exact codes classified as trigger zones.
	TriggerCodes []string
	// SafeTargets are the safe codes that complete a trigger transition.
	// Empty means every safe zone qualifies.
	SafeTargets []string
	// SubMarkers classify by substring (abyss/breach pockets).
	SubMarkers []string
	// MapPrefixes classify by prefix as run-bearing areas.
	MapPrefixes []string
	// IgnoreMarkers are substrings for tutorial/cinematic areas, which
	// classify as safe.
	IgnoreMarkers []string
}

// DefaultClassifierConfig returns the built-in zone tables.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		SafeCodes: []string{
			"G1_town", "G2_town", "G3_town", "G4_town",
			"G_Endgame_Town",
		},
		SafePrefixes: []string{"Hideout"},
		TriggerCodes: []string{"MapMonolith", "MapCitadel"},
		SafeTargets:  nil,
		SubMarkers:   []string{"Abyss", "Breach"},
		MapPrefixes:  []string{"Map"},
		IgnoreMarkers: []string{
			"Tutorial", "Cinematic", "Intro", "Login",
		},
	}
}

// Classifier maps area codes to zones. First match wins, in priority
// order: explicit safe sets, trigger codes, sub markers, map prefixes,
// ignore markers; everything left over is a map.
type Classifier struct {
	safeCodes    map[string]struct{}
	safePrefixes []string
	triggerCodes map[string]struct{}
	safeTargets  map[string]struct{}
	subMarkers   []string
	mapPrefixes  []string
	ignore       []string
}

// NewClassifier builds a classifier from the given tables.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	c := &Classifier{
		safeCodes:    make(map[string]struct{}, len(cfg.SafeCodes)),
		safePrefixes: cfg.SafePrefixes,
		triggerCodes: make(map[string]struct{}, len(cfg.TriggerCodes)),
		safeTargets:  make(map[string]struct{}, len(cfg.SafeTargets)),
		subMarkers:   cfg.SubMarkers,
		mapPrefixes:  cfg.MapPrefixes,
		ignore:       cfg.IgnoreMarkers,
	}
	for _, code := range cfg.SafeCodes {
		c.safeCodes[code] = struct{}{}
	}
	for _, code := range cfg.TriggerCodes {
		c.triggerCodes[code] = struct{}{}
	}
	for _, code := range cfg.SafeTargets {
		c.safeTargets[code] = struct{}{}
	}
	return c
}

// Classify returns the zone for an area code.
func (c *Classifier) Classify(code string) Zone {
	if _, ok := c.safeCodes[code]; ok {
		return ZoneSafe
	}
	for _, p := range c.safePrefixes {
		if strings.HasPrefix(code, p) {
			return ZoneSafe
		}
	}
	if _, ok := c.triggerCodes[code]; ok {
		return ZoneTrigger
	}
	for _, m := range c.subMarkers {
		if strings.Contains(code, m) {
			return ZoneSub
		}
	}
	for _, p := range c.mapPrefixes {
		if strings.HasPrefix(code, p) {
			return ZoneMap
		}
	}
	for _, m := range c.ignore {
		if strings.Contains(code, m) {
			return ZoneSafe
		}
	}
	return ZoneMap
}

// IsSafeTarget reports whether a safe code completes a trigger
// transition.
func (c *Classifier) IsSafeTarget(code string) bool {
	if len(c.safeTargets) == 0 {
		return true
	}
	_, ok := c.safeTargets[code]
	return ok
}
