// Package category maps articles onto the fixed set of maritime news categories.
package category

import (
	"strings"

	"github.com/nara-digital/newsingest/internal/textutil"
)

const (
	// Default is returned when nothing else matches. It is part of the canonical set.
	Default = "General"

	// ClassifierName and ClassifierVersion identify the keyword heuristic in stored documents.
	ClassifierName    = "keyword-heuristic"
	ClassifierVersion = "1"
)

type rule struct {
	name     string
	keywords []string
}

// Order matters: the first category with a matching keyword wins, so specific
// categories sit above broad ones like ocean research.
var rules = []rule{
	{"Disaster Management", []string{"tsunami", "flood", "disaster", "storm surge", "early warning", "landslide"}},
	{"Maritime Safety", []string{"rescue", "coast guard", "capsiz", "distress", "navy", "missing fishermen"}},
	{"Pollution & Environment", []string{"pollution", "oil spill", "plastic", "contamination", "x-press pearl", "waste"}},
	{"Fisheries", []string{"fisheries", "fishing", "fishermen", "fish stock", "trawler", "multi-day boat"}},
	{"Aquaculture", []string{"aquaculture", "fish farm", "shrimp farm", "prawn farm", "hatchery", "mariculture", "sea cucumber"}},
	{"Marine Conservation", []string{"conservation", "marine protected", "coral", "turtle", "whale", "dolphin", "mangrove"}},
	{"Climate & Weather", []string{"climate", "monsoon", "cyclone", "weather", "rainfall", "sea level"}},
	{"Coastal Management", []string{"coastal", "erosion", "beach", "lagoon", "shoreline"}},
	{"Ports & Shipping", []string{"harbour", "harbor", "shipping", "container terminal", "cargo", "port city"}},
	{"Blue Economy", []string{"blue economy", "seafood export", "marine tourism", "investment", "ornamental fish"}},
	{"Technology & Innovation", []string{"technology", "satellite", "drone", "innovation", "sensor", "remote sensing"}},
	{"Policy & Governance", []string{"ministry", "minister", "cabinet", "regulation", "legislation", "policy"}},
	{"Community & Livelihoods", []string{"livelihood", "community", "village", "welfare", "subsidy"}},
	{"Events & Outreach", []string{"workshop", "seminar", "exhibition", "awareness", "ceremony", "symposium"}},
	{"Ocean Research", []string{"research", "scientist", "survey", "oceanograph", "expedition", "nara"}},
}

// Names returns the canonical category labels, default last.
func Names() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.name)
	}
	return append(out, Default)
}

// Normalize matches label against the canonical set ignoring case and whitespace.
func Normalize(label string) (string, bool) {
	key := textutil.Fold(label)
	if key == "" {
		return "", false
	}
	for _, name := range Names() {
		if textutil.Fold(name) == key {
			return name, true
		}
	}
	return "", false
}

// Heuristic returns the first category whose keyword appears in the joined text.
func Heuristic(parts ...string) string {
	text := strings.Join(parts, " ")
	for _, r := range rules {
		if textutil.ContainsAny(text, r.keywords) {
			return r.name
		}
	}
	return Default
}

// Ensure returns the canonical form of candidate, or the heuristic category of
// the article text when candidate is not a known label. Never empty.
func Ensure(candidate string, parts ...string) string {
	if name, ok := Normalize(candidate); ok {
		return name
	}
	return Heuristic(parts...)
}
