package pipeline

import (
	"strings"

	"github.com/linesmerrill/creator-discovery-api/models"
)

const (
	locationUnknown = "Unknown"
	locationGlobal  = "Global"

	// maxLocationLength is the longest raw location still treated as a place name
	maxLocationLength = 100
)

var globalKeywords = []string{"global", "worldwide", "international"}

// proseMarkers show up in free-text location analyses rather than place names
var proseMarkers = []string{"based on", "analysis"}

// ResolveLocation picks the display location for a creator. A pre-classified
// region wins; otherwise the raw location is parsed. Region bucketing of raw
// values is not done: Region stays empty unless the store classified it.
func ResolveLocation(region, raw string) models.Location {
	if region = strings.TrimSpace(region); region != "" {
		return models.Location{Country: region, Region: region, Display: region}
	}
	return parseLocation(raw)
}

func parseLocation(raw string) models.Location {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownLocation()
	}

	lower := strings.ToLower(raw)
	if len(raw) > maxLocationLength || containsAny(lower, proseMarkers) || containsAny(lower, globalKeywords) {
		return models.Location{Country: locationGlobal, Region: locationGlobal, Display: locationGlobal}
	}
	return models.Location{Country: raw, Display: raw}
}

func unknownLocation() models.Location {
	return models.Location{Country: locationUnknown, Region: locationUnknown, Display: locationUnknown}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
