// internal/normalize/normalize.go
package normalize

import (
	"math"
	"regexp"
	"strings"
)

// Punctuation removed from names and strict address keys.
const strippedPunct = "()-_/.,"

var (
	whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)

	// District: 강남구 / 양평군 / gangnam-gu
	districtRe = regexp.MustCompile(`(?:^|\s)([가-힣]+(?:구|군)|[a-z]+-(?:gu|gun))(?:\s|$)`)

	// Road name with optional numbered sub-road, followed by an optional building number.
	roadRe = regexp.MustCompile(`(?:^|\s)([가-힣0-9]+(?:로|길)|[a-z0-9]+-(?:daero|ro|gil))(?:\s(\d+(?:번)?길|\d+-gil))?(?:\s(\d+(?:-\d+)?))?(?:\s|$)`)
)

var punctReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, len(strippedPunct)*2)
	for _, r := range strippedPunct {
		pairs = append(pairs, string(r), "")
	}
	return strings.NewReplacer(pairs...)
}()

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NameKey lowercases a venue name, strips the fixed punctuation set and
// collapses whitespace. NameKey(NameKey(x)) == NameKey(x).
func NameKey(name string) string {
	return collapse(punctReplacer.Replace(strings.ToLower(name)))
}

// StrictAddressKey applies the NameKey transform to address text.
func StrictAddressKey(address string) string {
	if strings.TrimSpace(address) == "" {
		return ""
	}
	return NameKey(address)
}

// CompactName is the name token used for proximity matching: the name key
// with all spaces removed, so "Seoul Kitchen" and "SeoulKitchen" agree.
func CompactName(name string) string {
	return strings.ReplaceAll(NameKey(name), " ", "")
}

// LooseAddressSignature extracts a (district, road, building number) triple
// and joins the parts that were found. Returns "" when no road-like token is
// present, so callers fall back to the strict key.
func LooseAddressSignature(address string) string {
	text := strings.ToLower(address)
	text = strings.NewReplacer(",", " ", ".", " ", "(", " ", ")", " ").Replace(text)
	text = collapse(text)
	if text == "" {
		return ""
	}

	road := roadRe.FindStringSubmatch(text)
	if road == nil || road[1] == "" {
		return ""
	}

	parts := make([]string, 0, 4)
	if m := districtRe.FindStringSubmatch(text); m != nil {
		parts = append(parts, m[1])
	}
	parts = append(parts, road[1])
	if road[2] != "" {
		parts = append(parts, road[2])
	}
	if road[3] != "" {
		parts = append(parts, road[3])
	}
	return strings.Join(parts, " ")
}

// AddressKey prefers the loose signature and falls back to the strict key.
func AddressKey(address string) string {
	if loose := LooseAddressSignature(address); loose != "" {
		return loose
	}
	return StrictAddressKey(address)
}

// IdentityKey groups records that describe the same venue. Empty when either
// the name or the address key is empty.
func IdentityKey(name, address string) string {
	nameKey := NameKey(name)
	addrKey := AddressKey(address)
	if nameKey == "" || addrKey == "" {
		return ""
	}
	return nameKey + "|" + addrKey
}

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BoundingBox returns the lat/lon deltas covering radiusMeters around lat.
// Used as a cheap index-friendly prefilter before DistanceMeters.
func BoundingBox(lat, radiusMeters float64) (dLat, dLon float64) {
	dLat = radiusMeters / 111000.0
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLon = radiusMeters / (111000.0 * cos)
	return dLat, dLon
}
