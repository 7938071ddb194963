// Package xref implements the cross-reference linker (spec §4.I): match an
// in-memory list of extracted ships against an external catalogue of
// (id, displayName) pairs through three ordered passes, each round-robin
// over the catalogue, with the invariant that no catalogue entry and no
// ship UUID is ever matched twice. Grounded on assets/texture.go's
// try-then-fallback ResolveTexture shape and assets/baseline.go's
// map[string]bool dedup-set pattern.
package xref

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Ship is the minimal shape the linker needs from an extracted ship row.
type Ship struct {
	UUID        uuid.UUID
	ClassName   string
	DisplayName string
}

// CatalogueEntry is one external-catalogue row to link against.
type CatalogueEntry struct {
	ID          string
	DisplayName string
}

// Link is one resolved (catalogueId -> shipUuid) pair.
type Link struct {
	CatalogueID string
	ShipUUID    uuid.UUID
}

// AliasTable maps a catalogue display name to a ship display name. Both
// sides are normalised before matching.
type AliasTable map[string]string

// Normalise implements the §4.I pipeline: lowercase -> NFD -> strip
// combining marks -> curly quotes -> straight -> hyphen -> space -> drop
// periods and slashes -> collapse whitespace.
func Normalise(s string) string {
	s = strings.ToLower(s)
	s = norm.NFD.String(s)
	s = stripCombiningMarks(s)
	s = replaceCurlyQuotes(s)
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "/", "")
	return collapseWhitespace(s)
}

func stripCombiningMarks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isCombiningMark(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isCombiningMark(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}

var curlyToStraight = map[rune]rune{
	'‘': '\'', '’': '\'', '‛': '\'',
	'“': '"', '”': '"', '‟': '"',
}

func replaceCurlyQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if rep, ok := curlyToStraight[r]; ok {
			b.WriteRune(rep)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// manufacturerPrefixes mirrors index.knownManufacturers but is kept
// independent here since this package must not import internal/index
// (xref only sees already-extracted ship rows).
var manufacturerPrefixes = []string{
	"aegs", "anvl", "argo", "banu", "cnou", "crus", "drak", "espr", "gama",
	"glsn", "grey", "grin", "krig", "misc", "mrai", "orig", "rsi", "tmbl",
	"vncl", "xian", "xnaa",
}

// classNameShortForm strips a leading "<manufacturer>_" prefix and
// underscores, giving the alias pass a second normalised form to try.
func classNameShortForm(className string) string {
	lower := strings.ToLower(className)
	for _, p := range manufacturerPrefixes {
		if strings.HasPrefix(lower, p+"_") {
			lower = lower[len(p)+1:]
			break
		}
	}
	return Normalise(strings.ReplaceAll(lower, "_", " "))
}

// tokenize splits on spaces and keeps tokens of length >= 2, for the
// overlap pass.
func tokenize(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

const overlapScoreThreshold = 0.6
const overlapMinTokenMatches = 2

// Resolve runs the three-pass linker and returns every resolved link.
func Resolve(ships []Ship, catalogue []CatalogueEntry, aliases AliasTable) []Link {
	claimedCatalogue := make(map[string]bool, len(catalogue))
	claimedShip := make(map[uuid.UUID]bool, len(ships))
	var links []Link

	normShipByExact := make(map[string]Ship, len(ships))
	for _, s := range ships {
		normShipByExact[Normalise(s.DisplayName)] = s
	}

	// Pass 1: exact normalised name.
	for _, entry := range catalogue {
		if claimedCatalogue[entry.ID] {
			continue
		}
		normalised := Normalise(entry.DisplayName)
		if s, ok := normShipByExact[normalised]; ok && !claimedShip[s.UUID] {
			links = append(links, Link{CatalogueID: entry.ID, ShipUUID: s.UUID})
			claimedCatalogue[entry.ID] = true
			claimedShip[s.UUID] = true
		}
	}

	// Pass 2: alias table OR class-name short form OR manufacturer-prefix
	// stripping.
	normShipByShortForm := make(map[string]Ship, len(ships))
	for _, s := range ships {
		normShipByShortForm[classNameShortForm(s.ClassName)] = s
	}
	for _, entry := range catalogue {
		if claimedCatalogue[entry.ID] {
			continue
		}
		normCatalogue := Normalise(entry.DisplayName)

		if aliasTarget, ok := aliases[entry.DisplayName]; ok {
			normAlias := Normalise(aliasTarget)
			if s, ok := normShipByExact[normAlias]; ok && !claimedShip[s.UUID] {
				links = append(links, Link{CatalogueID: entry.ID, ShipUUID: s.UUID})
				claimedCatalogue[entry.ID] = true
				claimedShip[s.UUID] = true
				continue
			}
		}
		if s, ok := normShipByShortForm[normCatalogue]; ok && !claimedShip[s.UUID] {
			links = append(links, Link{CatalogueID: entry.ID, ShipUUID: s.UUID})
			claimedCatalogue[entry.ID] = true
			claimedShip[s.UUID] = true
		}
	}

	// Pass 3: token overlap, accept the best unclaimed candidate iff at
	// least 2 tokens match and hits/|catalogueTokens| >= 0.6.
	for _, entry := range catalogue {
		if claimedCatalogue[entry.ID] {
			continue
		}
		catalogueTokens := tokenize(Normalise(entry.DisplayName))
		if len(catalogueTokens) == 0 {
			continue
		}

		var best Ship
		var bestScore float64
		found := false
		for _, s := range ships {
			if claimedShip[s.UUID] {
				continue
			}
			shipTokens := tokenize(Normalise(s.DisplayName))
			hits := countOverlap(catalogueTokens, shipTokens)
			if hits < overlapMinTokenMatches {
				continue
			}
			score := float64(hits) / float64(len(catalogueTokens))
			if score < overlapScoreThreshold {
				continue
			}
			if !found || score > bestScore {
				best, bestScore, found = s, score, true
			}
		}
		if found {
			links = append(links, Link{CatalogueID: entry.ID, ShipUUID: best.UUID})
			claimedCatalogue[entry.ID] = true
			claimedShip[best.UUID] = true
		}
	}

	return links
}

func countOverlap(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	hits := 0
	for _, t := range a {
		if set[t] {
			hits++
		}
	}
	return hits
}
