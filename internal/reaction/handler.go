// Package reaction implements C6: diffing two reaction snapshots into
// added/removed sets and canonicalizing emoji symbols to stable names
// (spec.md §4.4).
package reaction

import (
	"sort"

	"github.com/meshbridge/bridge/internal/coreerr"
)

// Diff computes added/removed emoji names between old and new snapshots.
// added = { e : new[e] > old.get(e, 0) }
// removed = { e : new.get(e, 0) < old[e] } (including full removal)
// Both lists are returned sorted, satisfying invariant #4 in spec.md §8:
// the fold of any sequence of add/remove events is commutative per-emoji.
func Diff(old, new map[string]int) (added, removed []string) {
	for e, n := range new {
		if n > old[e] {
			added = append(added, e)
		}
	}
	for e, o := range old {
		if new[e] < o {
			removed = append(removed, e)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// table is the platform-agnostic emoji canonicalization table (symbol ->
// stable textual name) from spec.md §4.4. Extend as new platforms
// contribute symbols; unknown symbols canonicalize to themselves so
// inbound diffing never silently drops a reaction.
var table = map[string]string{
	"\U0001F44D": "thumbs_up",
	"\U0001F44E": "thumbs_down",
	"❤️": "heart",
	"\U0001F602": "joy",
	"\U0001F62E": "open_mouth",
	"\U0001F622": "cry",
	"\U0001F64F": "pray",
	"\U0001F389": "tada",
	"\U0001F440": "eyes",
	"\U0001F525": "fire",
	"\U0001F44F": "clap",
	"\U0001F601": "grin",
}

var reverseTable = func() map[string]string {
	m := make(map[string]string, len(table))
	for symbol, name := range table {
		m[name] = symbol
	}
	return m
}()

// Canonicalize maps an upstream emoji symbol to its stable name.
func Canonicalize(symbol string) string {
	if name, ok := table[symbol]; ok {
		return name
	}
	return symbol
}

// ToSymbol reverses Canonicalize for outbound requests. Returns
// coreerr.KindUnknownEmoji when name is not in the table and is not
// already a raw symbol we'd recognize.
func ToSymbol(name string) (string, error) {
	if symbol, ok := reverseTable[name]; ok {
		return symbol, nil
	}
	if _, isSymbol := table[name]; isSymbol {
		return name, nil
	}
	return "", coreerr.New(coreerr.KindUnknownEmoji, "unsupported_emoji: "+name)
}
