package canonical

import (
	"regexp"
	"strings"

	"github.com/apemarkets/curator/internal/domain"
)

// Entity-extraction patterns for interrogative option names, tried in order
// of specificity. The heuristic is a known precision limit: multi-clause or
// irregular phrasing can misfire, and no attempt is made to parse arbitrary
// questions correctly.
var (
	willWinRe = regexp.MustCompile(`(?i)^will\s+(.+?)\s+win\b`)
	willBeRe  = regexp.MustCompile(`(?i)^will\s+(.+?)\s+be\b`)
	willAnyRe = regexp.MustCompile(`(?i)^will\s+(.+?)(?:\s+in\s|\s+by\s|\s+at\s|\s+on\s|\?|$)`)
)

// entityKey normalizes an option's display text to the key identifying the
// real-world entity it denotes. A question of the form "Will <X> win ...?"
// (or "Will <X> ...?") keys on <X>; anything else keys on the text itself.
func entityKey(display string) string {
	display = strings.TrimSpace(display)
	for _, re := range []*regexp.Regexp{willWinRe, willBeRe, willAnyRe} {
		if m := re.FindStringSubmatch(display); m != nil {
			return strings.ToLower(strings.TrimSpace(m[1]))
		}
	}
	return strings.ToLower(display)
}

// numericID reports whether an id consists solely of ASCII digits. Purely
// numeric source ids come from the option-market list; non-numeric ids come
// from the cleaner event-children source.
func numericID(id string) bool {
	if id == "" {
		return true
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Deduplicate merges options that denote the same entity under different
// textual surface forms, e.g. a bare name and a yes/no question mentioning
// that name. Group order follows first appearance; within a group the
// representative is the option with a non-numeric source id, falling back to
// the shortest display name, then first seen. The representative keeps its
// own icon when it has one, otherwise the first non-nil icon in the group.
//
// Deduplicate is idempotent: applying it to its own output is a no-op.
func Deduplicate(options []domain.Option) []domain.Option {
	if len(options) < 2 {
		return options
	}

	type group struct {
		members []domain.Option
	}

	var order []string
	groups := make(map[string]*group, len(options))

	for _, opt := range options {
		key := entityKey(opt.DisplayName)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, opt)
	}

	out := make([]domain.Option, 0, len(order))
	for _, key := range order {
		g := groups[key]
		rep := pickRepresentative(g.members)
		if rep.IconURL == nil {
			for _, m := range g.members {
				if m.IconURL != nil {
					rep.IconURL = m.IconURL
					break
				}
			}
		}
		out = append(out, rep)
	}
	return out
}

// pickRepresentative selects the member that best names the entity.
func pickRepresentative(members []domain.Option) domain.Option {
	best := members[0]
	for _, m := range members[1:] {
		if betterRepresentative(m, best) {
			best = m
		}
	}
	return best
}

// betterRepresentative reports whether a should replace the current best b.
// Strict improvement only, so earlier members win ties.
func betterRepresentative(a, b domain.Option) bool {
	an, bn := numericID(a.SourceMarketID), numericID(b.SourceMarketID)
	if an != bn {
		return !an
	}
	if an && bn {
		return len(a.DisplayName) < len(b.DisplayName)
	}
	return false
}
