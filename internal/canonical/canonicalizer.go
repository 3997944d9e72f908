// Package canonical converts raw upstream records into canonical markets:
// shape detection, active/closed filtering, image resolution, and entity
// deduplication. Everything here is a pure function of its input and safe to
// re-execute on the same record.
package canonical

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apemarkets/curator/internal/domain"
	"github.com/apemarkets/curator/internal/platform/polymarket"
)

// DiscardError explains why a raw record was dropped instead of canonicalized.
// Discards are deterministic: the same record is dropped again for the same
// reason on every fetch cycle, and is never retried or ledgered.
type DiscardError struct {
	Reason string
}

func (e *DiscardError) Error() string { return "discard: " + e.Reason }

func (e *DiscardError) Unwrap() error { return domain.ErrDiscarded }

func discardf(format string, args ...any) error {
	return &DiscardError{Reason: fmt.Sprintf(format, args...)}
}

// Canonicalizer turns RawMarket records into domain.Market records.
type Canonicalizer struct {
	urls   *URLValidator
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Canonicalizer whose image URLs are validated against the
// given host allow-list.
func New(allowedImageHosts []string, logger *slog.Logger) *Canonicalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Canonicalizer{
		urls:   NewURLValidator(allowedImageHosts),
		now:    time.Now,
		logger: logger.With(slog.String("component", "canonicalizer")),
	}
}

// Canonicalize converts one raw record into a canonical market, or returns a
// *DiscardError when the record is inactive, expired, or malformed.
func (c *Canonicalizer) Canonicalize(raw polymarket.RawMarket) (domain.Market, error) {
	kind, err := detectKind(raw)
	if err != nil {
		return domain.Market{}, err
	}

	if raw.Closed || raw.Archived || !raw.IsActive() {
		return domain.Market{}, discardf("market %s not active (closed=%v archived=%v)", raw.UpstreamID(), raw.Closed, raw.Archived)
	}
	expiry := raw.Expiry()
	if expiry != nil && expiry.Before(c.now()) {
		return domain.Market{}, discardf("market %s expired at %s", raw.UpstreamID(), expiry.Format(time.RFC3339))
	}

	var m domain.Market
	switch kind {
	case domain.KindBinary:
		m, err = c.canonicalizeBinary(raw)
	case domain.KindEvent:
		m, err = c.canonicalizeEvent(raw)
	}
	if err != nil {
		return domain.Market{}, err
	}

	m.Expiry = expiry
	m.State = domain.StatePending
	return m, nil
}

// detectKind classifies the raw record's shape. First match wins:
//  1. the explicit MultipleChoice flag, when present, is authoritative;
//  2. an outcome set of exactly {Yes, No} means binary;
//  3. an event flag or a non-empty event-children sequence means event;
//  4. anything else is malformed and discarded.
func detectKind(raw polymarket.RawMarket) (domain.MarketKind, error) {
	if raw.MultipleChoice != nil {
		if *raw.MultipleChoice {
			return domain.KindEvent, nil
		}
		return domain.KindBinary, nil
	}

	if isYesNo(raw.OutcomeNames()) {
		return domain.KindBinary, nil
	}

	if (raw.IsEvent != nil && *raw.IsEvent) || len(raw.Events) > 0 {
		return domain.KindEvent, nil
	}

	return "", discardf("market %s has no recognizable shape", raw.UpstreamID())
}

// isYesNo reports whether names is exactly the two-element set {Yes, No},
// case-insensitive and order-independent.
func isYesNo(names []string) bool {
	if len(names) != 2 {
		return false
	}
	a, b := strings.ToLower(strings.TrimSpace(names[0])), strings.ToLower(strings.TrimSpace(names[1]))
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

// canonicalizeBinary builds the canonical form of a standalone Yes/No market.
// The two options never carry icons and are never deduplicated.
func (c *Canonicalizer) canonicalizeBinary(raw polymarket.RawMarket) (domain.Market, error) {
	if raw.Question == "" {
		return domain.Market{}, discardf("binary market %s has no question", raw.UpstreamID())
	}

	names := raw.OutcomeNames()
	if !isYesNo(names) {
		// Shape flag said binary but the outcome set disagrees.
		return domain.Market{}, discardf("binary market %s outcomes are not Yes/No", raw.UpstreamID())
	}

	options := make([]domain.Option, 0, 2)
	for _, name := range names {
		options = append(options, domain.Option{
			DisplayName:    name,
			SourceMarketID: raw.UpstreamID(),
		})
	}

	return domain.Market{
		ID:             raw.UpstreamID(),
		Kind:           domain.KindBinary,
		Question:       raw.Question,
		BannerURL:      resolveBinaryBanner(raw, c.urls),
		Options:        options,
		BannerResolved: true,
	}, nil
}

// canonicalizeEvent builds the canonical form of an event market from the
// first live event container and its surviving child outcomes.
func (c *Canonicalizer) canonicalizeEvent(raw polymarket.RawMarket) (domain.Market, error) {
	container, ok := firstLiveContainer(raw.Events)
	if !ok {
		return domain.Market{}, discardf("event market %s has no active container", raw.UpstreamID())
	}

	question := container.Title
	if question == "" {
		question = raw.Question
	}
	if question == "" {
		return domain.Market{}, discardf("event market %s has no title", raw.UpstreamID())
	}

	sourceImages := optionMarketImages(raw.OptionMarkets, c.urls)

	var options []domain.Option
	for _, outcome := range container.Outcomes {
		if !outcome.Live() {
			c.logger.Debug("dropping inactive option",
				slog.String("market", raw.UpstreamID()),
				slog.String("option", outcome.DisplayName()),
			)
			continue
		}
		name := outcome.DisplayName()
		if name == "" {
			continue
		}
		options = append(options, domain.Option{
			DisplayName:    name,
			IconURL:        optionIcon(outcome, sourceImages, c.urls),
			SourceMarketID: outcome.ID,
		})
	}

	options = Deduplicate(options)
	if len(options) < 2 {
		return domain.Market{}, discardf("event market %s has %d live options, need at least 2", raw.UpstreamID(), len(options))
	}

	banner, icon := resolveEventImages(container, c.urls)

	return domain.Market{
		ID:             raw.UpstreamID(),
		Kind:           domain.KindEvent,
		Question:       question,
		BannerURL:      banner,
		EventIconURL:   icon,
		Options:        options,
		BannerResolved: true,
	}, nil
}

// firstLiveContainer returns the first event container that is active and not
// closed. Inactive containers are skipped entirely; a record whose containers
// are all dead is discarded by the caller.
func firstLiveContainer(events []polymarket.RawEvent) (polymarket.RawEvent, bool) {
	for _, ev := range events {
		if bool(ev.Active) && !ev.Closed {
			return ev, true
		}
	}
	return polymarket.RawEvent{}, false
}
