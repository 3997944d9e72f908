package canonical

import (
	"net/url"
	"strings"

	"github.com/apemarkets/curator/internal/domain"
	"github.com/apemarkets/curator/internal/platform/polymarket"
)

// placeholderTokens are literal junk values upstream templating sometimes
// leaves inside image URLs. A URL containing any of them is treated as absent.
var placeholderTokens = []string{"undefined", "null"}

// URLValidator accepts or rejects image URLs against the downstream
// notification surface's constraints. The host allow-list comes from
// configuration; an empty list allows any host.
type URLValidator struct {
	allowedHosts map[string]bool
}

// NewURLValidator builds a validator from the configured allow-list of hosts.
func NewURLValidator(allowedHosts []string) *URLValidator {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = true
		}
	}
	return &URLValidator{allowedHosts: allowed}
}

// Valid reports whether raw is a well-formed absolute HTTP(S) URL, free of
// placeholder tokens, on an allowed host. A failing URL is never an error;
// the caller treats it as absent.
func (v *URLValidator) Valid(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}

	lower := strings.ToLower(raw)
	for _, tok := range placeholderTokens {
		if strings.Contains(lower, tok) {
			return false
		}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}

	if len(v.allowedHosts) > 0 && !v.allowedHosts[strings.ToLower(u.Hostname())] {
		return false
	}
	return true
}

// clean returns a pointer to raw when it passes validation, nil otherwise.
func (v *URLValidator) clean(raw string) *string {
	if !v.Valid(raw) {
		return nil
	}
	return &raw
}

// resolveBinaryBanner selects the banner for a binary market: the market-level
// image field, and nothing else. The market-level icon field is never used.
func resolveBinaryBanner(raw polymarket.RawMarket, v *URLValidator) *string {
	return v.clean(raw.Image)
}

// resolveEventImages selects the banner and event icon for an event market
// from the first live event container. The parent record's own image field is
// deliberately never consulted here: upstream frequently populates it with a
// stale or unrelated image, and the container's image is the one that matches
// the grouped market.
func resolveEventImages(container polymarket.RawEvent, v *URLValidator) (banner, icon *string) {
	return v.clean(container.Image), v.clean(container.Icon)
}

// optionIcon selects the icon for one event option: the outcome's own icon
// field first, then the image field of the option's source entry in the
// parallel option-market list (matched by entity key), then absent.
func optionIcon(outcome polymarket.RawOutcome, sourceImages map[string]string, v *URLValidator) *string {
	if p := v.clean(outcome.Icon); p != nil {
		return p
	}
	if p := v.clean(outcome.Image); p != nil {
		return p
	}
	if img, ok := sourceImages[entityKey(outcome.DisplayName())]; ok {
		if p := v.clean(img); p != nil {
			return p
		}
	}
	return nil
}

// optionMarketImages builds the entity-key lookup table from the parallel
// option-market list. Each entry's question is reduced to its entity key, so
// "Will Real Madrid win La Liga?" lands under the same key as the container
// outcome named "Real Madrid".
func optionMarketImages(optionMarkets []polymarket.RawOptionMarket, v *URLValidator) map[string]string {
	if len(optionMarkets) == 0 {
		return nil
	}
	images := make(map[string]string, len(optionMarkets))
	for _, om := range optionMarkets {
		img := om.Icon
		if !v.Valid(img) {
			img = om.Image
		}
		if !v.Valid(img) {
			continue
		}
		key := entityKey(om.Question)
		if _, ok := images[key]; !ok {
			images[key] = img
		}
	}
	return images
}

// ResolveBanner recomputes the banner for an already-canonicalized market.
// It is idempotent: a market whose banner was already resolved is returned
// unchanged, so repeated passes over the same record are safe.
func (c *Canonicalizer) ResolveBanner(m domain.Market, raw polymarket.RawMarket) domain.Market {
	if m.BannerResolved {
		return m
	}
	switch m.Kind {
	case domain.KindBinary:
		m.BannerURL = resolveBinaryBanner(raw, c.urls)
	case domain.KindEvent:
		if container, ok := firstLiveContainer(raw.Events); ok {
			m.BannerURL, m.EventIconURL = resolveEventImages(container, c.urls)
		}
	}
	m.BannerResolved = true
	return m
}
