package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// RawMarket is one upstream record exactly as the Gamma API returns it. It is
// a closed tagged union consumed only by the canonicalizer: depending on the
// shape flags and the Events array it is either a standalone binary market or
// an event container with child outcome entries. Nothing downstream of the
// canonicalizer sees this type.
type RawMarket struct {
	ID          string    `json:"id"`
	ConditionID string    `json:"conditionId"`
	Question    string    `json:"question"`
	Description string    `json:"description"`
	Active      *flexBool `json:"active"`
	Closed      bool      `json:"closed"`
	Archived    bool      `json:"archived"`
	Image       string    `json:"image"`
	Icon        string    `json:"icon"`
	EndDate     string    `json:"endDate"`

	// Outcomes is JSON-encoded inside the JSON, e.g. "[\"Yes\",\"No\"]".
	Outcomes string `json:"outcomes"`

	// MultipleChoice is the explicit shape flag newer API versions send.
	// When present it is authoritative: true means event shape, false means
	// binary, regardless of what the outcome set looks like.
	MultipleChoice *bool `json:"multipleChoice"`

	// IsEvent marks event shape on API versions that predate MultipleChoice.
	IsEvent *bool `json:"isEvent"`

	// Events holds the event containers this market belongs to. For event
	// shape records the first active container carries the banner, the icon,
	// and the child outcome entries.
	Events []RawEvent `json:"events"`

	// OptionMarkets is the parallel list of per-option child markets, a
	// secondary source of option icons keyed by the same logical entities
	// as the container outcomes.
	OptionMarkets []RawOptionMarket `json:"optionMarkets"`
}

// RawEvent is an upstream event container grouping related outcome markets.
type RawEvent struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Image    string       `json:"image"`
	Icon     string       `json:"icon"`
	Active   flexBool     `json:"active"`
	Closed   bool         `json:"closed"`
	Outcomes []RawOutcome `json:"outcomes"`
}

// RawOutcome is one child outcome entry of an event container.
type RawOutcome struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Title  string    `json:"title"`
	Icon   string    `json:"icon"`
	Image  string    `json:"image"`
	Active *flexBool `json:"active"`
	Closed bool      `json:"closed"`
}

// DisplayName returns the outcome's display text, whichever field carries it.
func (o RawOutcome) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Title
}

// Live reports whether the outcome should survive active/closed filtering.
// A missing active flag counts as active.
func (o RawOutcome) Live() bool {
	if o.Closed {
		return false
	}
	return o.Active == nil || bool(*o.Active)
}

// RawOptionMarket is one entry of the parallel option-market list.
type RawOptionMarket struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Image    string `json:"image"`
	Icon     string `json:"icon"`
}

// IsActive reports whether the market-level active flag is set (or absent,
// which counts as active).
func (m RawMarket) IsActive() bool {
	return m.Active == nil || bool(*m.Active)
}

// UpstreamID returns the stable identifier used for the idempotency ledger:
// the condition id when present, the plain id otherwise.
func (m RawMarket) UpstreamID() string {
	if m.ConditionID != "" {
		return m.ConditionID
	}
	return m.ID
}

// OutcomeNames decodes the JSON-encoded outcomes field. A missing or
// malformed field yields nil.
func (m RawMarket) OutcomeNames() []string {
	if m.Outcomes == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(m.Outcomes), &names); err != nil {
		return nil
	}
	return names
}

// Expiry parses the endDate field, which the API has sent both as epoch
// milliseconds and as RFC 3339 across versions. Returns nil when absent or
// unparseable.
func (m RawMarket) Expiry() *time.Time {
	if m.EndDate == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(m.EndDate, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
