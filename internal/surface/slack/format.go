package slack

import (
	"fmt"
	"strings"

	"github.com/apemarkets/curator/internal/domain"
)

// formatMessage renders the review text for a market. Stage one asks for a
// listing decision, stage two asks reviewers to sign off on the banner image.
func formatMessage(m domain.Market, stage domain.Stage) string {
	var b strings.Builder

	switch stage {
	case domain.StageImage:
		b.WriteString(":frame_with_picture: *Image review*\n")
	default:
		b.WriteString(":mag: *Market review*\n")
	}

	fmt.Fprintf(&b, "*%s*\n", m.Question)

	if m.Category != nil {
		fmt.Fprintf(&b, "Category: `%s`\n", *m.Category)
	}
	fmt.Fprintf(&b, "Kind: %s\n", m.Kind)
	if m.Expiry != nil {
		fmt.Fprintf(&b, "Expires: %s\n", m.Expiry.UTC().Format("2006-01-02 15:04 MST"))
	}

	if m.Kind == domain.KindEvent && len(m.Options) > 0 {
		b.WriteString("Options:\n")
		for _, opt := range m.Options {
			fmt.Fprintf(&b, "  • %s\n", opt.DisplayName)
		}
	}

	if stage == domain.StageImage && m.BannerURL != nil {
		fmt.Fprintf(&b, "Banner: %s\n", *m.BannerURL)
	}

	b.WriteString("\nReact :white_check_mark: to approve or :x: to reject.")
	return b.String()
}
