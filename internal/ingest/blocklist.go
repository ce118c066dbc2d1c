package ingest

import "strings"

// imageURLBlocklist holds substrings of placeholder, logo, avatar, favicon
// and "coming soon" assets plus known non-article image hosts. Candidates
// from live-page enrichment matching any entry are rejected; syndication
// payloads are trusted and never filtered.
var imageURLBlocklist = []string{
	"placeholder",
	"placehold",
	"default-image",
	"default_image",
	"logo",
	"favicon",
	"avatar",
	"gravatar.com",
	"spacer",
	"blank.",
	"1x1.",
	"pixel.",
	"coming-soon",
	"comingsoon",
	"coming_soon",
	"gstatic.com",
	"doubleclick.net",
}

// substringBlocklist rejects URLs that contain any configured fragment,
// compared case-insensitively.
type substringBlocklist struct {
	fragments []string
}

func newSubstringBlocklist(fragments []string) *substringBlocklist {
	matcher := &substringBlocklist{}
	for _, raw := range fragments {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		matcher.fragments = append(matcher.fragments, value)
	}
	return matcher
}

func (b *substringBlocklist) IsBlocked(rawURL string) bool {
	if b == nil || rawURL == "" {
		return false
	}
	lowered := strings.ToLower(rawURL)
	for _, fragment := range b.fragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}
