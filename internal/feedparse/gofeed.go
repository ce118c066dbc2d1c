// Package feedparse adapts gofeed to the pipeline's FeedParser interface.
package feedparse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/propertyhub/newsfeed/internal/ingest"
)

// Parser fetches and parses RSS/Atom feeds using gofeed.
type Parser struct {
	parser *gofeed.Parser
}

// New builds a Parser with the given outbound identity and fetch timeout.
func New(userAgent string, timeout time.Duration) *Parser {
	fp := gofeed.NewParser()
	if userAgent != "" {
		fp.UserAgent = userAgent
	}
	fp.Client = &http.Client{Timeout: timeout}
	return &Parser{parser: fp}
}

// ParseFeed fetches url and converts every entry into an ingest.Item. A
// fetch or parse failure surfaces as a single error with no partial results.
func (p *Parser) ParseFeed(ctx context.Context, url string) ([]ingest.Item, error) {
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	items := make([]ingest.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		items = append(items, convertItem(entry))
	}
	return items, nil
}

func convertItem(entry *gofeed.Item) ingest.Item {
	item := ingest.Item{
		Title:             entry.Title,
		Link:              entry.Link,
		GUID:              entry.GUID,
		Description:       entry.Description,
		Content:           entry.Content,
		Published:         publishedTime(entry),
		EnclosureURL:      enclosureURL(entry),
		MediaContentURL:   mediaExtensionURL(entry, "content"),
		MediaThumbnailURL: mediaExtensionURL(entry, "thumbnail"),
		MediaGroupURL:     mediaGroupURL(entry),
	}
	if entry.Author != nil {
		item.Author = entry.Author.Name
	}
	return item
}

func publishedTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}

func enclosureURL(entry *gofeed.Item) string {
	for _, enc := range entry.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// mediaExtensionURL pulls the url attribute of the first media:<name>
// element, e.g. media:content or media:thumbnail.
func mediaExtensionURL(entry *gofeed.Item, name string) string {
	media, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}
	for _, elem := range media[name] {
		if u := elem.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

// mediaGroupURL pulls the first media:content url nested under the first
// media:group element.
func mediaGroupURL(entry *gofeed.Item) string {
	media, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}
	for _, group := range media["group"] {
		for _, child := range group.Children["content"] {
			if u := child.Attrs["url"]; u != "" {
				return u
			}
		}
	}
	return ""
}
