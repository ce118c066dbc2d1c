package ingest

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/propertyhub/newsfeed/internal/metrics"
)

// imageTokenPattern matches bare URL tokens ending in a common image
// extension. It is deliberately permissive: publishers rely on it picking up
// article-adjacent thumbnails anywhere in the markup.
var imageTokenPattern = regexp.MustCompile(`(?i)https?://[^\s"'<>)]+\.(?:jpe?g|png|webp|gif)`)

// metaImageSelectors lists the live-page meta tags tried in order.
var metaImageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[property="og:image:secure_url"]`,
	`meta[name="twitter:image"]`,
	`meta[name="twitter:image:src"]`,
	`link[rel="image_src"]`,
}

// ImageResolution is the outcome of running the fallback chain for one item.
type ImageResolution struct {
	Image    string
	Enriched bool
}

type imageQuery struct {
	item    Item
	pageURL string
	prior   *Article
}

type imageSource struct {
	name    string
	resolve func(ctx context.Context, q imageQuery) (string, bool)
}

// ImageResolver picks one illustrative image URL per feed item by walking an
// ordered fallback chain: embedded markup, syndication metadata, the prior
// stored value, then live-page enrichment. The chain stops at the first
// source that yields a usable candidate.
type ImageResolver struct {
	enricher  *Enricher
	blocklist *substringBlocklist
	logger    *zap.Logger
}

// NewImageResolver builds an ImageResolver bound to a run-scoped Enricher.
func NewImageResolver(enricher *Enricher, logger *zap.Logger) *ImageResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageResolver{
		enricher:  enricher,
		blocklist: newSubstringBlocklist(imageURLBlocklist),
		logger:    logger,
	}
}

func (r *ImageResolver) sources() []imageSource {
	return []imageSource{
		{name: "embedded_markup", resolve: r.fromMarkup},
		{name: "syndication_media", resolve: r.fromSyndication},
		{name: "prior_record", resolve: r.fromPrior},
		{name: "live_page", resolve: r.fromLivePage},
	}
}

// Resolve returns the chosen image (possibly empty) and whether a live-page
// enrichment attempt was paid for while resolving this item.
func (r *ImageResolver) Resolve(ctx context.Context, item Item, pageURL string, prior *Article) ImageResolution {
	budgetBefore := r.enricher.Remaining()
	query := imageQuery{item: item, pageURL: pageURL, prior: prior}
	for _, source := range r.sources() {
		image, ok := source.resolve(ctx, query)
		if !ok {
			continue
		}
		r.logger.Debug("image resolved",
			zap.String("source", source.name),
			zap.String("image", image),
		)
		return ImageResolution{Image: image, Enriched: budgetBefore != r.enricher.Remaining()}
	}
	return ImageResolution{Enriched: budgetBefore != r.enricher.Remaining()}
}

// fromMarkup extracts the first usable inline image from the item's content,
// then its description. When a blob carries no <img> reference, the first
// bare image-extension URL token in the raw text is used verbatim.
func (r *ImageResolver) fromMarkup(_ context.Context, q imageQuery) (string, bool) {
	for _, blob := range []string{q.item.Content, q.item.Description} {
		if strings.TrimSpace(blob) == "" {
			continue
		}
		if src, ok := firstInlineImage(blob, q.pageURL); ok {
			return src, true
		}
		if token := imageTokenPattern.FindString(blob); token != "" {
			return token, true
		}
	}
	return "", false
}

// fromSyndication walks the feed's own media fields in order: enclosure,
// primary media reference, thumbnail, then the first grouped entry.
func (r *ImageResolver) fromSyndication(_ context.Context, q imageQuery) (string, bool) {
	candidates := []string{
		q.item.EnclosureURL,
		q.item.MediaContentURL,
		q.item.MediaThumbnailURL,
		q.item.MediaGroupURL,
	}
	for _, candidate := range candidates {
		if resolved, ok := absoluteImageURL(candidate, q.pageURL); ok {
			return resolved, true
		}
	}
	return "", false
}

// fromPrior reuses the image of a previously persisted record for the same
// ID, so a later run seeing a thinner feed payload never de-images an
// article.
func (r *ImageResolver) fromPrior(_ context.Context, q imageQuery) (string, bool) {
	if q.prior == nil || q.prior.Image == "" {
		return "", false
	}
	return q.prior.Image, true
}

// fromLivePage fetches the article page itself and pulls a meta-tag image.
// The fetch consumes one unit of budget whatever its outcome, and candidates
// from this tier alone are screened against the blocklist. A rejected
// candidate ends the chain with no image: the earlier tiers were already
// exhausted in order.
func (r *ImageResolver) fromLivePage(ctx context.Context, q imageQuery) (string, bool) {
	if q.pageURL == "" {
		return "", false
	}
	if !r.enricher.TryConsume() {
		return "", false
	}
	finalURL, body := r.enricher.FetchPage(ctx, q.pageURL)
	if len(body) == 0 {
		return "", false
	}
	candidate, ok := metaImage(body, finalURL)
	if !ok {
		return "", false
	}
	if r.blocklist.IsBlocked(candidate) {
		metrics.BlocklistRejections.Inc()
		r.logger.Debug("enrichment candidate rejected by blocklist",
			zap.String("page", finalURL),
			zap.String("image", candidate),
		)
		return "", false
	}
	return candidate, true
}

// firstInlineImage returns the first <img> src in blob that resolves to an
// absolute http(s) URL against base. Unresolvable or data: sources are
// skipped, not fatal.
func firstInlineImage(blob, base string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blob))
	if err != nil {
		return "", false
	}
	var found string
	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		resolved, ok := absoluteImageURL(src, base)
		if !ok {
			return true
		}
		found = resolved
		return false
	})
	return found, found != ""
}

// metaImage extracts the first matching meta-tag image from an HTML page,
// resolved against the page's final URL.
func metaImage(body []byte, base string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	for _, selector := range metaImageSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		attr := "content"
		if strings.HasPrefix(selector, "link") {
			attr = "href"
		}
		raw, _ := sel.Attr(attr)
		if resolved, ok := absoluteImageURL(raw, base); ok {
			return resolved, true
		}
	}
	return "", false
}

// absoluteImageURL yields a scheme-qualified http(s) URL for ref, resolving
// relative and protocol-relative references against base. data: URIs and
// malformed references yield no candidate.
func absoluteImageURL(ref, base string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(strings.ToLower(ref), "data:") {
		return "", false
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if refURL.IsAbs() {
		if refURL.Scheme != "http" && refURL.Scheme != "https" {
			return "", false
		}
		return refURL.String(), true
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Host == "" {
		return "", false
	}
	resolved := baseURL.ResolveReference(refURL)
	if (resolved.Scheme != "http" && resolved.Scheme != "https") || resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}
