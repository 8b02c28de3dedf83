// Package extract turns job-search markup into crawler fields using goquery.
// Everything here is a pure function of its input.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/textutil"
)

const (
	notAvailable = "N/A"

	cardSelector      = "div.base-search-card"
	linkSelector      = "a.base-card__full-link"
	titleSelector     = "span.sr-only"
	companySelector   = "h4.base-search-card__subtitle"
	metadataSelector  = "div.base-search-card__metadata"
	locationSelector  = "span.job-search-card__location"
	listDateSelector  = "time.job-search-card__listdate, time.job-search-card__listdate--new"
	salarySelector    = "span.job-search-card__salary-info"
	usdSymbol         = "$"
	usdCurrency       = "USD"
	salarySeparator   = "-"
	identifierDivider = "-"
)

// Card wraps one listing fragment.
type Card struct {
	sel *goquery.Selection
}

// NewCard wraps a selection as a Card.
func NewCard(sel *goquery.Selection) Card {
	return Card{sel: sel}
}

// DetailLink implements crawler.Card.
func (c Card) DetailLink() (string, bool) {
	if c.sel == nil {
		return "", false
	}
	return c.sel.Find(linkSelector).First().Attr("href")
}

// Extractor implements crawler.Extractor and crawler.DetailParser.
type Extractor struct {
	descriptionFormat DescriptionFormat
}

// New builds an Extractor. An empty format means markdown.
func New(format DescriptionFormat) (*Extractor, error) {
	if format == "" {
		format = FormatMarkdown
	}
	if !format.valid() {
		return nil, fmt.Errorf("unknown description format %q", format)
	}
	return &Extractor{descriptionFormat: format}, nil
}

// ParseListing returns the cards of a listing page in document order.
func (e *Extractor) ParseListing(body []byte) ([]crawler.Card, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	var cards []crawler.Card
	doc.Find(cardSelector).Each(func(_ int, s *goquery.Selection) {
		cards = append(cards, NewCard(s))
	})
	return cards, nil
}

// JobID derives the job identifier from the card's detail link.
func (e *Extractor) JobID(card crawler.Card) (string, bool) {
	href, ok := card.DetailLink()
	if !ok {
		return "", false
	}
	return JobIDFromHref(href), true
}

// JobIDFromHref strips the query string and keeps the last "-" delimited
// segment: ".../jobs/view/Title-at-Acme-987654321?trk=x" gives "987654321".
func JobIDFromHref(href string) string {
	path, _, _ := strings.Cut(href, "?")
	parts := strings.Split(path, identifierDivider)
	return parts[len(parts)-1]
}

// Extract pulls the raw fields out of one card. It reports false when the
// card has no detail link.
func (e *Extractor) Extract(card crawler.Card) (crawler.RawJobFields, bool) {
	c, ok := card.(Card)
	if !ok || c.sel == nil {
		return crawler.RawJobFields{}, false
	}
	href, ok := c.DetailLink()
	if !ok {
		return crawler.RawJobFields{}, false
	}

	fields := crawler.RawJobFields{
		JobID:        JobIDFromHref(href),
		Title:        textOr(c.sel.Find(titleSelector).First(), notAvailable),
		CompanyName:  notAvailable,
		Location:     notAvailable,
		Compensation: parseCompensation(c.sel.Find(salarySelector).First()),
	}

	if companyLink := c.sel.Find(companySelector).First().Find("a").First(); companyLink.Length() > 0 {
		fields.CompanyName = strings.TrimSpace(companyLink.Text())
		if companyHref, ok := companyLink.Attr("href"); ok {
			fields.CompanyURL, _, _ = strings.Cut(companyHref, "?")
		}
	}

	if metadata := c.sel.Find(metadataSelector).First(); metadata.Length() > 0 {
		fields.Location = textOr(metadata.Find(locationSelector).First(), notAvailable)
		if raw, ok := metadata.Find(listDateSelector).First().Attr("datetime"); ok {
			fields.DatePosted = crawler.ParseDate(strings.TrimSpace(raw))
		}
	}
	return fields, true
}

// parseCompensation reads a "low - high" salary span. Fewer than two segments
// or an unparseable amount yields nil.
func parseCompensation(sel *goquery.Selection) *crawler.Compensation {
	if sel.Length() == 0 {
		return nil
	}
	text := strings.TrimSpace(joinedText(sel, " "))
	if text == "" {
		return nil
	}
	parts := strings.Split(text, salarySeparator)
	if len(parts) < 2 {
		return nil
	}
	low, err := textutil.ParseCurrency(parts[0])
	if err != nil {
		return nil
	}
	high, err := textutil.ParseCurrency(parts[1])
	if err != nil {
		return nil
	}
	symbol, _ := utf8.DecodeRuneInString(text)
	code := string(symbol)
	if code == usdSymbol {
		code = usdCurrency
	}
	return &crawler.Compensation{
		MinAmount: int64(low),
		MaxAmount: int64(high),
		Currency:  code,
		Interval:  textutil.DetectInterval(text),
	}
}

func textOr(sel *goquery.Selection, fallback string) string {
	if sel.Length() == 0 {
		return fallback
	}
	return strings.TrimSpace(sel.Text())
}

// joinedText concatenates the trimmed text nodes under sel, in document
// order, with sep.
func joinedText(sel *goquery.Selection, sep string) string {
	var parts []string
	collectText(sel, &parts)
	return strings.Join(parts, sep)
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			if t := strings.TrimSpace(s.Text()); t != "" {
				*parts = append(*parts, t)
			}
		case "#comment", "script", "style":
		default:
			collectText(s, parts)
		}
	})
}
