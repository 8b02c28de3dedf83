package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/textutil"
)

// DescriptionFormat selects how the description markup is rendered.
type DescriptionFormat string

// Supported description formats.
const (
	FormatMarkdown DescriptionFormat = "markdown"
	FormatHTML     DescriptionFormat = "html"
	FormatPlain    DescriptionFormat = "plain"
)

const (
	descriptionSelector = `div[class*="show-more-less-html__markup"]`
	logoSelector        = "img.job-search-company__logo"
	readMoreMarker      = "Read more"
)

func (f DescriptionFormat) valid() bool {
	switch f {
	case FormatMarkdown, FormatHTML, FormatPlain:
		return true
	}
	return false
}

// ParseDetail implements crawler.DetailParser. A page without a description
// block yields a nil description, not an error.
func (e *Extractor) ParseDetail(body []byte) (crawler.DetailFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return crawler.DetailFields{}, fmt.Errorf("parse detail html: %w", err)
	}

	var fields crawler.DetailFields
	if block := doc.Find(descriptionSelector).First(); block.Length() > 0 {
		desc, err := e.renderDescription(block)
		if err != nil {
			return crawler.DetailFields{}, err
		}
		fields.Description = &desc
		fields.Emails = textutil.ExtractEmails(joinedText(block, " "))
	}

	logo := ""
	if img := doc.Find(logoSelector).First(); img.Length() > 0 {
		logo = img.AttrOr("src", "")
		if logo == "" {
			logo = img.AttrOr("data-delayed-url", "")
		}
	}
	fields.LogoPhotoURL = &logo
	return fields, nil
}

func (e *Extractor) renderDescription(block *goquery.Selection) (string, error) {
	switch e.descriptionFormat {
	case FormatPlain:
		return textutil.StripMarker(joinedText(block, " "), readMoreMarker), nil
	case FormatHTML:
		html, err := block.Html()
		if err != nil {
			return "", fmt.Errorf("render description html: %w", err)
		}
		return textutil.StripMarker(strings.TrimSpace(html), readMoreMarker), nil
	default:
		html, err := block.Html()
		if err != nil {
			return "", fmt.Errorf("render description html: %w", err)
		}
		out, err := textutil.ToMarkdown(html)
		if err != nil {
			return "", err
		}
		return textutil.StripMarker(out, readMoreMarker), nil
	}
}
