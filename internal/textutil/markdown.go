package textutil

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// ToMarkdown converts an HTML fragment to markdown.
func ToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(out, "\n\n")), nil
}

// StripMarker removes every occurrence of marker and trims the result.
func StripMarker(text, marker string) string {
	if marker == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, marker, ""))
}
