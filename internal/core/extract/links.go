package extract

import (
	"regexp"
	"strings"
)

var (
	externalLink = regexp.MustCompile(`https?://[^\s<>)\]"']+`)
	internalLink = regexp.MustCompile(`(?:^|\s)(#[A-Za-z][\w.-]*)`)
)

// DetectLinks collects hyperlinks from page text. http/https URIs are
// external; fragment-style anchors are internal references.
func DetectLinks(pageText string, pageNumber int) []Link {
	var links []Link
	seen := make(map[string]bool)

	for _, m := range externalLink.FindAllString(pageText, -1) {
		url := strings.TrimRight(m, ".,;:")
		if seen[url] {
			continue
		}
		seen[url] = true
		links = append(links, Link{PageNumber: pageNumber, URL: url, Internal: false})
	}
	for _, m := range internalLink.FindAllStringSubmatch(pageText, -1) {
		anchor := m[1]
		if seen[anchor] {
			continue
		}
		seen[anchor] = true
		links = append(links, Link{PageNumber: pageNumber, URL: anchor, Internal: true})
	}
	return links
}
