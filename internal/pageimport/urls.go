// Package pageimport fetches third-party event pages and extracts normalized
// event records for the bulk-import flow.
//
// Extraction runs a priority chain over the page body: the embedded
// page-data JSON first, then any schema.org JSON-LD event block, then
// OpenGraph meta tags as last resort. A page that yields nothing through the
// whole chain is reported as unparsable, never as a batch failure.
package pageimport

import (
	"regexp"
	"strings"
)

// eventLinkPattern matches links to the two supported event platforms,
// with or without a scheme. Case-insensitive.
var eventLinkPattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(lu\.ma|luma\.com)(/[^\s<>"']+)`)

// trailingPunctuation is stripped from matched URLs; links pasted into chat
// often end a sentence.
const trailingPunctuation = ".,;!?)"

// ExtractEventURLs returns every event-platform link found in the text,
// normalized to a https:// form, deduplicated in first-seen order.
func ExtractEventURLs(text string) []string {
	matches := eventLinkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		host := strings.ToLower(m[1])
		path := strings.TrimRight(m[2], trailingPunctuation)
		if path == "" || path == "/" {
			continue
		}
		url := "https://" + host + path
		if seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}
