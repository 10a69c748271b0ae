package pageimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tripmate-app/tripmate/internal/models"
)

// pageData is what the extraction strategies read out of the parsed document.
type pageData struct {
	nextData string            // body of <script id="__NEXT_DATA__">
	jsonLD   []string          // bodies of <script type="application/ld+json">
	meta     map[string]string // property/name -> content
}

// ParseEventPage extracts an import candidate from a fetched page body.
// Strategies run in priority order: embedded page-data JSON, then JSON-LD,
// then meta tags. A candidate needs at least a title; times and location are
// filled when present.
func ParseEventPage(body []byte) (*models.ImportCandidate, error) {
	data, err := collectPageData(body)
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}

	if c := parseEmbeddedJSON(data.nextData); c != nil {
		return c, nil
	}
	for _, block := range data.jsonLD {
		if c := parseJSONLD(block); c != nil {
			return c, nil
		}
	}
	if c := parseMetaTags(data.meta); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("no event data found in page")
}

// collectPageData walks the document once and gathers everything the
// strategies need.
func collectPageData(body []byte) (*pageData, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	data := &pageData{meta: make(map[string]string)}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script":
				id := attr(n, "id")
				typ := attr(n, "type")
				text := nodeText(n)
				if id == "__NEXT_DATA__" {
					data.nextData = text
				} else if strings.EqualFold(typ, "application/ld+json") {
					data.jsonLD = append(data.jsonLD, text)
				}
			case "meta":
				key := attr(n, "property")
				if key == "" {
					key = attr(n, "name")
				}
				if key != "" {
					// first occurrence wins
					if _, ok := data.meta[key]; !ok {
						data.meta[key] = attr(n, "content")
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return data, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// embeddedPage mirrors the slice of the event platform's page-data JSON the
// importer cares about.
type embeddedPage struct {
	Props struct {
		PageProps struct {
			InitialData struct {
				Data struct {
					Event embeddedEvent `json:"event"`
				} `json:"data"`
			} `json:"initialData"`
		} `json:"pageProps"`
	} `json:"props"`
}

type embeddedEvent struct {
	Name           string `json:"name"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	GeoAddressInfo struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"geo_address_info"`
}

// parseEmbeddedJSON handles the platform's own embedded page data. Highest
// priority: it carries exact timestamps.
func parseEmbeddedJSON(raw string) *models.ImportCandidate {
	if raw == "" {
		return nil
	}
	var page embeddedPage
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return nil
	}
	ev := page.Props.PageProps.InitialData.Data.Event
	if ev.Name == "" {
		return nil
	}
	c := &models.ImportCandidate{Title: ev.Name}
	c.StartTime = parseISOTime(ev.StartAt)
	c.EndTime = parseISOTime(ev.EndAt)
	c.Location.Name = ev.GeoAddressInfo.Name
	c.Location.Address = ev.GeoAddressInfo.Address
	return c
}

// ldEvent mirrors a schema.org Event JSON-LD block. Location may be an
// object or a bare string, so it is decoded leniently.
type ldEvent struct {
	Type      interface{}     `json:"@type"`
	Name      string          `json:"name"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Location  json.RawMessage `json:"location"`
}

type ldLocation struct {
	Name    string          `json:"name"`
	Address json.RawMessage `json:"address"`
}

type ldAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
}

// parseJSONLD handles generic schema.org structured data. The block may hold
// a single object or an array.
func parseJSONLD(raw string) *models.ImportCandidate {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var events []ldEvent
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			return nil
		}
	} else {
		var ev ldEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil
		}
		events = append(events, ev)
	}
	for _, ev := range events {
		if !isLDEventType(ev.Type) || ev.Name == "" {
			continue
		}
		c := &models.ImportCandidate{Title: ev.Name}
		c.StartTime = parseISOTime(ev.StartDate)
		c.EndTime = parseISOTime(ev.EndDate)
		c.Location = parseLDLocation(ev.Location)
		return c
	}
	return nil
}

// isLDEventType accepts "Event" and its schema.org subtypes
// ("SocialEvent", "BusinessEvent", ...), as a string or a list.
func isLDEventType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return strings.Contains(v, "Event")
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.Contains(s, "Event") {
				return true
			}
		}
	}
	return false
}

func parseLDLocation(raw json.RawMessage) models.ImportLocation {
	var loc models.ImportLocation
	if len(raw) == 0 {
		return loc
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		loc.Name = name
		return loc
	}
	var obj ldLocation
	if err := json.Unmarshal(raw, &obj); err != nil {
		return loc
	}
	loc.Name = obj.Name
	if len(obj.Address) > 0 {
		var addrStr string
		if err := json.Unmarshal(obj.Address, &addrStr); err == nil {
			loc.Address = addrStr
		} else {
			var addr ldAddress
			if err := json.Unmarshal(obj.Address, &addr); err == nil {
				parts := []string{}
				for _, p := range []string{addr.StreetAddress, addr.AddressLocality, addr.AddressRegion} {
					if p != "" {
						parts = append(parts, p)
					}
				}
				loc.Address = strings.Join(parts, ", ")
			}
		}
	}
	return loc
}

// parseMetaTags is the last-resort heuristic: OpenGraph title plus the
// optional event time tags some platforms emit.
func parseMetaTags(meta map[string]string) *models.ImportCandidate {
	title := meta["og:title"]
	if title == "" {
		title = meta["twitter:title"]
	}
	if title == "" {
		return nil
	}
	c := &models.ImportCandidate{Title: title}
	c.StartTime = parseISOTime(meta["event:start_time"])
	c.EndTime = parseISOTime(meta["event:end_time"])
	c.Location.Name = meta["og:site_name"]
	return c
}

// isoLayouts covers the timestamp shapes seen across the extraction sources.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseISOTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
