package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tripmate-app/tripmate/internal/models"
)

// PageFetcher is the slice of the page-import client the batch engine uses.
type PageFetcher interface {
	FetchEventPage(ctx context.Context, url string) (*models.ImportCandidate, error)
}

// Per-URL rejection reasons reported in the batch summary.
const (
	ReasonUnparsable   = "could not extract event data"
	ReasonNoDate       = "no date found on page"
	ReasonOutsideTrip  = "outside trip dates"
	ReasonDuplicate    = "duplicate event"
	ReasonLimitReached = "limit reached"
)

// RunImportBatch fetches and validates each URL sequentially and appends the
// accepted candidates to the itinerary's matching days, mutating it in
// place. The caller persists the itinerary once after the batch.
//
// Fetches run sequentially on purpose: duplicate decisions are made against
// the itinerary snapshot taken at batch start plus earlier in-batch accepts,
// and the summary order mirrors the paste order. Once the event cap is
// reached the remaining URLs are marked skipped without being fetched.
func RunImportBatch(ctx context.Context, fetcher PageFetcher, it *models.Itinerary, urls []string, now time.Time) []models.ImportResult {
	// Dedup sets from the snapshot at batch start; accepts extend them.
	seenURLs := make(map[string]bool)
	seenTitleDay := make(map[string]bool)
	for _, day := range it.Days {
		for _, ev := range day.Events {
			if ev.SourceURL != "" {
				seenURLs[ev.SourceURL] = true
			}
			seenTitleDay[titleDayKey(ev.Title, day.Date)] = true
		}
	}

	count := it.EventCount()
	results := make([]models.ImportResult, 0, len(urls))

	for _, url := range urls {
		if count >= models.MaxEventsPerItinerary {
			results = append(results, models.ImportResult{URL: url, Status: models.ImportSkipped, Reason: ReasonLimitReached})
			continue
		}

		candidate, err := fetcher.FetchEventPage(ctx, url)
		if err != nil || candidate == nil {
			slog.Debug("RunImportBatch: fetch rejected", "url", url, "error", err)
			results = append(results, models.ImportResult{URL: url, Status: models.ImportRejected, Reason: ReasonUnparsable})
			continue
		}
		if candidate.StartTime == nil {
			results = append(results, models.ImportResult{URL: url, Status: models.ImportRejected, Title: candidate.Title, Reason: ReasonNoDate})
			continue
		}

		date := candidate.StartTime.Format(models.DateLayout)
		if !it.ContainsDate(date) {
			results = append(results, models.ImportResult{URL: url, Status: models.ImportRejected, Title: candidate.Title, Reason: ReasonOutsideTrip})
			continue
		}
		if seenURLs[url] || seenTitleDay[titleDayKey(candidate.Title, date)] {
			results = append(results, models.ImportResult{URL: url, Status: models.ImportRejected, Title: candidate.Title, Reason: ReasonDuplicate})
			continue
		}

		day := it.DayByDate(date)
		if day == nil {
			// Days cover the whole trip range; a miss means the payload is
			// inconsistent with its own dates.
			slog.Warn("RunImportBatch: no day for in-range date", "itineraryID", it.ID, "date", date)
			results = append(results, models.ImportResult{URL: url, Status: models.ImportRejected, Title: candidate.Title, Reason: ReasonOutsideTrip})
			continue
		}

		day.Events = append(day.Events, eventFromCandidate(candidate, now))
		sortDayEvents(day)
		seenURLs[url] = true
		seenTitleDay[titleDayKey(candidate.Title, date)] = true
		count++
		results = append(results, models.ImportResult{URL: url, Status: models.ImportAdded, Title: candidate.Title})
		slog.Debug("RunImportBatch: candidate accepted", "url", url, "title", candidate.Title, "date", date)
	}

	return results
}

func eventFromCandidate(c *models.ImportCandidate, now time.Time) models.Event {
	ev := models.Event{
		ID:         uuid.NewString(),
		Title:      c.Title,
		StartTime:  c.StartTime.Format(models.TimeLayout),
		SourceURL:  c.SourceURL,
		ImportedAt: now.Format(time.RFC3339),
	}
	if c.EndTime != nil {
		ev.EndTime = c.EndTime.Format(models.TimeLayout)
	}
	ev.Location = c.Location.Name
	if c.Location.Address != "" {
		if ev.Location != "" {
			ev.Location += ", " + c.Location.Address
		} else {
			ev.Location = c.Location.Address
		}
	}
	if len(ev.Location) > models.MaxLocationLength {
		ev.Location = truncateAtRune(ev.Location, models.MaxLocationLength)
	}
	return ev
}

// truncateAtRune cuts s to at most max bytes without splitting a rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// sortDayEvents orders a day's events by start time ascending. The sort is
// stable so equal times keep insertion order.
func sortDayEvents(day *models.Day) {
	sort.SliceStable(day.Events, func(i, j int) bool {
		return day.Events[i].StartTime < day.Events[j].StartTime
	})
}

func titleDayKey(title, date string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + date
}

// FormatImportSummary renders the structured per-URL batch report.
func FormatImportSummary(results []models.ImportResult) string {
	var added, rejected, skipped int
	for _, r := range results {
		switch r.Status {
		case models.ImportAdded:
			added++
		case models.ImportRejected:
			rejected++
		case models.ImportSkipped:
			skipped++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Import results: %d added, %d rejected, %d skipped\n", added, rejected, skipped)
	for _, r := range results {
		switch r.Status {
		case models.ImportAdded:
			fmt.Fprintf(&sb, "✅ %s\n", r.Title)
		case models.ImportRejected:
			label := r.Title
			if label == "" {
				label = r.URL
			}
			fmt.Fprintf(&sb, "❌ %s - %s\n", label, r.Reason)
		case models.ImportSkipped:
			fmt.Fprintf(&sb, "⏭️ %s - %s\n", r.URL, r.Reason)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
