package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tripmate-app/tripmate/internal/models"
)

// fakeFetcher serves canned candidates and counts fetches.
type fakeFetcher struct {
	pages   map[string]*models.ImportCandidate
	fetches int
}

func (f *fakeFetcher) FetchEventPage(ctx context.Context, url string) (*models.ImportCandidate, error) {
	f.fetches++
	c, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", url)
	}
	return c, nil
}

func testItinerary() *models.Itinerary {
	return &models.Itinerary{
		ID:        "i1",
		UserID:    "u1",
		Title:     "Berlin",
		StartDate: "2025-03-15",
		EndDate:   "2025-03-20",
		Days:      BuildDays("2025-03-15", "2025-03-20"),
	}
}

func candidate(title, start string) *models.ImportCandidate {
	ts, err := time.Parse("2006-01-02T15:04", start)
	if err != nil {
		panic(err)
	}
	return &models.ImportCandidate{Title: title, StartTime: &ts}
}

func TestRunImportBatchMixedOutcomes(t *testing.T) {
	it := testItinerary()
	fetcher := &fakeFetcher{pages: map[string]*models.ImportCandidate{
		"https://lu.ma/kickoff": candidate("Kickoff", "2025-03-15T09:00"),
		"https://lu.ma/dinner":  candidate("Dinner", "2025-03-16T19:00"),
		"https://lu.ma/late":    candidate("Afterparty", "2025-03-21T22:00"),
		"https://lu.ma/nodate":  {Title: "Mystery"},
	}}
	urls := []string{
		"https://lu.ma/kickoff",
		"https://lu.ma/dinner",
		"https://lu.ma/late",
		"https://lu.ma/nodate",
		"https://lu.ma/broken",
	}

	results := RunImportBatch(context.Background(), fetcher, it, urls, time.Now())
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	wantStatus := []models.ImportStatus{
		models.ImportAdded, models.ImportAdded,
		models.ImportRejected, models.ImportRejected, models.ImportRejected,
	}
	for i, want := range wantStatus {
		if results[i].Status != want {
			t.Errorf("result %d: got %s, want %s (%+v)", i, results[i].Status, want, results[i])
		}
	}
	if results[2].Reason != ReasonOutsideTrip {
		t.Errorf("out-of-range candidate: got reason %q", results[2].Reason)
	}
	if results[3].Reason != ReasonNoDate {
		t.Errorf("dateless candidate: got reason %q", results[3].Reason)
	}
	if results[4].Reason != ReasonUnparsable {
		t.Errorf("failed fetch: got reason %q", results[4].Reason)
	}
	if it.EventCount() != 2 {
		t.Errorf("expected 2 events on itinerary, got %d", it.EventCount())
	}
}

func TestRunImportBatchDuplicates(t *testing.T) {
	it := testItinerary()
	day := it.DayByDate("2025-03-15")
	day.Events = append(day.Events, models.Event{ID: "e1", Title: "Kickoff", StartTime: "09:00"})

	fetcher := &fakeFetcher{pages: map[string]*models.ImportCandidate{
		// Same title on the same calendar day as the existing event.
		"https://lu.ma/kickoff-mirror": candidate("  kickoff ", "2025-03-15T10:00"),
		// Same title on a different day is fine.
		"https://lu.ma/kickoff-two": candidate("Kickoff", "2025-03-16T10:00"),
	}}

	results := RunImportBatch(context.Background(), fetcher, it,
		[]string{"https://lu.ma/kickoff-mirror", "https://lu.ma/kickoff-two"}, time.Now())

	if results[0].Status != models.ImportRejected || results[0].Reason != ReasonDuplicate {
		t.Errorf("title+day duplicate not rejected: %+v", results[0])
	}
	if results[1].Status != models.ImportAdded {
		t.Errorf("same title on another day should be added: %+v", results[1])
	}
}

func TestRunImportBatchSourceURLDuplicate(t *testing.T) {
	it := testItinerary()
	day := it.DayByDate("2025-03-15")
	day.Events = append(day.Events, models.Event{
		ID: "e1", Title: "Kickoff", StartTime: "09:00", SourceURL: "https://lu.ma/kickoff",
	})

	fetcher := &fakeFetcher{pages: map[string]*models.ImportCandidate{
		"https://lu.ma/kickoff": candidate("Renamed Kickoff", "2025-03-15T09:00"),
	}}
	results := RunImportBatch(context.Background(), fetcher, it, []string{"https://lu.ma/kickoff"}, time.Now())
	if results[0].Status != models.ImportRejected || results[0].Reason != ReasonDuplicate {
		t.Errorf("source URL duplicate not rejected: %+v", results[0])
	}
}

func TestRunImportBatchCapSkipsWithoutFetching(t *testing.T) {
	it := testItinerary()
	day := it.DayByDate("2025-03-15")
	for i := 0; i < models.MaxEventsPerItinerary; i++ {
		day.Events = append(day.Events, models.Event{ID: fmt.Sprintf("e%d", i), Title: fmt.Sprintf("Event %d", i), StartTime: "09:00"})
	}

	fetcher := &fakeFetcher{pages: map[string]*models.ImportCandidate{}}
	results := RunImportBatch(context.Background(), fetcher, it,
		[]string{"https://lu.ma/a", "https://lu.ma/b"}, time.Now())

	if fetcher.fetches != 0 {
		t.Errorf("expected no fetches at cap, got %d", fetcher.fetches)
	}
	for _, r := range results {
		if r.Status != models.ImportSkipped || r.Reason != ReasonLimitReached {
			t.Errorf("expected skipped result, got %+v", r)
		}
	}
}

func TestRunImportBatchKeepsDaySorted(t *testing.T) {
	it := testItinerary()
	day := it.DayByDate("2025-03-16")
	day.Events = append(day.Events, models.Event{ID: "e1", Title: "Lunch", StartTime: "12:00"})

	fetcher := &fakeFetcher{pages: map[string]*models.ImportCandidate{
		"https://lu.ma/breakfast": candidate("Breakfast", "2025-03-16T08:00"),
		"https://lu.ma/dinner":    candidate("Dinner", "2025-03-16T19:00"),
	}}
	RunImportBatch(context.Background(), fetcher, it,
		[]string{"https://lu.ma/dinner", "https://lu.ma/breakfast"}, time.Now())

	day = it.DayByDate("2025-03-16")
	var titles []string
	for _, ev := range day.Events {
		titles = append(titles, ev.Title)
	}
	want := "Breakfast,Lunch,Dinner"
	if got := strings.Join(titles, ","); got != want {
		t.Errorf("day not sorted by start time: got %s, want %s", got, want)
	}
}

func TestRunImportBatchEqualTimesKeepInsertionOrder(t *testing.T) {
	it := testItinerary()
	day := it.DayByDate("2025-03-16")
	day.Events = append(day.Events, models.Event{ID: "e1", Title: "First", StartTime: "10:00"})

	fetcher := &fakeFetcher{pages: map[string]*models.ImportCandidate{
		"https://lu.ma/second": candidate("Second", "2025-03-16T10:00"),
		"https://lu.ma/third":  candidate("Third", "2025-03-16T10:00"),
	}}
	RunImportBatch(context.Background(), fetcher, it,
		[]string{"https://lu.ma/second", "https://lu.ma/third"}, time.Now())

	day = it.DayByDate("2025-03-16")
	var titles []string
	for _, ev := range day.Events {
		titles = append(titles, ev.Title)
	}
	want := "First,Second,Third"
	if got := strings.Join(titles, ","); got != want {
		t.Errorf("equal start times must keep insertion order: got %s, want %s", got, want)
	}
}

func TestEventFromCandidateTruncatesLocationAtRuneBoundary(t *testing.T) {
	c := candidate("Kickoff", "2025-03-16T10:00")
	// The leading ASCII byte puts every following 2-byte rune at an odd
	// offset, so the byte cap falls in the middle of one.
	c.Location.Name = "a" + strings.Repeat("ü", models.MaxLocationLength)

	ev := eventFromCandidate(c, time.Now())
	if len(ev.Location) > models.MaxLocationLength {
		t.Errorf("location not truncated: %d bytes", len(ev.Location))
	}
	if !utf8.ValidString(ev.Location) {
		t.Errorf("truncation split a rune, location is not valid UTF-8")
	}
}

func TestFormatImportSummary(t *testing.T) {
	results := []models.ImportResult{
		{URL: "https://lu.ma/a", Status: models.ImportAdded, Title: "Kickoff"},
		{URL: "https://lu.ma/b", Status: models.ImportRejected, Title: "Afterparty", Reason: ReasonOutsideTrip},
		{URL: "https://lu.ma/c", Status: models.ImportSkipped, Reason: ReasonLimitReached},
	}
	got := FormatImportSummary(results)
	if !strings.HasPrefix(got, "Import results: 1 added, 1 rejected, 1 skipped") {
		t.Errorf("summary header wrong: %q", got)
	}
	for _, want := range []string{"✅ Kickoff", "❌ Afterparty - " + ReasonOutsideTrip, "⏭️ https://lu.ma/c - " + ReasonLimitReached} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}
