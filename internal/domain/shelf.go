package domain

import (
	"slices"
	"unicode/utf8"
)

// Filter selects which records the list view shows.
type Filter string

// FilterAll shows every record. The other filters are the statuses themselves.
const FilterAll Filter = "all"

// Filters lists every filter in display order.
var Filters = []Filter{FilterAll, Filter(StatusReading), Filter(StatusFinished), Filter(StatusAbandoned)}

// ParseFilter returns the filter named s, falling back to FilterAll.
func ParseFilter(s string) Filter {
	f := Filter(s)
	if slices.Contains(Filters, f) {
		return f
	}
	return FilterAll
}

// Match reports whether b passes the filter.
func (f Filter) Match(b Book) bool {
	return f == FilterAll || Status(f) == b.Status
}

// Apply returns the books passing the filter, preserving order.
func (f Filter) Apply(books []Book) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}

// Counts returns how many books each filter matches.
func Counts(books []Book) map[Filter]int {
	counts := make(map[Filter]int, len(Filters))
	for _, f := range Filters {
		counts[f] = 0
	}
	for _, b := range books {
		counts[FilterAll]++
		counts[Filter(b.Status)]++
	}
	return counts
}

// SortByStartedDesc orders books newest start date first. Ties keep their relative order.
func SortByStartedDesc(books []Book) {
	slices.SortStableFunc(books, func(a, b Book) int {
		return b.DateStarted.Compare(a.DateStarted)
	})
}

// Shelf returns the finished books ordered by completion date, oldest first.
func Shelf(books []Book) []Book {
	finished := Filter(StatusFinished).Apply(books)
	slices.SortStableFunc(finished, func(a, b Book) int {
		return a.DateCompleted.Compare(b.DateCompleted)
	})
	return finished
}

// CurrentlyReading returns the books in progress, newest start first.
func CurrentlyReading(books []Book) []Book {
	reading := Filter(StatusReading).Apply(books)
	SortByStartedDesc(reading)
	return reading
}

// IntentionPreviewLength is the number of characters shown on a collapsed card.
const IntentionPreviewLength = 100

// Truncate shortens s to at most n characters, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
