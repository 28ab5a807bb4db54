// Package history holds the persisted record of every workshop ever seen per store
// and the logic that folds a fresh scrape into it.
package history

import (
	"sort"
	"strings"
	"time"
)

// WorkshopEntry is one observed option for one store.
type WorkshopEntry struct {
	Title string `json:"title"`
	// FirstSeen is set when the title is first observed and never changes afterwards.
	FirstSeen time.Time `json:"firstSeen"`
}

// StoreHistory is the bucket of workshops observed for a single store.
type StoreHistory struct {
	Workshops   map[string]WorkshopEntry `json:"workshops"`
	LastChecked *time.Time               `json:"lastChecked,omitempty"`
}

func NewStoreHistory() *StoreHistory {
	return &StoreHistory{Workshops: map[string]WorkshopEntry{}}
}

// Titles returns every recorded title in lexical order.
func (h *StoreHistory) Titles() []string {
	titles := make([]string, 0, len(h.Workshops))
	for title := range h.Workshops {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

// WorkshopState is the process-wide snapshot persisted between runs.
type WorkshopState struct {
	Stores      map[string]*StoreHistory `json:"stores"`
	LastUpdated *time.Time               `json:"lastUpdated,omitempty"`
}

func NewWorkshopState() *WorkshopState {
	return &WorkshopState{Stores: map[string]*StoreHistory{}}
}

// Bucket returns the history of a store, creating an empty one the first time the store is seen.
func (s *WorkshopState) Bucket(store string) *StoreHistory {
	if s.Stores == nil {
		s.Stores = map[string]*StoreHistory{}
	}
	h, ok := s.Stores[store]
	if !ok || h == nil {
		h = NewStoreHistory()
		s.Stores[store] = h
	}
	if h.Workshops == nil {
		h.Workshops = map[string]WorkshopEntry{}
	}
	return h
}

// StoreNames returns the names of every store with a history, in lexical order.
func (s *WorkshopState) StoreNames() []string {
	names := make([]string, 0, len(s.Stores))
	for name := range s.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkUpdated stamps the end of a run.
func (s *WorkshopState) MarkUpdated(now time.Time) {
	now = now.UTC()
	s.LastUpdated = &now
}

// Reconcile folds the titles of a fresh scrape into `h` and returns the ones that were never seen before,
// in the order they were scraped.
//
// Titles already in the history are left untouched and titles missing from the scrape are never removed.
// LastChecked is set to `now` even when nothing new was found.
func Reconcile(h *StoreHistory, scraped []string, now time.Time) []string {
	now = now.UTC()
	if h.Workshops == nil {
		h.Workshops = map[string]WorkshopEntry{}
	}

	newTitles := []string{}
	for _, title := range scraped {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if _, seen := h.Workshops[title]; seen {
			continue
		}
		h.Workshops[title] = WorkshopEntry{Title: title, FirstSeen: now}
		newTitles = append(newTitles, title)
	}

	h.LastChecked = &now
	return newTitles
}
