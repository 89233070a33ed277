// Package track is an optional debug side-table recording who allocated
// what. The allocator tiers never see it; the system facade records into it
// around each call when tracking is enabled.
package track

import (
	"cmp"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memkit/mem"
)

// Site is a caller location.
type Site struct {
	File string
	Line int
	Func string
}

func (s Site) String() string {
	if s.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(s.File), s.Line)
}

type entry struct {
	size int
	cat  mem.Category
	site Site
}

// Tracker maps live pointers to their allocation records.
//
// NOT thread-safe, like the allocators it shadows.
type Tracker struct {
	live  map[mem.Ptr]entry
	bytes int
	peak  int
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{live: make(map[mem.Ptr]entry)}
}

// Caller returns the site skip frames above the function calling Caller.
func Caller(skip int) Site {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Site{}
	}
	s := Site{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		s.Func = fn.Name()
	}
	return s
}

// Record notes a live allocation. A nil tracker ignores it.
func (t *Tracker) Record(p mem.Ptr, size int, cat mem.Category, site Site) {
	if t == nil || p == mem.Nil {
		return
	}
	if old, ok := t.live[p]; ok {
		t.bytes -= old.size
	}
	t.live[p] = entry{size: size, cat: cat, site: site}
	t.bytes += size
	t.peak = max(t.peak, t.bytes)
}

// Forget drops the record for p.
func (t *Tracker) Forget(p mem.Ptr) {
	if t == nil {
		return
	}
	if e, ok := t.live[p]; ok {
		t.bytes -= e.size
		delete(t.live, p)
	}
}

// Move transfers the record for old to p with a new size, keeping its
// category and original site. An untracked old pointer is recorded fresh.
func (t *Tracker) Move(old, p mem.Ptr, size int, cat mem.Category, site Site) {
	if t == nil {
		return
	}
	if e, ok := t.live[old]; ok {
		cat, site = e.cat, e.site
		t.Forget(old)
	}
	t.Record(p, size, cat, site)
}

// Lookup returns the size and category recorded for p.
func (t *Tracker) Lookup(p mem.Ptr) (int, mem.Category, bool) {
	if t == nil {
		return 0, mem.CategoryUnknown, false
	}
	e, ok := t.live[p]
	return e.size, e.cat, ok
}

// CategoryTotal aggregates live allocations of one category.
type CategoryTotal struct {
	Category mem.Category `json:"category"`
	Count    int          `json:"count"`
	Bytes    int          `json:"bytes"`
}

// SiteTotal aggregates live allocations made at one site.
type SiteTotal struct {
	Site     string       `json:"site"`
	Func     string       `json:"func,omitempty"`
	Category mem.Category `json:"category"`
	Count    int          `json:"count"`
	Bytes    int          `json:"bytes"`
}

// Report is a snapshot of live allocations.
type Report struct {
	Count      int             `json:"count"`
	Bytes      int             `json:"bytes"`
	PeakBytes  int             `json:"peak_bytes"`
	Categories []CategoryTotal `json:"categories"`
	Sites      []SiteTotal     `json:"sites"`
}

// Report aggregates the live set by category and by site, largest first.
func (t *Tracker) Report() Report {
	if t == nil {
		return Report{}
	}
	r := Report{Count: len(t.live), Bytes: t.bytes, PeakBytes: t.peak}
	cats := map[mem.Category]*CategoryTotal{}
	type siteKey struct {
		site Site
		cat  mem.Category
	}
	sites := map[siteKey]*SiteTotal{}
	for _, e := range t.live {
		c := cats[e.cat]
		if c == nil {
			c = &CategoryTotal{Category: e.cat}
			cats[e.cat] = c
		}
		c.Count++
		c.Bytes += e.size

		k := siteKey{e.site, e.cat}
		s := sites[k]
		if s == nil {
			s = &SiteTotal{Site: e.site.String(), Func: e.site.Func, Category: e.cat}
			sites[k] = s
		}
		s.Count++
		s.Bytes += e.size
	}
	for _, c := range cats {
		r.Categories = append(r.Categories, *c)
	}
	for _, s := range sites {
		r.Sites = append(r.Sites, *s)
	}
	slices.SortFunc(r.Categories, func(a, b CategoryTotal) int {
		return cmp.Or(cmp.Compare(b.Bytes, a.Bytes), cmp.Compare(a.Category, b.Category))
	})
	slices.SortFunc(r.Sites, func(a, b SiteTotal) int {
		return cmp.Or(cmp.Compare(b.Bytes, a.Bytes), cmp.Compare(a.Site, b.Site), cmp.Compare(a.Category, b.Category))
	})
	return r
}

// Format writes a human-readable report with grouped thousands. At most
// maxSites sites are listed; 0 lists all.
func (r Report) Format(w io.Writer, maxSites int) error {
	p := message.NewPrinter(language.English)
	if _, err := p.Fprintf(w, "live: %d allocations, %d bytes (peak %d bytes)\n", r.Count, r.Bytes, r.PeakBytes); err != nil {
		return err
	}
	for _, c := range r.Categories {
		if _, err := p.Fprintf(w, "  %-10s %8d allocs %12d bytes\n", c.Category, c.Count, c.Bytes); err != nil {
			return err
		}
	}
	sites := r.Sites
	if maxSites > 0 && len(sites) > maxSites {
		sites = sites[:maxSites]
	}
	if len(sites) > 0 {
		if _, err := p.Fprintf(w, "top sites:\n"); err != nil {
			return err
		}
	}
	for _, s := range sites {
		if _, err := p.Fprintf(w, "  %-28s %-10s %8d allocs %12d bytes\n", s.Site, s.Category, s.Count, s.Bytes); err != nil {
			return err
		}
	}
	return nil
}
