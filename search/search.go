// Package search turns raw search-box input into lookups against an index
// and publishes the outcome as typed events for a renderer.
//
// A complete code resolves to a single grid cell; anything shorter is
// treated as a partial code and produces completions. Results for input
// that has since been replaced are dropped, so a slow shard fetch can
// never overwrite the outcome of a newer keystroke.
package search

import (
	"strings"
	"sync"

	"github.com/meigma/zipgrid/dataset"
	"github.com/meigma/zipgrid/index"
	"github.com/meigma/zipgrid/signal"
)

// Resolver is the subset of *index.Index the controller needs.
type Resolver interface {
	Resolve(code string, fn index.ResolveFunc)
	Suggest(partial string, fn index.SuggestFunc)
}

// Found reports a complete code that resolved to a grid cell.
type Found struct {
	Code string
	I    int
	J    int
}

// Missed reports a complete code that did not resolve. Err is set when the
// lookup failed rather than the code being absent.
type Missed struct {
	Code string
	Err  error
}

// Refined reports the completions for a partial code.
type Refined struct {
	Text    string
	Matches []dataset.Entry
	Coords  []dataset.Coord
}

// NoMatch reports a partial code with no completions. Err is set when the
// lookup failed.
type NoMatch struct {
	Text string
	Err  error
}

// Cleared reports that the input became empty.
type Cleared struct{}

// Controller tracks the current search text and publishes lookup results.
//
// Events are published synchronously from Update when the data is already
// loaded, and otherwise from the goroutine that completed the fetch.
type Controller struct {
	Found        signal.Signal[Found]
	Missed       signal.Signal[Missed]
	Refined      signal.Signal[Refined]
	NoMatch      signal.Signal[NoMatch]
	Cleared      signal.Signal[Cleared]
	StateChanged signal.Signal[bool]

	idx Resolver

	mu      sync.Mutex
	current string
	seen    bool
	active  bool
	gen     uint64
}

// New creates a Controller that looks codes up in idx.
func New(idx Resolver) *Controller {
	return &Controller{idx: idx}
}

// Clean removes every non-digit from text.
func Clean(text string) string {
	return strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, text)
}

// Update sets the search text and starts the matching lookup. Non-digits
// are removed first; the cleaned text is returned so the caller can reflect
// it back to the input. Unchanged text is ignored unless force is set.
func (c *Controller) Update(text string, force bool) string {
	text = Clean(text)

	c.mu.Lock()
	if c.seen && !force && text == c.current {
		c.mu.Unlock()
		return text
	}
	c.current = text
	c.seen = true
	c.gen++
	gen := c.gen
	active := text != ""
	changed := active != c.active
	c.active = active
	c.mu.Unlock()

	if changed {
		c.StateChanged.Publish(active)
	}

	switch {
	case text == "":
		c.Cleared.Publish(Cleared{})
	case len(text) == dataset.CodeLen:
		c.idx.Resolve(text, func(loc index.Location, err error) {
			if !c.isCurrent(gen) {
				return
			}
			if !loc.Found {
				c.Missed.Publish(Missed{Code: text, Err: err})
				return
			}
			c.Found.Publish(Found{Code: text, I: loc.I, J: loc.J})
		})
	default:
		c.idx.Suggest(text, func(s *index.Suggestion, err error) {
			if !c.isCurrent(gen) {
				return
			}
			if s == nil {
				c.NoMatch.Publish(NoMatch{Text: text, Err: err})
				return
			}
			c.Refined.Publish(Refined{Text: text, Matches: s.Candidates, Coords: s.Coords})
		})
	}
	return text
}

// Clear empties the search text.
func (c *Controller) Clear() {
	c.Update("", false)
}

// Text returns the current cleaned search text.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Active reports whether there is any search text.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}
