package explorer

import (
	"github.com/google/uuid"
	"github.com/use-agent/dashscrape/fingerprint"
)

// Session is the traversal state of one dashboard scrape. It is created
// by Run, owned by that call alone and dropped when Run returns.
type Session struct {
	ID       string
	URL      string
	Explore  bool
	MaxSteps int

	visited  map[string]*Candidate
	queued   map[string]bool
	frontier []*Candidate
	states   map[string]bool
	steps    int
}

// NewSession creates the traversal state for url.
func NewSession(url string, explore bool, maxSteps int) *Session {
	return &Session{
		ID:       uuid.NewString(),
		URL:      url,
		Explore:  explore,
		MaxSteps: maxSteps,
		visited:  make(map[string]*Candidate),
		queued:   make(map[string]bool),
		states:   make(map[string]bool),
	}
}

// Offer queues every candidate whose key is neither visited nor already
// queued and returns how many were added.
func (s *Session) Offer(cands []*Candidate) int {
	n := 0
	for _, c := range cands {
		if s.visited[c.Key] != nil || s.queued[c.Key] {
			continue
		}
		s.queued[c.Key] = true
		s.frontier = append(s.frontier, c)
		n++
	}
	return n
}

// Next pops the oldest queued candidate, marks it visited and counts a
// step.
func (s *Session) Next() (*Candidate, bool) {
	if len(s.frontier) == 0 {
		return nil, false
	}
	c := s.frontier[0]
	s.frontier[0] = nil
	s.frontier = s.frontier[1:]
	delete(s.queued, c.Key)

	c.Visited = true
	s.visited[c.Key] = c
	s.steps++
	return c, true
}

// Visited reports whether the candidate with key was already popped.
func (s *Session) Visited(key string) bool { return s.visited[key] != nil }

// Lookup returns the visited candidate with the given label.
func (s *Session) Lookup(label string) (*Candidate, bool) {
	c, ok := s.visited[fingerprint.Normalize(label)]
	return c, ok
}

// Pending is the frontier length.
func (s *Session) Pending() int { return len(s.frontier) }

// Steps is the number of candidates popped so far.
func (s *Session) Steps() int { return s.steps }

// StepsLeft reports whether another click is within MaxSteps. MaxSteps
// <= 0 means unbounded.
func (s *Session) StepsLeft() bool {
	return s.MaxSteps <= 0 || s.steps < s.MaxSteps
}

// SeenState records a snapshot content hash and reports whether it had
// been extracted before.
func (s *Session) SeenState(hash string) bool {
	if s.states[hash] {
		return true
	}
	s.states[hash] = true
	return false
}
