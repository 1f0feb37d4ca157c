package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(label string) *Candidate {
	return &Candidate{Key: label, Label: label, Selector: `[role="tab"]`}
}

func TestSession_FrontierIsFIFOAndNeverRepeats(t *testing.T) {
	s := NewSession(dashURL, true, 0)
	assert.NotEmpty(t, s.ID)

	assert.Equal(t, 2, s.Offer([]*Candidate{cand("a"), cand("b")}))
	assert.Equal(t, 1, s.Offer([]*Candidate{cand("b"), cand("c")}), "queued keys are not added twice")

	c, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, "a", c.Label)
	assert.True(t, c.Visited)
	assert.True(t, s.Visited("a"))

	assert.Equal(t, 0, s.Offer([]*Candidate{cand("a")}), "visited keys are not added again")

	var order []string
	for {
		c, ok := s.Next()
		if !ok {
			break
		}
		order = append(order, c.Label)
	}
	assert.Equal(t, []string{"b", "c"}, order)
	assert.Equal(t, 3, s.Steps())
	assert.Zero(t, s.Pending())
}

func TestSession_StepsLeft(t *testing.T) {
	s := NewSession(dashURL, true, 1)
	s.Offer([]*Candidate{cand("a"), cand("b")})

	assert.True(t, s.StepsLeft())
	s.Next()
	assert.False(t, s.StepsLeft())

	unbounded := NewSession(dashURL, true, 0)
	assert.True(t, unbounded.StepsLeft())
}

func TestSession_Lookup(t *testing.T) {
	s := NewSession(dashURL, true, 0)
	s.Offer([]*Candidate{{Key: "traffic", Label: "Traffic"}})
	s.Next()

	c, ok := s.Lookup(" TRAFFIC ")
	require.True(t, ok)
	assert.Equal(t, "Traffic", c.Label)

	_, ok = s.Lookup("Audience")
	assert.False(t, ok)
}

func TestSession_SeenState(t *testing.T) {
	s := NewSession(dashURL, true, 0)
	assert.False(t, s.SeenState("h1"))
	assert.True(t, s.SeenState("h1"))
	assert.False(t, s.SeenState("h2"))
}
