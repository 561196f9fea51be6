package engine

import (
	"fmt"
	"strings"
)

// PlaybackState is the story's run mode. Exactly one is active.
type PlaybackState uint8

const (
	Stopped PlaybackState = iota
	Paused
	Playing
	FastForwarding
)

func (p PlaybackState) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	case FastForwarding:
		return "fast_forwarding"
	}
	return fmt.Sprintf("PlaybackState(%d)", uint8(p))
}

// ParsePlaybackState parses the names produced by String.
func ParsePlaybackState(s string) (PlaybackState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stopped":
		return Stopped, nil
	case "paused", "pause":
		return Paused, nil
	case "playing", "play":
		return Playing, nil
	case "fast_forwarding":
		return FastForwarding, nil
	}
	return Stopped, fmt.Errorf("unknown playback state %q", s)
}

// Running reports whether agent systems and the story clock advance.
func (p PlaybackState) Running() bool {
	return p == Playing || p == FastForwarding
}

// Playback holds the active state and at most one requested transition.
// Requests take effect at the start of the next frame, so every system in a
// frame sees the same current state.
type Playback struct {
	current PlaybackState
	next    PlaybackState
	hasNext bool
}

// Current returns the active state.
func (p *Playback) Current() PlaybackState { return p.current }

// Next returns the requested transition, if any.
func (p *Playback) Next() (PlaybackState, bool) { return p.next, p.hasNext }

// IsOrBecoming reports whether s is active or requested.
func (p *Playback) IsOrBecoming(s PlaybackState) bool {
	return p.current == s || (p.hasNext && p.next == s)
}

// SetNext requests a transition. A later request in the same frame wins.
func (p *Playback) SetNext(s PlaybackState) {
	p.next = s
	p.hasNext = true
}

// Apply performs the requested transition. changed is false when nothing
// was requested or the request matches the current state.
func (p *Playback) Apply() (from, to PlaybackState, changed bool) {
	if !p.hasNext {
		return p.current, p.current, false
	}
	from, to = p.current, p.next
	p.current = p.next
	p.hasNext = false
	return from, to, from != to
}

// Force sets the state immediately and drops any pending request.
func (p *Playback) Force(s PlaybackState) {
	p.current = s
	p.hasNext = false
}
