package chatgpt

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"
)

// fakePage is a scripted stand-in for the controlled browser page. The
// injected request is simulated by the turn hook; marker polls can be
// scripted per iteration through onPoll.
type fakePage struct {
	mu      sync.Mutex
	navs    []string
	evals   []string
	markers map[string]string

	// contentFn supplies the rendered document for Content.
	contentFn func() string

	// navErr, when set, decides whether a navigation fails.
	navErr func(url string) error

	// turn runs when the injection script is evaluated. Callers mutate
	// p.markers through the set helpers.
	turn func(p *fakePage)

	// turnErr, when set, decides whether the 1-based nth injection
	// fails. A failing injection skips the turn hook.
	turnErr func(n int) error

	// onPoll runs on each stream-marker query, before the marker is
	// read, with the 1-based poll count. Runs under p.mu.
	onPoll func(p *fakePage, n int)

	// deniedFn, when set, decides whether the block-page element is
	// present for the given 1-based query count.
	deniedFn func(n int) bool

	// fetchFn supplies the response body when an in-page fetch script
	// is evaluated.
	fetchFn func(js string) (string, error)

	polls         int
	turns         int
	deniedQueries int
}

func newFakePage() *fakePage {
	return &fakePage{markers: map[string]string{}}
}

func (p *fakePage) Navigate(_ context.Context, url string, _ time.Duration) error {
	p.mu.Lock()
	p.navs = append(p.navs, url)
	p.mu.Unlock()
	if p.navErr != nil {
		return p.navErr(url)
	}
	return nil
}

func (p *fakePage) Content(_ context.Context) (string, error) {
	if p.contentFn != nil {
		return p.contentFn(), nil
	}
	return "", nil
}

func (p *fakePage) Eval(_ context.Context, js string) (string, error) {
	p.mu.Lock()
	p.evals = append(p.evals, js)
	p.mu.Unlock()

	switch {
	case strings.Contains(js, "XMLHttpRequest"):
		p.mu.Lock()
		p.turns++
		n := p.turns
		p.mu.Unlock()
		if p.turnErr != nil {
			if err := p.turnErr(n); err != nil {
				return "", err
			}
		}
		if p.turn != nil {
			p.turn(p)
		}
	case strings.Contains(js, "await fetch"):
		if p.fetchFn != nil {
			return p.fetchFn(js)
		}
	case strings.Contains(js, "el.remove()"):
		p.mu.Lock()
		p.markers = map[string]string{}
		p.mu.Unlock()
	}
	return "", nil
}

func (p *fakePage) ElementText(_ context.Context, selector string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if selector == accessDeniedSelector {
		p.deniedQueries++
		if p.deniedFn != nil && p.deniedFn(p.deniedQueries) {
			return "Access denied: you have been blocked", true, nil
		}
		return "", false, nil
	}

	id := strings.TrimPrefix(selector, "div#")
	if id == streamMarkerID {
		p.polls++
		if p.onPoll != nil {
			p.onPoll(p, p.polls)
		}
	}
	text, ok := p.markers[id]
	return text, ok, nil
}

// setEvent publishes an event JSON into the stream marker the way the
// injected script would: base64-encoded. Must run under p.mu when called
// from onPoll.
func (p *fakePage) setEvent(eventJSON string) {
	p.markers[streamMarkerID] = base64.StdEncoding.EncodeToString([]byte(eventJSON))
}

func (p *fakePage) setEOF() {
	p.markers[eofMarkerID] = ""
}

// injections counts how many turns were injected into the page.
func (p *fakePage) injections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, js := range p.evals {
		if strings.Contains(js, "XMLHttpRequest") {
			n++
		}
	}
	return n
}

// authNavigations counts navigations to the session endpoint.
func (p *fakePage) authNavigations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, url := range p.navs {
		if strings.HasSuffix(url, "/api/auth/session") {
			n++
		}
	}
	return n
}

// eventJSON builds a stream event payload.
func eventJSON(messageID, conversationID string, parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = `"` + p + `"`
	}
	return `{"message":{"id":"` + messageID + `","content":{"content_type":"text","parts":[` +
		strings.Join(quoted, ",") + `]}},"conversation_id":"` + conversationID + `"}`
}
