package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

func emptyTarget() proto.TargetCreateTarget {
	return proto.TargetCreateTarget{}
}

// RodPage adapts a rod page to the surface the bridge drives. It also
// forwards the page's console output into the process log, which is where
// injected-script failures show up.
type RodPage struct {
	page   *rod.Page
	logger zerolog.Logger
}

func newRodPage(page *rod.Page, logger zerolog.Logger) *RodPage {
	p := &RodPage{
		page:   page,
		logger: logger.With().Str("component", "page").Logger(),
	}
	p.forwardConsole()
	return p
}

// Navigate loads a URL and waits for the load event, bounded by timeout.
func (p *RodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Failed to navigate to %s: %v", url, err),
		}
	}
	if err := page.WaitLoad(); err != nil {
		return &BrowserError{
			Code:    ErrCodeNavigation,
			Message: fmt.Sprintf("Page load timeout for %s: %v", url, err),
		}
	}
	return nil
}

// Content returns the rendered document markup.
func (p *RodPage) Content(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeScript,
			Message: fmt.Sprintf("Failed to read page content: %v", err),
		}
	}
	return html, nil
}

// Eval runs a script in the page context. Promise results are awaited.
func (p *RodPage) Eval(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", &BrowserError{
			Code:    ErrCodeScript,
			Message: fmt.Sprintf("Script execution failed: %v", err),
		}
	}
	return res.Value.Str(), nil
}

// ElementText returns the inner text of the first element matching the
// selector. A missing element is reported through the bool, not an error.
func (p *RodPage) ElementText(ctx context.Context, selector string) (string, bool, error) {
	elems, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return "", false, &BrowserError{
			Code:    ErrCodeScript,
			Message: fmt.Sprintf("Failed to query %s: %v", selector, err),
		}
	}
	if len(elems) == 0 {
		return "", false, nil
	}
	text, err := elems.First().Text()
	if err != nil {
		return "", false, &BrowserError{
			Code:    ErrCodeScript,
			Message: fmt.Sprintf("Failed to read %s: %v", selector, err),
		}
	}
	return text, true, nil
}

// forwardConsole mirrors page console messages into the process log.
func (p *RodPage) forwardConsole() {
	go p.page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		var text strings.Builder
		for i, arg := range e.Args {
			if i > 0 {
				text.WriteString(" ")
			}
			text.WriteString(fmt.Sprintf("%v", arg.Value))
		}
		switch e.Type {
		case proto.RuntimeConsoleAPICalledTypeError:
			p.logger.Error().Str("source", "console").Msg(text.String())
		case proto.RuntimeConsoleAPICalledTypeWarning:
			p.logger.Warn().Str("source", "console").Msg(text.String())
		default:
			p.logger.Debug().Str("source", "console").Msg(text.String())
		}
	})()
}
