package chatgpt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Marker element ids. The injected script and the host poller agree on
// these; they are the whole wire protocol between the two contexts.
const (
	streamMarkerID = "chatbridge-conversation-stream"
	eofMarkerID    = "chatbridge-conversation-stream-eof"
	errorMarkerID  = "chatbridge-conversation-error"
)

const defaultPollInterval = 200 * time.Millisecond

// injectionTemplate runs inside the page context. It issues the
// conversation request with the page's own cookies and fingerprint, and
// hands each validated event back to the host through the stream marker.
// Event text is base64-encoded into the marker so arbitrary JSON survives
// being stored as markup. The eof marker signals the transport's terminal
// ready state.
const injectionTemplate = `() => {
	const streamDiv = document.createElement('DIV');
	streamDiv.id = "%STREAM_ID%";
	document.body.appendChild(streamDiv);
	const xhr = new XMLHttpRequest();
	xhr.open('POST', '%ENDPOINT%');
	xhr.setRequestHeader('Accept', 'text/event-stream');
	xhr.setRequestHeader('Content-Type', 'application/json');
	xhr.setRequestHeader('Authorization', 'Bearer %TOKEN%');
	xhr.seenBytes = 0;
	xhr.onreadystatechange = function() {
		let newEvent;
		if (xhr.readyState == 3 || xhr.readyState == 4) {
			const newData = xhr.responseText.substr(xhr.seenBytes);
			try {
				const newEvents = newData.split(/\n\n/).reverse();
				newEvents.shift();
				if (newEvents[0] == "data: [DONE]") {
					newEvents.shift();
				}
				if (newEvents.length > 0) {
					newEvent = newEvents[0].substring(6);
					// An event can span a read boundary; JSON.parse
					// throws on the fragment and we wait for the rest.
					JSON.parse(newEvent);
				}
			} catch (err) {
				newEvent = undefined;
			}
			if (newEvent !== undefined) {
				streamDiv.innerHTML = btoa(newEvent);
				xhr.seenBytes = xhr.responseText.length;
			}
		}
		if (xhr.readyState == 4) {
			const eofDiv = document.createElement('DIV');
			eofDiv.id = "%EOF_ID%";
			document.body.appendChild(eofDiv);
		}
	};
	xhr.send(JSON.stringify(%PAYLOAD%));
}`

const cleanupScript = `() => {
	for (const id of ["%STREAM_ID%", "%EOF_ID%", "%ERROR_ID%"]) {
		const el = document.getElementById(id);
		if (el) { el.remove(); }
	}
}`

// bridge injects the conversation request into the live page and
// reconstructs the streamed response by polling the marker elements.
type bridge struct {
	page     Page
	endpoint string
	interval time.Duration
	logger   zerolog.Logger

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func newBridge(page Page, baseURL string, logger zerolog.Logger) *bridge {
	return &bridge{
		page:     page,
		endpoint: baseURL + "/backend-api/conversation",
		interval: defaultPollInterval,
		logger:   logger.With().Str("component", "bridge").Logger(),
		sleep:    sleepCtx,
	}
}

// inject starts the request inside the page context. The stream marker is
// created by the script itself, so a failed injection may still leave a
// marker behind; callers clean up on every exit path.
func (b *bridge) inject(ctx context.Context, token string, payload conversationRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Code: ErrCodeNetwork, Message: "failed to encode request payload", Err: err}
	}

	js := strings.NewReplacer(
		"%STREAM_ID%", streamMarkerID,
		"%EOF_ID%", eofMarkerID,
		"%ENDPOINT%", b.endpoint,
		"%TOKEN%", token,
		"%PAYLOAD%", string(body),
	).Replace(injectionTemplate)

	if _, err := b.page.Eval(ctx, js); err != nil {
		return &Error{Code: ErrCodeNetwork, Message: "failed to inject request into page", Err: err}
	}
	return nil
}

// streamResult is the outcome of one polled turn.
type streamResult struct {
	event *StreamEvent // last decoded event, nil when none arrived
	text  string       // final cumulative message
}

// pollStream observes the markers until the eof marker appears. Each
// iteration decodes the stream marker's payload and emits the suffix past
// the previously observed length, so the cumulative message is
// reconstructed incrementally over a polling interface.
//
// The wall-clock timeout applies while no output has arrived; once the
// message is non-empty the loop instead tolerates up to stall of no
// growth, then returns what it has. A turn that times out with no output
// at all returns a Timeout error for the retry policy to absorb.
func (b *bridge) pollStream(ctx context.Context, timeout, stall time.Duration, onDelta func(string)) (*streamResult, error) {
	start := time.Now()
	progress := start
	last := ""
	var final *StreamEvent

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if last == "" {
			if time.Since(start) > timeout {
				return nil, &Error{Code: ErrCodeTimeout, Message: "no response before timeout"}
			}
		} else if time.Since(progress) > stall {
			b.logger.Warn().Msg("Stream stalled without end-of-stream marker, returning partial message")
			return &streamResult{event: final, text: last}, nil
		}

		_, eof, err := b.page.ElementText(ctx, "div#"+eofMarkerID)
		if err != nil {
			return nil, &Error{Code: ErrCodeNetwork, Message: "failed to poll eof marker", Err: err}
		}

		encoded, found, err := b.page.ElementText(ctx, "div#"+streamMarkerID)
		if err != nil {
			return nil, &Error{Code: ErrCodeNetwork, Message: "failed to poll stream marker", Err: err}
		}

		if found {
			event, decodeErr := decodeStreamPayload(encoded)
			if decodeErr != nil {
				return nil, decodeErr
			}
			if event != nil {
				text := event.Text()
				// Cumulative length is monotonically non-decreasing
				// within a turn.
				if len(text) > len(last) {
					delta := text[len(last):]
					last = text
					progress = time.Now()
					b.logger.Debug().Str("delta", delta).Msg("Received chunk")
					if onDelta != nil {
						onDelta(delta)
					}
				}
				final = event
			}
		}

		// The final chunk is drained above before honoring eof.
		if eof {
			return &streamResult{event: final, text: last}, nil
		}

		if err := b.sleep(ctx, b.interval); err != nil {
			return nil, err
		}
	}
}

// decodeStreamPayload decodes one marker payload. An empty marker means
// no event has been validated yet. Anything that fails to decode here is
// structural: the injected script only publishes events it could already
// parse.
func decodeStreamPayload(encoded string) (*StreamEvent, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, newResponseDecodeError(err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var event StreamEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, newResponseDecodeError(err)
	}
	return &event, nil
}

// cleanup removes every marker so the next turn starts from a clean
// slate. Stale markers from a prior turn would corrupt its diff and eof
// logic.
func (b *bridge) cleanup(ctx context.Context) {
	js := strings.NewReplacer(
		"%STREAM_ID%", streamMarkerID,
		"%EOF_ID%", eofMarkerID,
		"%ERROR_ID%", errorMarkerID,
	).Replace(cleanupScript)

	if _, err := b.page.Eval(ctx, js); err != nil {
		b.logger.Error().Err(err).Msg("Failed to clean up markers")
	}
}
