package live

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tiagowhuber/ConsultasSII/internal/sii"
)

// ConnState is the channel connection state.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const eventNewRecord = "new_record"

// Channel maintains a single persistent SSE subscription to the push server
// and dispatches typed "new_record" events to a callback.
//
// Connect is idempotent and Disconnect is final for the current connection:
// events that arrive after Disconnect are dropped without invoking the
// callback. Connection failures transition the state to Disconnected and
// are logged; reconnection is the caller's decision.
type Channel struct {
	url      string
	http     *http.Client
	log      zerolog.Logger
	onRecord func(sii.NewRecordEvent)

	mu     sync.Mutex
	state  ConnState
	gen    uint64 // bumped on every disconnect; stale readers check it
	cancel context.CancelFunc
}

// NewChannel builds a Channel for the given push URL. onRecord receives
// every "new_record" event while connected.
func NewChannel(pushURL string, log zerolog.Logger, onRecord func(sii.NewRecordEvent)) *Channel {
	return &Channel{
		url: pushURL,
		// No client-wide timeout: the subscription is a long-lived stream.
		http:     &http.Client{},
		log:      log,
		onRecord: onRecord,
	}
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the subscription. Calling it while connecting or connected
// is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	gen := c.gen
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.url, nil)
	if err != nil {
		cancel()
		c.drop(gen, fmt.Errorf("create subscribe request: %w", err))
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		err = fmt.Errorf("subscribe: %w", err)
		c.drop(gen, err)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		err = fmt.Errorf("subscribe: push server returned status %d", resp.StatusCode)
		c.drop(gen, err)
		return err
	}

	c.mu.Lock()
	if gen != c.gen {
		// Disconnected while the handshake was in flight.
		c.mu.Unlock()
		_ = resp.Body.Close()
		cancel()
		return nil
	}
	c.state = Connected
	c.mu.Unlock()

	go c.readLoop(gen, resp)
	return nil
}

// Disconnect tears the subscription down and forces Disconnected. Inbound
// events still buffered by a reader from the old connection are ignored.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	c.state = Disconnected
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// readLoop scans the SSE stream and dispatches complete events.
func (c *Channel) readLoop(gen uint64, resp *http.Response) {
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 16*1024), 256*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			c.dispatch(gen, eventName, data.String())
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("push stream closed")
	}
	c.drop(gen, err)
}

// dispatch forwards a completed event to the callback, unless the channel
// was disconnected since the stream started.
func (c *Channel) dispatch(gen uint64, eventName, payload string) {
	if eventName != eventNewRecord || payload == "" {
		return
	}

	c.mu.Lock()
	live := gen == c.gen && c.state == Connected
	c.mu.Unlock()
	if !live {
		return
	}

	var event sii.NewRecordEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.log.Warn().Err(err).Msg("malformed new_record event")
		return
	}
	if c.onRecord != nil {
		c.onRecord(event)
	}
}

// drop transitions to Disconnected for a failed or finished connection,
// unless a newer connection has already superseded it.
func (c *Channel) drop(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.state = Disconnected
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.log.Warn().Err(err).Msg("push channel dropped")
}
