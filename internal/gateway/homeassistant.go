package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/hvac-controller/internal/herrors"
)

// HomeAssistantGateway talks to Home Assistant over its WebSocket API
// for subscriptions and its REST API for one-shot reads and service
// calls.
type HomeAssistantGateway struct {
	wsURL      string
	restURL    string
	token      string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration

	httpClient *http.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	msgID     int
	handlers  []Handler
	cancel    context.CancelFunc
}

// Config bundles the connection parameters the constructor needs.
type Config struct {
	WSURL      string
	RESTURL    string
	Token      string
	TimeoutMs  int
	MaxRetries int
	RetryDelayMs int
}

// New builds a HomeAssistantGateway. It does not connect; call Connect.
func New(cfg Config) *HomeAssistantGateway {
	return &HomeAssistantGateway{
		wsURL:      cfg.WSURL,
		restURL:    cfg.RESTURL,
		token:      cfg.Token,
		timeout:    time.Duration(cfg.TimeoutMs) * time.Millisecond,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
	}
}

type haMessage struct {
	ID            int             `json:"id,omitempty"`
	Type          string          `json:"type"`
	AccessToken   string          `json:"access_token,omitempty"`
	EventType     string          `json:"event_type,omitempty"`
	Domain        string          `json:"domain,omitempty"`
	Service       string          `json:"service,omitempty"`
	ServiceData   map[string]any  `json:"service_data,omitempty"`
	Event         json.RawMessage `json:"event,omitempty"`
}

// Connect dials the WebSocket endpoint, authenticates, subscribes to
// state_changed events, and starts the read loop. It retries with
// exponential backoff bounded by maxRetries/retryDelayMs before giving
// up with a ConnectionError.
func (g *HomeAssistantGateway) Connect(ctx context.Context) error {
	var lastErr error
	delay := g.retryDelay
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("retrying home assistant connection")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &herrors.ConnectionError{Op: "connect", Err: ctx.Err()}
			}
			delay *= 2
		}

		if err := g.dialAndAuth(ctx); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return &herrors.ConnectionError{Op: "connect", Err: lastErr}
}

func (g *HomeAssistantGateway) dialAndAuth(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: g.timeout}
	conn, _, err := dialer.DialContext(ctx, g.wsURL, nil)
	if err != nil {
		return err
	}

	// auth_required -> auth -> auth_ok handshake
	var authRequired haMessage
	if err := conn.ReadJSON(&authRequired); err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteJSON(haMessage{Type: "auth", AccessToken: g.token}); err != nil {
		conn.Close()
		return err
	}
	var authResult haMessage
	if err := conn.ReadJSON(&authResult); err != nil {
		conn.Close()
		return err
	}
	if authResult.Type != "auth_ok" {
		conn.Close()
		return fmt.Errorf("home assistant auth failed: %s", authResult.Type)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	g.conn = conn
	g.cancel = cancel
	g.msgID = 1
	g.mu.Unlock()
	g.connected.Store(true)

	if err := g.subscribeLocked(); err != nil {
		g.connected.Store(false)
		conn.Close()
		cancel()
		return err
	}

	go g.readLoop(runCtx, conn)
	return nil
}

func (g *HomeAssistantGateway) subscribeLocked() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.msgID
	g.msgID++
	return g.conn.WriteJSON(haMessage{ID: id, Type: "subscribe_events", EventType: "state_changed"})
}

func (g *HomeAssistantGateway) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		g.connected.Store(false)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var msg haMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Error().Err(err).Msg("home assistant websocket read failed; connection lost")
			return
		}
		if msg.Type != "event" {
			continue
		}
		g.dispatchStateChanged(msg.Event)
	}
}

type haStateChangedPayload struct {
	Data struct {
		EntityID string `json:"entity_id"`
		NewState struct {
			State string `json:"state"`
		} `json:"new_state"`
		OldState struct {
			State string `json:"state"`
		} `json:"old_state"`
	} `json:"data"`
}

func (g *HomeAssistantGateway) dispatchStateChanged(raw json.RawMessage) {
	var payload haStateChangedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	evt := StateChangedEvent{
		EntityID: payload.Data.EntityID,
		NewState: payload.Data.NewState.State,
		OldState: payload.Data.OldState.State,
	}
	g.mu.Lock()
	handlers := make([]Handler, len(g.handlers))
	copy(handlers, g.handlers)
	g.mu.Unlock()
	for _, h := range handlers {
		if h != nil { // unsubscribed
			h(evt)
		}
	}
}

// SubscribeStateChanged registers a handler. Because Connect redials
// and re-subscribes on reconnect, every registered handler keeps
// receiving events across a reconnect without re-registering.
func (g *HomeAssistantGateway) SubscribeStateChanged(handler Handler) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, handler)
	idx := len(g.handlers) - 1
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.handlers[idx] = nil
	}, nil
}

func (g *HomeAssistantGateway) Connected() bool { return g.connected.Load() }

// Disconnect closes the websocket and stops the read loop. Idempotent.
func (g *HomeAssistantGateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		g.connected.Store(false)
		return err
	}
	return nil
}

// GetState performs a one-shot REST read.
func (g *HomeAssistantGateway) GetState(ctx context.Context, entityID string) (EntityState, error) {
	url := fmt.Sprintf("%s/states/%s", g.restURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return EntityState{}, &herrors.ConnectionError{Op: "getState", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return EntityState{}, &herrors.ConnectionError{Op: "getState", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return EntityState{}, entityNotFound(entityID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return EntityState{}, &herrors.ConnectionError{Op: "getState", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var parsed struct {
		State      string         `json:"state"`
		Attributes map[string]any `json:"attributes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return EntityState{}, &herrors.ConnectionError{Op: "getState", Err: err}
	}
	return EntityState{State: parsed.State, Attributes: parsed.Attributes}, nil
}

// CallService invokes a Home Assistant service over REST.
func (g *HomeAssistantGateway) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	url := fmt.Sprintf("%s/services/%s/%s", g.restURL, domain, service)
	body, err := json.Marshal(data)
	if err != nil {
		return &herrors.ServiceCallError{Domain: domain, Service: service, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return &herrors.ServiceCallError{Domain: domain, Service: service, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &herrors.ServiceCallError{Domain: domain, Service: service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &herrors.ServiceCallError{Domain: domain, Service: service, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}
	return nil
}

// ControlEntity is the Actuator's convenience wrapper around CallService.
func (g *HomeAssistantGateway) ControlEntity(ctx context.Context, entityID, domain, service, valueKey string, value any) error {
	data := map[string]any{"entity_id": entityID}
	if valueKey != "" {
		data[valueKey] = value
	}
	return g.CallService(ctx, domain, service, data)
}
