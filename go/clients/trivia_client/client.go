package trivia_client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/trivia/go/clients"
	"github.com/mcdev12/trivia/go/internal/commander"
	"github.com/mcdev12/trivia/go/internal/trivia/events"
	"github.com/mcdev12/trivia/go/internal/trivia/gateway"
)

const writeTimeout = 10 * time.Second

// ErrClosed is returned when sending on a closed client
var ErrClosed = errors.New("trivia client closed")

// Client is a display or player connection to a trivia server. Incoming
// events are dispatched as commands through Chain; the projection sits at the
// bottom of the chain, so a handler that stops an event hides it from the
// projection.
type Client struct {
	role gateway.Role
	conn *websocket.Conn
	rest *clients.BaseClient

	chain      *commander.Chain
	projection *Projection

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// Dial connects to the server at baseURL (http or https) as role
func Dial(ctx context.Context, baseURL string, role gateway.Role) (*Client, error) {
	wsURL, err := socketURL(baseURL, role)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	rest := clients.NewBaseClient(baseURL)
	rest.SetTimeout(writeTimeout)

	c := &Client{
		role:       role,
		conn:       conn,
		rest:       rest,
		chain:      commander.NewChain("client:" + string(role)),
		projection: NewProjection(),
		closed:     make(chan struct{}),
	}
	c.chain.Push(commander.OnCommand("projection", c.project))

	log.Debug().Str("url", wsURL).Str("role", string(role)).Msg("connected to trivia server")
	return c, nil
}

func socketURL(baseURL string, role gateway.Role) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/trivia"
	u.RawQuery = url.Values{"role": {string(role)}}.Encode()
	return u.String(), nil
}

func (c *Client) project(cmd commander.Command) commander.Propagation {
	env := cmd.Payload.(events.Envelope)
	if err := c.projection.Apply(env); err != nil {
		log.Warn().Err(err).Str("event_type", cmd.Type).Msg("failed to apply event")
	}
	return commander.Continue
}

// Chain is where callers push their own event handlers. Command payloads are
// events.Envelope values.
func (c *Client) Chain() *commander.Chain { return c.chain }

// Projection returns the client's view of the session
func (c *Client) Projection() *Projection { return c.projection }

// Role returns the role the client connected as
func (c *Client) Role() gateway.Role { return c.role }

// Run reads events until the connection closes or ctx is done
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return ctx.Err()
			default:
			}
			c.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		env, err := events.Decode(frame)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed server frame")
			continue
		}
		c.chain.DispatchCommand(commander.Command{Type: string(env.Type), Payload: env})
	}
}

// Send writes an event to the server
func (c *Client) Send(ev events.Event) error {
	frame, err := events.Encode(ev)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", ev.Type, err)
	}
	return nil
}

// Join connects a player under name
func (c *Client) Join(name string) error {
	return c.Send(events.Event{Type: events.UserConnect, Data: events.UserConnectPayload{Name: name}})
}

// Answer submits the index of the chosen answer
func (c *Client) Answer(index int) error {
	return c.Send(events.Event{Type: events.UserAnswered, Data: events.AnswerOf(index)})
}

// RegisterDisplay announces a display client; the first one creates the session
func (c *Client) RegisterDisplay() error {
	return c.Send(events.Event{Type: events.DisplayRegister})
}

func (c *Client) StartGame() error {
	return c.Send(events.Event{Type: events.GameStart})
}

func (c *Client) CloseQuestion() error {
	return c.Send(events.Event{Type: events.QuestionClose})
}

func (c *Client) NextQuestion() error {
	return c.Send(events.Event{Type: events.QuestionNext})
}

func (c *Client) Regenerate() error {
	return c.Send(events.Event{Type: events.SessionRegenerate})
}

// SessionState fetches the live session state over HTTP
func (c *Client) SessionState(ctx context.Context) (gateway.SessionStateResponse, error) {
	var state gateway.SessionStateResponse
	err := c.rest.GetJSON(ctx, "/api/session/state", &state)
	return state, err
}

// Results fetches the most recent archived question results
func (c *Client) Results(ctx context.Context, limit int) ([]gateway.QuestionResultInfo, error) {
	var out []gateway.QuestionResultInfo
	err := c.rest.GetJSON(ctx, fmt.Sprintf("/api/results?limit=%d", limit), &out)
	return out, err
}

// Close sends a close frame and shuts the connection down
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
