package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"autohedger-go/engine"
)

// Client is a JSON-over-WebSocket connection to the execution gateway. It
// implements engine.Gateway for outbound commands and pumps inbound frames
// into an EventHandler from a single read goroutine, which is what gives
// the engine its serial execution model.
type Client struct {
	URL     string
	APIKey  string
	Dialer  *websocket.Dialer
	Limiter RateLimiter
	Log     *zap.Logger

	// Journal, when set, receives every inbound frame as one JSONL line
	// before dispatch. The resulting capture replays through the sim.
	Journal io.Writer

	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient builds an unconnected client.
func NewClient(url, apiKey string, log *zap.Logger) *Client {
	return &Client{
		URL:    url,
		APIKey: apiKey,
		Dialer: websocket.DefaultDialer,
		Log:    log,
	}
}

// Connect dials the gateway. The API key travels in a header so it never
// appears in the URL.
func (c *Client) Connect() error {
	header := http.Header{}
	if c.APIKey != "" {
		header.Set("X-Api-Key", c.APIKey)
	}
	conn, _, err := c.Dialer.Dial(c.URL, header)
	if err != nil {
		return fmt.Errorf("dial execution gateway: %w", err)
	}
	c.conn = conn
	return nil
}

// Run reads frames until the connection drops, dispatching each one
// synchronously into h. On a read error it signals OnDisconnect and
// returns; reconnecting is the caller's decision.
func (c *Client) Run(h EventHandler) error {
	if c.conn == nil {
		return fmt.Errorf("client not connected")
	}
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			h.OnDisconnect()
			return fmt.Errorf("read frame: %w", err)
		}
		if c.Journal != nil {
			if _, err := c.Journal.Write(append(raw, '\n')); err != nil {
				c.Log.Warn("journal write failed", zap.Error(err))
			}
		}
		if err := Dispatch(raw, h); err != nil {
			c.Log.Warn("frame dropped", zap.Error(err))
		}
	}
}

// Close tears down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) send(frameType string, payload any) error {
	if c.conn == nil {
		return fmt.Errorf("client not connected")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frameType, err)
	}
	frame, err := json.Marshal(Envelope{Type: frameType, Data: data})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", frameType, err)
	}
	return nil
}

// SubmitOrder implements engine.Gateway.
func (c *Client) SubmitOrder(orderID uint64, side engine.Side, price, volume int64, lifespan engine.Lifespan) error {
	return c.send(TypeInsertOrder, InsertFrame{
		OrderID:  orderID,
		Side:     side.String(),
		Price:    price,
		Volume:   volume,
		Lifespan: lifespan.String(),
	})
}

// CancelOrder implements engine.Gateway.
func (c *Client) CancelOrder(orderID uint64) error {
	return c.send(TypeCancelOrder, CancelFrame{OrderID: orderID})
}

// SubmitHedgeOrder implements engine.Gateway.
func (c *Client) SubmitHedgeOrder(orderID uint64, side engine.Side, price, volume int64) error {
	return c.send(TypeHedgeOrder, HedgeFrame{
		OrderID: orderID,
		Side:    side.String(),
		Price:   price,
		Volume:  volume,
	})
}
