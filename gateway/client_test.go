package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autohedger-go/engine"
	"autohedger-go/market"
)

// wsTestServer upgrades one connection and pushes the given frames. With
// closeAfterWrite it hangs up right after; otherwise it records whatever
// the client writes back.
type wsTestServer struct {
	*httptest.Server

	inbound         []string
	closeAfterWrite bool
	received        chan []byte
	header          chan http.Header
}

func newWSTestServer(t *testing.T, closeAfterWrite bool, inbound ...string) *wsTestServer {
	t.Helper()
	s := &wsTestServer{
		inbound:         inbound,
		closeAfterWrite: closeAfterWrite,
		received:        make(chan []byte, 16),
		header:          make(chan http.Header, 1),
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.header <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, frame := range s.inbound {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}
		if s.closeAfterWrite {
			return
		}
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				close(s.received)
				return
			}
			s.received <- raw
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func wsURL(s *wsTestServer) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

type countingHandler struct {
	books       int
	disconnects int
}

func (h *countingHandler) OnOrderBook(market.BookUpdate) { h.books++ }

func (h *countingHandler) OnTradeTicks(market.TradeTicks) {}

func (h *countingHandler) OnOrderFilled(uint64, int64, int64) {}

func (h *countingHandler) OnOrderStatus(uint64, int64, int64, int64) {}

func (h *countingHandler) OnError(uint64, string) {}

func (h *countingHandler) OnHedgeFilled(uint64, int64, int64) {}

func (h *countingHandler) OnDisconnect() { h.disconnects++ }

const bookFrame = `{"type":"order_book","data":{"instrument":"FUT","sequence":1,"askPrices":[10000],"askVolumes":[50],"bidPrices":[9900],"bidVolumes":[50]}}`

func TestClientRunDispatchesAndSignalsDisconnect(t *testing.T) {
	srv := newWSTestServer(t, true, bookFrame)
	c := NewClient(wsURL(srv), "secret", zap.NewNop())
	require.NoError(t, c.Connect())

	h := &countingHandler{}
	err := c.Run(h)

	assert.Error(t, err)
	assert.Equal(t, 1, h.books)
	assert.Equal(t, 1, h.disconnects)

	hdr := <-srv.header
	assert.Equal(t, "secret", hdr.Get("X-Api-Key"))
}

func TestClientJournalsInboundFrames(t *testing.T) {
	srv := newWSTestServer(t, true, bookFrame)
	c := NewClient(wsURL(srv), "", zap.NewNop())
	var journal bytes.Buffer
	c.Journal = &journal
	require.NoError(t, c.Connect())

	_ = c.Run(&countingHandler{})

	assert.Equal(t, bookFrame+"\n", journal.String())
}

func TestClientSubmitOrderWritesInsertFrame(t *testing.T) {
	srv := newWSTestServer(t, false)
	c := NewClient(wsURL(srv), "", zap.NewNop())
	require.NoError(t, c.Connect())
	defer c.Close()

	require.NoError(t, c.SubmitOrder(7, engine.SideBuy, 9900, 25, engine.LifespanGoodForDay))

	raw := <-srv.received
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, TypeInsertOrder, env.Type)

	var f InsertFrame
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, InsertFrame{OrderID: 7, Side: "BUY", Price: 9900, Volume: 25, Lifespan: "GFD"}, f)
}

func TestClientHedgeOrderWritesHedgeFrame(t *testing.T) {
	srv := newWSTestServer(t, false)
	c := NewClient(wsURL(srv), "", zap.NewNop())
	require.NoError(t, c.Connect())
	defer c.Close()

	require.NoError(t, c.SubmitHedgeOrder(9, engine.SideSell, 100, 30))

	raw := <-srv.received
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, TypeHedgeOrder, env.Type)
}

// Shutdown pattern used by cmd/trader: a watcher goroutine closes the
// connection to unblock Run, and the trader is only touched again on the
// dispatching goroutine once Run has returned. The race detector flags any
// regression that calls into the trader while Run is still delivering.
func TestClientCloseUnblocksRunBeforeShutdownCancel(t *testing.T) {
	srv := newWSTestServer(t, false, bookFrame)
	c := NewClient(wsURL(srv), "", zap.NewNop())
	require.NoError(t, c.Connect())

	trader, err := engine.New(engine.Config{
		QuotedInstrument: market.Instrument("FUT"),
		HedgeInstrument:  market.Instrument("ETF"),
		PositionLimit:    100,
		TickSize:         100,
		MaxUnhedgedLots:  10,
		UnhedgedGrace:    time.Minute,
		MinimumBid:       1,
		MaximumAsk:       200000,
	}, c, zap.NewNop())
	require.NoError(t, err)

	go func() {
		// Wait until the book update produced both quote inserts, then
		// hang up the way the signal watcher does.
		<-srv.received
		<-srv.received
		c.Close()
	}()

	assert.Error(t, c.Run(trader))
	trader.CancelAll()
}

func TestClientSendRequiresConnection(t *testing.T) {
	c := NewClient("ws://unused", "", zap.NewNop())
	assert.Error(t, c.CancelOrder(1))
	assert.Error(t, c.Run(&countingHandler{}))
}
