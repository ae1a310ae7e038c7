// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The daemon listens on loopback only.
		return true
	},
}

// updateEvent is the JSON envelope pushed to websocket clients.
type updateEvent struct {
	Type string `json:"type"`

	NumPending  int `json:"numPending,omitempty"`
	NumExecuted int `json:"numExecuted,omitempty"`

	Message string `json:"message,omitempty"`

	Price decimal.Decimal `json:"price,omitempty"`
	At    time.Time       `json:"at,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans broadcast messages out to the connected websocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client; drop the message.
					slog.Warn("dropping websocket message for slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *hub) publish(event *updateEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("could not marshal websocket event (ignored)", "err", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

func (h *hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("could not upgrade websocket connection", "err", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	h.register <- c

	go c.writeLoop()
	go c.readLoop(h)
}

// readLoop discards client frames; the feed is one-way. It exists to observe
// the connection close and service pongs.
func (c *wsClient) readLoop(h *hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// feedUpdates forwards order, status and price notifications to the websocket
// hub until the context is canceled.
func (s *Server) feedUpdates(ctx context.Context) {
	orders, err := s.book.Updates()
	if err != nil {
		slog.Error("could not subscribe to order updates", "err", err)
		return
	}
	defer orders.Close()

	statuses, err := s.monitor.StatusUpdates()
	if err != nil {
		slog.Error("could not subscribe to status updates", "err", err)
		return
	}
	defer statuses.Close()

	prices, err := s.monitor.PriceUpdates()
	if err != nil {
		slog.Error("could not subscribe to price updates", "err", err)
		return
	}
	defer prices.Close()

	ordersCh, err := topic.ReceiveCh(orders)
	if err != nil {
		slog.Error("could not open order updates channel", "err", err)
		return
	}
	statusCh, err := topic.ReceiveCh(statuses)
	if err != nil {
		slog.Error("could not open status updates channel", "err", err)
		return
	}
	priceCh, err := topic.ReceiveCh(prices)
	if err != nil {
		slog.Error("could not open price updates channel", "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case update := <-ordersCh:
			s.hub.publish(&updateEvent{
				Type:        "orders",
				NumPending:  update.NumPending,
				NumExecuted: update.NumExecuted,
			})

		case status := <-statusCh:
			s.hub.publish(&updateEvent{
				Type:    "status",
				Message: status,
			})

		case sample := <-priceCh:
			s.hub.publish(&updateEvent{
				Type:  "price",
				Price: sample.Price,
				At:    sample.At,
			})
		}
	}
}
