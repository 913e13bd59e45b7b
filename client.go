package main

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 150 // playerMove alone can legitimately reach ~120/s

	// App-level latency probe, distinct from the ws keepalive ping.
	// Informational only; never gates gameplay.
	latencyProbePeriod = 5 * time.Second
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string // connection identifier
	remoteAddr string

	// set from the read goroutine only
	match *Match
	slot  int

	msgCount   int
	msgResetAt time.Time

	// probe send time in unix nanos; written by WritePump, read by ReadPump
	probeSentAt atomic.Int64
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugw("ws error", "conn", c.id, "err", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			Log.Warnw("rate limit exceeded, disconnecting", "conn", c.id, "addr", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	probe := time.NewTicker(latencyProbePeriod)
	defer func() {
		ticker.Stop()
		probe.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-probe.C:
			c.probeSentAt.Store(time.Now().UnixNano())
			data, _ := json.Marshal(Envelope{T: MsgPing})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		Log.Errorw("marshal error", "err", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		Log.Debugw("unmarshal error", "conn", c.id, "err", err)
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "malformed message"}})
		return
	}

	switch env.T {
	case MsgJoinMatch:
		c.handleJoin(env.D)
	case MsgPlayerReady:
		c.handleReady(env.D)
	case MsgPlayerMove:
		c.handleMove(env.D)
	case MsgPuckUpdate:
		c.handlePuckUpdate(env.D)
	case MsgRequestReset:
		c.handleReset()
	case MsgGoalScored:
		c.handleGoalScored(env.D)
	case MsgPong:
		c.handlePong()
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMatchMsg
	if err := json.Unmarshal(data, &msg); err != nil || msg.MatchID == "" {
		c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{Success: false, Error: "missing match id"}})
		return
	}
	if c.match != nil {
		c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{Success: false, Error: "already in a match"}})
		return
	}

	m := c.hub.store.GetOrCreate(msg.MatchID)
	slot, count, err := m.Join(c)
	if err != nil {
		c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{Success: false, Error: err.Error()}})
		return
	}
	c.match = m
	c.slot = slot
	Log.Infow("player joined", "match", m.ID, "slot", slot, "conn", c.id)
	c.SendJSON(Envelope{T: MsgJoined, Data: JoinedMsg{
		Success:      true,
		PlayerNumber: slot,
		PlayersCount: count,
	}})
}

func (c *Client) handleReady(data json.RawMessage) {
	if c.match == nil {
		return
	}
	var msg PlayerReadyMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.match.Ready(c.slot, msg.CanvasSize)
}

func (c *Client) handleMove(data json.RawMessage) {
	if c.match == nil {
		return
	}
	var msg PlayerMoveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.match.HandleMove(c.slot, msg.Position, msg.Timestamp)
}

func (c *Client) handlePuckUpdate(data json.RawMessage) {
	if c.match == nil {
		return
	}
	var msg PuckUpdateMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.match.HandlePuckUpdate(c.slot, msg)
}

func (c *Client) handleReset() {
	if c.match == nil {
		return
	}
	c.match.Reset()
}

func (c *Client) handleGoalScored(data json.RawMessage) {
	if c.match == nil {
		return
	}
	var msg GoalScoredMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.match.HandleGoal(msg.Scorer)
}

func (c *Client) handlePong() {
	sent := c.probeSentAt.Swap(0)
	if sent == 0 {
		return
	}
	rtt := time.Since(time.Unix(0, sent))
	if c.match != nil {
		c.match.SetLatency(c.slot, rtt)
	}
	c.SendJSON(Envelope{T: MsgLatencyUpdate, Data: LatencyUpdateMsg{Latency: rtt.Milliseconds()}})
}

// leaveMatch detaches the client from its match, if any
func (c *Client) leaveMatch() {
	if c.match == nil {
		return
	}
	c.match.Leave(c.slot)
	c.match = nil
	c.slot = 0
}
