// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidPacket marks a frame that is not a well-formed envelope.
	// The connection stays usable.
	ErrInvalidPacket = errors.New("invalid packet")
	// ErrSendBufferFull is returned when a slow client falls behind; the
	// connection is closed.
	ErrSendBufferFull = errors.New("send buffer full")
	ErrClosed         = errors.New("connection closed")
)

const (
	writeWait         = 10 * time.Second
	defaultSendBuffer = 64
)

type Packet struct {
	Event string
	Data  []byte // raw JSON of the "data" member, empty when absent
}

// Field returns a top-level field of the packet data.
func (p *Packet) Field(path string) gjson.Result {
	if len(p.Data) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(p.Data, path)
}

type Connection interface {
	Send(event string, payload any) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadPacket() (*Packet, error)
}

// DecodePacket parses an inbound text frame.
func DecodePacket(frame []byte) (*Packet, error) {
	if !gjson.ValidBytes(frame) {
		return nil, ErrInvalidPacket
	}
	event := gjson.GetBytes(frame, "event")
	if event.Type != gjson.String || event.Str == "" {
		return nil, ErrInvalidPacket
	}
	p := &Packet{Event: event.Str}
	if data := gjson.GetBytes(frame, "data"); data.Exists() {
		p.Data = []byte(data.Raw)
	}
	return p, nil
}

// EncodePacket builds an outbound frame.
func EncodePacket(event string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{Event: event, Data: payload})
}

// WSConnection wraps a gorilla connection. Reads happen on the caller's
// goroutine; writes go through a buffered channel drained by writePump.
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	heartbeat chan time.Duration
}

func NewWSConnection(conn *websocket.Conn, sendBuffer int) *WSConnection {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	c := &WSConnection{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		heartbeat: make(chan time.Duration, 1),
	}
	go c.writePump()
	return c
}

// Send never blocks. A full buffer closes the connection.
func (c *WSConnection) Send(event string, payload any) error {
	data, err := EncodePacket(event, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		c.Close()
		return ErrSendBufferFull
	}
}

func (c *WSConnection) ReadPacket() (*Packet, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return DecodePacket(data)
	}
}

// SetHeartbeat enables ping frames every interval and drops the peer if
// nothing arrives for twice that long.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})

	select {
	case c.heartbeat <- interval:
	default:
	}
}

func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) writePump() {
	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		c.conn.Close()
	}()

	for {
		select {
		case interval := <-c.heartbeat:
			if ticker != nil {
				ticker.Stop()
			}
			ticker = time.NewTicker(interval)
			tick = ticker.C
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-tick:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued before the close frame.
func (c *WSConnection) flush() {
	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
