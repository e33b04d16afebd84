package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// PongWait bounds how long a peer may stay silent. PingPeriod must be
	// shorter so a live client always answers in time.
	PongWait   = 60 * time.Second
	PingPeriod = PongWait * 9 / 10
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, code, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// KeepAlive arms the read deadline and extends it on every pong, so a
// client that only listens is not dropped while it keeps answering pings.
func KeepAlive(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})
}

// Ping sends a protocol-level ping.
func Ping(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// ReadJSON decodes the next client message. Any message counts as a sign of
// life and extends the read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	if err := conn.ReadJSON(v); err != nil {
		return err
	}
	return conn.SetReadDeadline(time.Now().Add(PongWait))
}

// Close sends a normal close frame before closing the connection.
func Close(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
