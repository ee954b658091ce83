package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a connection to the session's room and blocks until it
// closes. A non-nil greeting is sent before any relayed event.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, greeting []byte) {
	client := NewClient(hub, c, sessionID)
	if greeting != nil {
		client.Send <- greeting
	}
	hub.Register(client)

	go client.writePump()
	client.readPump()
}
