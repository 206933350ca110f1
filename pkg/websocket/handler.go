package websocket

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeWS upgrades the request and attaches the client to the hub. The
// caller has already authenticated the user and resolved its role.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, role string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := newClient(conn, userID, role)
	hub.register <- client

	go client.writePump()
	go client.readPump(hub)

	return nil
}
