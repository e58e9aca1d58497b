package ws

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

// Upgrader wraps websocket.Upgrader with the permissive CORS check the rest
// of the HTTP surface already applies at the middleware layer; the upgrade
// itself does not re-check origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler upgrades a request to a WebSocket connection and serves it
// against hub until the socket closes. Mount at the §6 "/api/v2/ws" route.
func Handler(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws: upgrade failed", "error", err)
			return
		}
		NewConn(hub, socket, logger).Serve()
	}
}

// Events enumerates the §4.8 publish event names, for callers constructing
// an Event rather than typing the string by hand.
const (
	EventTaskClaimed         = "task-claimed"
	EventTaskReleased        = "task-released"
	EventTaskCompleted       = "task-completed"
	EventReviewRequested     = "review-requested"
	EventReviewCompleted     = "review-completed"
	EventNotificationCreated = "notification-created"
)

// TaskTopic, ChallengeTopic, and UserTopic format the three parameterised
// §4.8 topic shapes; GlobalTopic is the fourth, unparameterised one.
func TaskTopic(taskID int64) string           { return topic("task", taskID) }
func ChallengeTopic(challengeID int64) string { return topic("challenge", challengeID) }
func UserTopic(userID int64) string           { return topic("user", userID) }

const GlobalTopic = "global"

func topic(prefix string, id int64) string {
	return prefix + ":" + strconv.FormatInt(id, 10)
}
