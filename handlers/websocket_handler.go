package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ValeryMukhin1712/tournaments-sub001/live"
	"github.com/ValeryMukhin1712/tournaments-sub001/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin,
		// чтобы разрешать подключения только с доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub            *live.Hub
	scoringService services.ScoringService
	logger         *slog.Logger
}

func NewWebSocketHandler(hub *live.Hub, scoringService services.ScoringService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		scoringService: scoringService,
		logger:         logger,
	}
}

// ServeWs обрабатывает WebSocket подключения табло и судейских консолей.
// Клиент подключается к /ws/matches/{matchID} и сразу получает текущее
// состояние матча, дальше — только обновления после каждого розыгрыша.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	// Проверяем, что матч существует, до апгрейда соединения: так клиент
	// получит обычную HTTP-ошибку вместо обрыва WebSocket.
	view, err := h.scoringService.GetMatchView(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.Int("match_id", matchID), slog.Any("error", err))
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту, так что здесь просто логируем.
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: live.MatchRoom(matchID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// Снимок состояния сразу после подключения, чтобы табло не ждало
	// следующего розыгрыша. Отправляем только этому клиенту.
	snapshot := live.Message{Type: "SCORE_SNAPSHOT", Payload: view, Room: client.Room}
	if messageBytes, marshalErr := json.Marshal(snapshot); marshalErr == nil {
		client.Send <- messageBytes
	}

	h.logger.Info("websocket client registered", slog.Int("match_id", matchID))
}
