package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/polkiloo/fooddelivery/internal/pkg/auth"
	"github.com/polkiloo/fooddelivery/internal/relay"
	"github.com/polkiloo/fooddelivery/internal/server/http/dto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	noticeBuffer   = 4
)

// RelayHandler streams live driver locations over WebSocket.
type RelayHandler struct {
	hub      RelayHub
	tokens   RoomTokenVerifier
	access   RelayAuthorizer
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewRelayHandler constructs RelayHandler.
func NewRelayHandler(hub RelayHub, tokens RoomTokenVerifier, access RelayAuthorizer, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		hub:    hub,
		tokens: tokens,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles GET /ws/deliveries/:id/location?token=. Drivers publish
// {latitude, longitude} frames; every member of the room receives them.
func (h *RelayHandler) Stream(c *gin.Context) {
	deliveryID := c.Param("id")
	claims, err := h.tokens.Verify(c.Query("token"))
	if err != nil || claims.DeliveryID != deliveryID {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid relay token"})
		return
	}

	sub, err := h.hub.Join(deliveryID, relay.Member{
		Subject:   claims.Subject,
		Publisher: claims.Role == auth.RelayRoleDriver,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
		return
	}

	// Checked after joining so a revocation racing this request closes the
	// subscription instead of missing it.
	if err := h.access.AuthorizeRelay(c.Request.Context(), claims); err != nil {
		sub.Close()
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn("relay upgrade failed", slog.String("delivery_id", deliveryID), slog.Any("error", err))
		return
	}

	h.logger.Info("relay connected",
		slog.String("delivery_id", deliveryID),
		slog.String("subject", claims.Subject),
		slog.String("role", string(claims.Role)),
	)
	h.serve(c.Request.Context(), conn, sub, claims)
	h.logger.Info("relay disconnected",
		slog.String("delivery_id", deliveryID),
		slog.String("subject", claims.Subject),
		slog.Bool("evicted", sub.Evicted()),
	)
}

func (h *RelayHandler) serve(ctx context.Context, conn *websocket.Conn, sub *relay.Subscription, claims auth.RoomClaims) {
	defer sub.Close()
	defer conn.Close()

	notices := make(chan string, noticeBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(ctx, conn, sub, claims, notices)
	}()
	h.writeLoop(conn, sub, notices, done)
}

// readLoop owns reads on conn. Problems with a frame are reported back to
// the client as notices and never end the session.
func (h *RelayHandler) readLoop(ctx context.Context, conn *websocket.Conn, sub *relay.Subscription, claims auth.RoomClaims, notices chan<- string) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	notify := func(msg string) {
		select {
		case notices <- msg:
		default:
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("relay read ended", slog.String("delivery_id", claims.DeliveryID), slog.Any("error", err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if claims.Role != auth.RelayRoleDriver {
			notify("only the assigned driver may publish")
			continue
		}

		var loc relay.Location
		if err := json.Unmarshal(data, &loc); err != nil {
			notify("malformed location")
			continue
		}

		publishCtx, cancel := context.WithTimeout(ctx, writeWait)
		err = sub.Publish(publishCtx, loc)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, relay.ErrClosed), errors.Is(err, relay.ErrPublisherRevoked):
			return
		default:
			notify(err.Error())
		}
	}
}

// writeLoop is the only writer on conn.
func (h *RelayHandler) writeLoop(conn *websocket.Conn, sub *relay.Subscription, notices <-chan string, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case loc, ok := <-sub.Updates():
			if !ok {
				code, reason := websocket.CloseGoingAway, "relay closed"
				switch {
				case sub.Revoked():
					code, reason = websocket.ClosePolicyViolation, "delivery reassigned"
				case sub.Evicted():
					code, reason = websocket.CloseTryAgainLater, "subscriber too slow"
				}
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(loc); err != nil {
				return
			}
		case msg := <-notices:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(dto.ErrorResponse{Error: msg}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
