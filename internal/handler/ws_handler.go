package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/adonhq/assessment-backend/internal/response"
	"github.com/adonhq/assessment-backend/internal/service"
	ws "github.com/adonhq/assessment-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const tickInterval = time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// PhaseCountdown is the part of the controller the countdown stream needs.
type PhaseCountdown interface {
	StartPhase(ctx context.Context, phase model.Phase, examinationID string) (*service.PhaseTimer, error)
	PhaseTimer(ctx context.Context, phase model.Phase, examinationID string) (*service.PhaseTimer, error)
}

// WSHandler streams phase countdowns over WebSocket.
type WSHandler struct {
	session  PhaseCountdown
	log      zerolog.Logger
	upgrader websocket.Upgrader
	tick     time.Duration
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(session PhaseCountdown, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		session:  session,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		tick:     tickInterval,
	}
}

// CountdownStream godoc
// WS /ws/v1/exams/:examination_id/phases/:phase/countdown
// Starts the phase clock if needed and pushes the remaining time every
// second until the phase is submitted, the time runs out or the client
// disconnects.
func (h *WSHandler) CountdownStream(c *gin.Context) {
	id := c.Param("examination_id")
	phase, err := model.ParsePhase(c.Param("phase"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phase"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("examination_id", id).
		Int("phase", int(phase)).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	timer, err := h.session.StartPhase(ctx, phase, id)
	if err != nil {
		f := classify(phase, err)
		wsLog.Debug().Err(err).Str("code", string(f.code)).Msg("Countdown refused")
		ws.WriteError(conn, string(f.code), messageOf(f))
		ws.Close(conn, string(f.code))
		return
	}
	wsLog.Debug().Msg("Countdown stream opened")

	ws.KeepAlive(conn)
	pongs := make(chan struct{}, 1)
	go h.readLoop(conn, cancel, pongs)

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()
	keepalive := time.NewTicker(ws.PingPeriod)
	defer keepalive.Stop()

	for {
		if timer.Submitted {
			ws.WriteTyped(conn, ws.StatusResponse{Event: ws.EventSubmitted, Phase: int(phase)})
			ws.Close(conn, "submitted")
			return
		}
		if !timer.Started {
			wsLog.Warn().Msg("Phase clock disappeared before submission")
			ws.WriteTyped(conn, ws.StatusResponse{Event: ws.EventClockLost, Phase: int(phase)})
			ws.Close(conn, "clock lost")
			return
		}
		if err := ws.WriteTyped(conn, ws.TickResponse{
			Event:            ws.EventTick,
			Phase:            int(phase),
			RemainingSeconds: timer.RemainingSeconds,
			DurationSeconds:  timer.DurationSeconds,
		}); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing stream")
			return
		}
		if timer.Expired {
			ws.WriteTyped(conn, ws.StatusResponse{Event: ws.EventExpired, Phase: int(phase)})
			ws.Close(conn, "expired")
			return
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				wsLog.Debug().Msg("Client disconnected")
				return
			case <-pongs:
				ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			case <-keepalive.C:
				if err := ws.Ping(conn); err != nil {
					wsLog.Debug().Err(err).Msg("Ping failed, closing stream")
					return
				}
			case <-ticker.C:
				break wait
			}
		}

		timer, err = h.session.PhaseTimer(ctx, phase, id)
		if err != nil {
			f := classify(phase, err)
			wsLog.Warn().Err(err).Msg("Countdown read failed")
			ws.WriteError(conn, string(f.code), messageOf(f))
			ws.Close(conn, string(f.code))
			return
		}
	}
}

// readLoop consumes client frames so control messages are processed, and
// cancels the stream once the client goes away.
func (h *WSHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, pongs chan<- struct{}) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			return
		}
		if msg.Action == ws.ActionPing {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

func messageOf(f sessionFailure) string {
	if f.message != "" {
		return f.message
	}
	return response.GetMessage(f.code)
}
