package httpserver

import (
	"github.com/gin-gonic/gin"

	"redbead/internal/session"
)

// serveWS upgrades the request and runs one session mount until the
// connection drops.
func (h *handlers) serveWS(c *gin.Context) {
	storage, ok := h.deviceStorage(c)
	if !ok {
		return
	}
	deviceID, _ := deviceIDFrom(c)
	logger := h.deps.Logger.With().Str("component", "session").Str("device_id", deviceID).Logger()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := session.NewClient(conn, logger)
	shell := session.New(session.Deps{
		Backend:      h.deps.Backend(c.Request),
		Storage:      storage,
		CookieHeader: c.GetHeader("Cookie"),
		Carts:        h.deps.Carts,
		Emitter:      client,
		Clock:        h.deps.Clock,
		Options:      session.OptionsFromConfig(h.deps.Config),
		Logger:       logger,
	})

	h.deps.Mounts.add(client)
	defer h.deps.Mounts.remove(client)

	go client.WritePump()
	logger.Info().Msg("session mounted")
	shell.Open()

	client.ReadPump(shell.Handle)

	shell.Close()
	client.Close()
	logger.Info().Msg("session unmounted")
}
