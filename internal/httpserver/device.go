package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"redbead/internal/pkg/errs"
	"redbead/internal/repository/kv"
)

const (
	deviceCookie = "rb-device-id"
	deviceCtxKey = "deviceID"
	// one year
	deviceCookieMaxAge = 365 * 24 * 60 * 60
)

// deviceMiddleware pins every request to a device id, issuing one when the
// cookie is missing or malformed. Client storage is scoped by it.
func deviceMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(deviceCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     deviceCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   deviceCookieMaxAge,
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(deviceCtxKey, id)
		c.Next()
	}
}

func deviceIDFrom(c *gin.Context) (string, bool) {
	id := c.GetString(deviceCtxKey)
	return id, id != ""
}

// deviceStorage is the client storage of the request's device.
func (h *handlers) deviceStorage(c *gin.Context) (kv.Store, bool) {
	id, ok := deviceIDFrom(c)
	if !ok {
		respondError(c, errs.NewError(errs.ErrDeviceMissing))
		return nil, false
	}
	return kv.Scoped(h.deps.Storage, "device", id), true
}
