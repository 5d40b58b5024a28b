package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/emr/console/internal/platform/transport"
)

// RequestIDHeader is read from incoming requests and echoed on responses.
const RequestIDHeader = transport.RequestIDHeader

// RequestID assigns every request an id, reusing the caller's X-Request-ID
// when present. The id is stored under "request_id" and attached to the
// request context so backend calls made while serving it carry the same id.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}

			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			c.SetRequest(req.WithContext(transport.ContextWithRequestID(req.Context(), rid)))

			return next(c)
		}
	}
}
