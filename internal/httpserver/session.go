package httpserver

import (
	"github.com/gin-gonic/gin"

	"yogurt-storefront/internal/cart"
	"yogurt-storefront/internal/service/session"
)

const cartCtxKey = "cart"

// sessionMiddleware makes sure every request carries a session cookie and
// attaches that session's cart store.
func sessionMiddleware(sessions *session.Service, carts Carts) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := sessions.Ensure(c.Writer, c.Request)
		c.Set(cartCtxKey, carts.Get(c.Request.Context(), id))
		c.Next()
	}
}

func cartFrom(c *gin.Context) *cart.Store {
	return c.MustGet(cartCtxKey).(*cart.Store)
}
