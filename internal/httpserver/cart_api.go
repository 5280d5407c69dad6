package httpserver

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"yogurt-storefront/internal/domain"
)

const eventsHeartbeat = 25 * time.Second

type addItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *handlers) apiCart(c *gin.Context) {
	c.JSON(http.StatusOK, toCartResponse(cartFrom(c).Cart()))
}

func (h *handlers) apiAddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "product_id is required"})
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
		if quantity < 1 || quantity > domain.MaxQuantity {
			c.JSON(http.StatusBadRequest, gin.H{"message": msgQuantityRange})
			return
		}
	}
	if !h.addProduct(c, req.ProductID, quantity) {
		return
	}
	c.JSON(http.StatusOK, toCartResponse(cartFrom(c).Cart()))
}

func (h *handlers) apiSetQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "quantity is required"})
		return
	}
	if *req.Quantity > domain.MaxQuantity {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgQuantityRange})
		return
	}
	store := cartFrom(c)
	store.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	c.JSON(http.StatusOK, toCartResponse(store.Cart()))
}

func (h *handlers) apiRemoveItem(c *gin.Context) {
	store := cartFrom(c)
	store.RemoveItem(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, toCartResponse(store.Cart()))
}

func (h *handlers) apiClear(c *gin.Context) {
	store := cartFrom(c)
	store.Clear(c.Request.Context())
	c.JSON(http.StatusOK, toCartResponse(store.Cart()))
}

// cartEvents streams the session cart as server-sent events: the current
// cart first, then one event per mutation. A slow client only sees the
// latest cart.
func (h *handlers) cartEvents(c *gin.Context) {
	store := cartFrom(c)
	updates := make(chan domain.Cart, 1)
	cancel := store.Subscribe(func(cart domain.Cart) {
		select {
		case updates <- cart:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- cart:
			default:
			}
		}
	})
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("cart", toCartResponse(store.Cart()))
	c.Writer.Flush()

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case cart := <-updates:
			c.SSEvent("cart", toCartResponse(cart))
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		}
	})
}
