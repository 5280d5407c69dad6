package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"yogurt-storefront/internal/cart"
	"yogurt-storefront/internal/domain"
	"yogurt-storefront/internal/service/checkout"
	"yogurt-storefront/internal/service/order"
)

const (
	msgCatalogUnavailable = "We couldn't load products right now. Please try again."
	msgOrderUnavailable   = "We couldn't load this order right now. Please try again."
	msgSubmitFailed       = "We couldn't place your order. Your cart is saved, please try again."
)

var msgQuantityRange = fmt.Sprintf("Quantity must be a whole number from 1 to %d.", domain.MaxQuantity)

func (h *handlers) render(c *gin.Context, status int, name string, data gin.H) {
	if _, ok := data["CartCount"]; !ok {
		if v, exists := c.Get(cartCtxKey); exists {
			data["CartCount"] = v.(*cart.Store).TotalQuantity()
		} else {
			data["CartCount"] = 0
		}
	}
	c.HTML(status, name, data)
}

func (h *handlers) errorPage(c *gin.Context, status int, heading, message string) {
	h.render(c, status, "error.html", gin.H{"Title": heading, "Heading": heading, "Message": message})
}

func (h *handlers) notFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
		return
	}
	h.errorPage(c, http.StatusNotFound, "Page not found", "We couldn't find what you were looking for.")
}

func (h *handlers) home(c *gin.Context) {
	products, err := h.deps.Catalog.BestSellers(c.Request.Context())
	if err != nil {
		h.logger.Printf("storefront: best sellers error=%v", err)
		h.render(c, http.StatusBadGateway, "home.html", gin.H{"Title": "Home", "Error": msgCatalogUnavailable})
		return
	}
	h.render(c, http.StatusOK, "home.html", gin.H{"Title": "Home", "Products": products})
}

func (h *handlers) listAll(c *gin.Context) {
	products, err := h.deps.Catalog.List(c.Request.Context())
	h.renderListing(c, "All yogurt", products, err)
}

func (h *handlers) listing(heading, category string) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := h.deps.Catalog.ByCategory(c.Request.Context(), category)
		h.renderListing(c, heading, products, err)
	}
}

func (h *handlers) renderListing(c *gin.Context, heading string, products []domain.Product, err error) {
	if err != nil {
		h.logger.Printf("storefront: listing %q error=%v", heading, err)
		h.render(c, http.StatusBadGateway, "listing.html", gin.H{"Title": heading, "Heading": heading, "Error": msgCatalogUnavailable})
		return
	}
	h.render(c, http.StatusOK, "listing.html", gin.H{"Title": heading, "Heading": heading, "Products": products})
}

func (h *handlers) product(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.deps.Catalog.Get(ctx, c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		h.errorPage(c, http.StatusNotFound, "Product not found", "This yogurt is no longer on the menu.")
		return
	}
	if err != nil {
		h.logger.Printf("storefront: product id=%s error=%v", c.Param("id"), err)
		h.errorPage(c, http.StatusBadGateway, "Something went wrong", msgCatalogUnavailable)
		return
	}
	related, err := h.deps.Catalog.Related(ctx, *p)
	if err != nil {
		h.logger.Printf("storefront: related id=%s error=%v", p.ID, err)
	}
	h.render(c, http.StatusOK, "product.html", gin.H{"Title": p.Name, "Product": p, "Related": related})
}

func (h *handlers) cartPage(c *gin.Context) {
	h.render(c, http.StatusOK, "cart.html", gin.H{"Title": "Cart", "Cart": cartFrom(c).Cart()})
}

func (h *handlers) addItem(c *gin.Context) {
	quantity := 1
	if raw := strings.TrimSpace(c.PostForm("quantity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > domain.MaxQuantity {
			h.errorPage(c, http.StatusBadRequest, "Invalid quantity", msgQuantityRange)
			return
		}
		quantity = n
	}
	if !h.addProduct(c, c.PostForm("product_id"), quantity) {
		return
	}
	c.Redirect(http.StatusSeeOther, "/cart")
}

// addProduct snapshots the product from the catalog into the session cart.
// It renders the failure and reports false when the product can't be added.
func (h *handlers) addProduct(c *gin.Context, id string, quantity int) bool {
	p, err := h.deps.Catalog.Get(c.Request.Context(), strings.TrimSpace(id))
	if errors.Is(err, domain.ErrNotFound) {
		h.fail(c, http.StatusNotFound, "Product not found", "This yogurt is no longer on the menu.")
		return false
	}
	if err != nil {
		h.logger.Printf("storefront: add to cart product=%s error=%v", id, err)
		h.fail(c, http.StatusBadGateway, "Something went wrong", msgCatalogUnavailable)
		return false
	}
	cartFrom(c).AddItem(c.Request.Context(), snapshotItem(*p, quantity))
	return true
}

func (h *handlers) fail(c *gin.Context, status int, heading, message string) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(status, gin.H{"message": message})
		return
	}
	h.errorPage(c, status, heading, message)
}

func (h *handlers) setQuantity(c *gin.Context) {
	n, err := strconv.Atoi(strings.TrimSpace(c.PostForm("quantity")))
	if err != nil || n > domain.MaxQuantity {
		h.errorPage(c, http.StatusBadRequest, "Invalid quantity", msgQuantityRange)
		return
	}
	cartFrom(c).UpdateQuantity(c.Request.Context(), c.Param("id"), n)
	c.Redirect(http.StatusSeeOther, "/cart")
}

func (h *handlers) removeItem(c *gin.Context) {
	cartFrom(c).RemoveItem(c.Request.Context(), c.Param("id"))
	c.Redirect(http.StatusSeeOther, "/cart")
}

func (h *handlers) checkoutPage(c *gin.Context) {
	store := cartFrom(c)
	if store.Len() == 0 {
		c.Redirect(http.StatusSeeOther, "/cart")
		return
	}
	in := checkout.Input{
		PaymentMethod:  string(domain.PaymentCard),
		ShippingMethod: string(domain.ShippingDelivery),
	}
	h.renderCheckout(c, http.StatusOK, in, nil, "")
}

func (h *handlers) renderCheckout(c *gin.Context, status int, in checkout.Input, invalid map[string]bool, message string) {
	if invalid == nil {
		invalid = map[string]bool{}
	}
	snapshot := cartFrom(c).Cart()
	h.render(c, status, "checkout.html", gin.H{
		"Title":       "Checkout",
		"Cart":        snapshot,
		"Input":       in,
		"Invalid":     invalid,
		"Error":       message,
		"DeliveryFee": checkout.DeliveryFee,
		"Summary":     checkout.Quote(snapshot, domain.ShippingMethod(in.ShippingMethod)),
	})
}

func (h *handlers) submitCheckout(c *gin.Context) {
	var in checkout.Input
	if err := c.ShouldBind(&in); err != nil {
		h.renderCheckout(c, http.StatusBadRequest, in, nil, "Please check the form and try again.")
		return
	}

	res, err := h.deps.Checkout.Submit(c.Request.Context(), cartFrom(c), in)
	var verr *checkout.ValidationError
	var serr *checkout.SubmitError
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/order-status?orderId="+url.QueryEscape(res.OrderID))
	case errors.As(err, &verr):
		invalid := make(map[string]bool, len(verr.Fields))
		for _, f := range verr.Fields {
			invalid[f.Field] = true
		}
		h.renderCheckout(c, http.StatusBadRequest, in, invalid, "Please fill in the highlighted fields.")
	case errors.Is(err, checkout.ErrEmptyCart):
		c.Redirect(http.StatusSeeOther, "/cart")
	case errors.As(err, &serr):
		h.renderCheckout(c, http.StatusBadGateway, in, nil, msgSubmitFailed)
	default:
		h.logger.Printf("storefront: checkout error=%v", err)
		h.renderCheckout(c, http.StatusInternalServerError, in, nil, msgSubmitFailed)
	}
}

func (h *handlers) orderStatus(c *gin.Context) {
	view, err := h.deps.Orders.Status(c.Request.Context(), c.Query("orderId"))
	switch {
	case err == nil:
		h.render(c, http.StatusOK, "order_status.html", gin.H{"Title": "Order status", "View": view})
	case errors.Is(err, order.ErrMissingOrderID):
		h.errorPage(c, http.StatusBadRequest, "Missing order", "No order number was given.")
	case errors.Is(err, domain.ErrNotFound):
		h.errorPage(c, http.StatusNotFound, "Order not found", "We couldn't find that order.")
	default:
		h.logger.Printf("storefront: order status id=%s error=%v", c.Query("orderId"), err)
		h.render(c, http.StatusBadGateway, "order_status.html", gin.H{"Title": "Order status", "Error": msgOrderUnavailable})
	}
}
