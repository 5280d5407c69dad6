// Package devbackend is an in-process stand-in for the external product and
// order service. It answers with the same JSON shapes as the real backend:
// integer ids, decimal amounts as strings, a bare shipping address string
// with contact fields at the top level, and order items carrying unit_price
// and a nested product.
package devbackend

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yogurt-storefront/internal/domain"
)

// Server holds the catalog and the orders created against it.
type Server struct {
	logger *log.Logger
	now    func() time.Time

	mu       sync.RWMutex
	products []domain.Product
	orders   map[int]*order
	nextID   int
}

type order struct {
	ID        int
	Reference string
	Status    domain.OrderStatus
	Request   domain.OrderRequest
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(products []domain.Product, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		logger:   logger,
		now:      time.Now,
		products: products,
		orders:   make(map[int]*order),
		nextID:   1,
	}
}

// Handler builds the gin engine serving the backend routes.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.LoggerWithWriter(s.logger.Writer()), gin.Recovery())

	router.GET("/health/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.GET("/products/", s.listProducts)
	api.GET("/products/:id/", s.getProduct)
	api.POST("/orders/", s.createOrder)
	api.GET("/orders/:id/", s.getOrder)
	api.PATCH("/orders/:id/", s.updateOrderStatus)
	return router
}

type productJSON struct {
	ID          interface{} `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       string      `json:"price"`
	ImageURL    *string     `json:"image_url"`
	Stock       int         `json:"stock"`
	Category    string      `json:"category"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type orderItemJSON struct {
	ID        int         `json:"id"`
	Product   productJSON `json:"product"`
	Quantity  int         `json:"quantity"`
	UnitPrice string      `json:"unit_price"`
}

type orderJSON struct {
	ID                int             `json:"id"`
	OrderNumber       string          `json:"order_number"`
	OrderDate         time.Time       `json:"order_date"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	ShippingAddress   string          `json:"shipping_address"`
	ShippingMethod    string          `json:"shipping_method"`
	PaymentMethod     string          `json:"payment_method"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	City              string          `json:"city"`
	Postcode          string          `json:"postcode"`
	Status            string          `json:"status"`
	TotalAmount       string          `json:"total_amount"`
	Items             []orderItemJSON `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (s *Server) listProducts(c *gin.Context) {
	s.mu.RLock()
	out := make([]productJSON, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, toProductJSON(p))
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) getProduct(c *gin.Context) {
	p, ok := s.findProduct(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.JSON(http.StatusOK, toProductJSON(p))
}

func (s *Server) createOrder(c *gin.Context) {
	var req domain.OrderRequest
	body, err := io.ReadAll(c.Request.Body)
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "malformed order"})
		return
	}
	if problems := validateOrder(req); len(problems) > 0 {
		c.JSON(http.StatusBadRequest, problems)
		return
	}
	for _, item := range req.Items {
		if _, ok := s.findProduct(item.ProductID); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"items": []string{"Invalid pk \"" + item.ProductID + "\" - object does not exist."}})
			return
		}
	}

	now := s.now().UTC()
	s.mu.Lock()
	o := &order{
		ID:        s.nextID,
		Reference: uuid.NewString(),
		Status:    domain.OrderStatusProcessing,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.orders[o.ID] = o
	s.nextID++
	s.mu.Unlock()

	s.logger.Printf("devbackend: order created id=%d ref=%s items=%d total=%s", o.ID, o.Reference, len(req.Items), req.TotalAmount)
	c.JSON(http.StatusCreated, s.toOrderJSON(o))
}

func (s *Server) getOrder(c *gin.Context) {
	o, ok := s.findOrder(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.JSON(http.StatusOK, s.toOrderJSON(o))
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "malformed status"})
		return
	}
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if status.Normalize() != status {
		c.JSON(http.StatusBadRequest, gin.H{"status": []string{"unknown status"}})
		return
	}
	s.mu.Lock()
	o, ok := s.lookupOrder(c.Param("id"))
	if ok {
		o.Status = status
		o.UpdatedAt = s.now().UTC()
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.JSON(http.StatusOK, s.toOrderJSON(o))
}

// SetStatus moves an order along its lifecycle.
func (s *Server) SetStatus(id int, status domain.OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if ok {
		o.Status = status
		o.UpdatedAt = s.now().UTC()
	}
	return ok
}

// OrderCount is the number of orders created so far.
func (s *Server) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *Server) findProduct(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if string(p.ID) == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Server) findOrder(raw string) (*order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupOrder(raw)
}

func (s *Server) lookupOrder(raw string) (*order, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	o, ok := s.orders[id]
	return o, ok
}

func (s *Server) toOrderJSON(o *order) orderJSON {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]orderItemJSON, 0, len(o.Request.Items))
	for i, item := range o.Request.Items {
		var product productJSON
		for _, p := range s.products {
			if string(p.ID) == item.ProductID {
				product = toProductJSON(p)
				break
			}
		}
		items = append(items, orderItemJSON{
			ID:        i + 1,
			Product:   product,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}
	addr := o.Request.ShippingAddress
	return orderJSON{
		ID:                o.ID,
		OrderNumber:       strconv.Itoa(o.ID),
		OrderDate:         o.CreatedAt,
		EstimatedDelivery: o.CreatedAt.Add(30 * time.Minute),
		ShippingAddress:   addr.Address,
		ShippingMethod:    string(o.Request.ShippingMethod),
		PaymentMethod:     string(o.Request.PaymentMethod),
		Name:              addr.Name,
		Email:             addr.Email,
		Phone:             addr.Phone,
		City:              addr.City,
		Postcode:          addr.ZipCode,
		Status:            string(o.Status),
		TotalAmount:       o.Request.TotalAmount,
		Items:             items,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func validateOrder(req domain.OrderRequest) map[string][]string {
	problems := map[string][]string{}
	if len(req.Items) == 0 {
		problems["items"] = []string{"This list may not be empty."}
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			problems["items"] = append(problems["items"], "quantity must be positive")
		}
		if _, err := decimal.NewFromString(item.Price); err != nil {
			problems["items"] = append(problems["items"], "price must be a decimal")
		}
	}
	if req.ShippingAddress.Name == "" {
		problems["shipping_address"] = []string{"name is required"}
	}
	if req.PaymentMethod == "" {
		problems["payment_method"] = []string{"This field is required."}
	}
	if req.ShippingMethod == "" {
		problems["shipping_method"] = []string{"This field is required."}
	}
	if _, err := decimal.NewFromString(req.TotalAmount); err != nil {
		problems["total_amount"] = []string{"A valid number is required."}
	}
	return problems
}

func toProductJSON(p domain.Product) productJSON {
	out := productJSON{
		ID:          wireID(p.ID),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.ImageURL != "" {
		img := p.ImageURL
		out.ImageURL = &img
	}
	return out
}

// wireID emits numeric ids as JSON numbers, like the real backend.
func wireID(id domain.ID) interface{} {
	if n, err := strconv.Atoi(string(id)); err == nil {
		return n
	}
	return string(id)
}
