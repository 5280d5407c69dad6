package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"yogurt-storefront/internal/cart"
	"yogurt-storefront/internal/domain"
	cartrepo "yogurt-storefront/internal/repository/cart"
	"yogurt-storefront/internal/service/checkout"
	"yogurt-storefront/internal/service/order"
	"yogurt-storefront/internal/service/session"
)

type stubCatalog struct {
	products []domain.Product
	err      error
}

func (s *stubCatalog) List(_ context.Context) ([]domain.Product, error) {
	return s.products, s.err
}

func (s *stubCatalog) Get(_ context.Context, id string) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, p := range s.products {
		if string(p.ID) == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubCatalog) BestSellers(_ context.Context) ([]domain.Product, error) {
	return s.products, s.err
}

func (s *stubCatalog) ByCategory(_ context.Context, category string) ([]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Product
	for _, p := range s.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalog) Related(_ context.Context, _ domain.Product) ([]domain.Product, error) {
	return nil, nil
}

type stubOrderCreator struct {
	order *domain.Order
	err   error
}

func (s *stubOrderCreator) CreateOrder(_ context.Context, _ domain.OrderRequest) (*domain.Order, error) {
	return s.order, s.err
}

type stubOrderStatus struct {
	view *order.View
	err  error
}

func (s *stubOrderStatus) Status(_ context.Context, id string) (*order.View, error) {
	if strings.TrimSpace(id) == "" {
		return nil, order.ErrMissingOrderID
	}
	return s.view, s.err
}

type fixture struct {
	router  http.Handler
	catalog *stubCatalog
	orders  *stubOrderCreator
	status  *stubOrderStatus
	carts   *cart.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		catalog: &stubCatalog{products: []domain.Product{
			{ID: "1", Name: "Peanut butter Greek yogurt", Price: decimal.RequireFromString("120"), Category: "sweet", Stock: 3},
			{ID: "2", Name: "Strawberry Greek yogurt", Price: decimal.RequireFromString("180"), Category: "fruit"},
		}},
		orders: &stubOrderCreator{order: &domain.Order{ID: "X"}},
		status: &stubOrderStatus{},
		carts:  cart.NewRegistry(cartrepo.NewMemory(), nil),
	}
	router, err := buildRouter(nil, Deps{
		Catalog:        f.catalog,
		Carts:          f.carts,
		Checkout:       checkout.New(f.orders, nil),
		Orders:         f.status,
		Sessions:       session.New(0, false),
		AllowedOrigins: []string{"https://shop.example"},
		ReadyChecks: map[string]ReadyCheck{
			"storage": func(context.Context) error { return nil },
		},
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path, contentType, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) form(t *testing.T, path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, path, "application/x-www-form-urlencoded", values.Encode(), cookie)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartResponse {
	t.Helper()
	var out cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode cart: %v body=%s", err, rec.Body.String())
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/healthz", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/readyz", "", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	gin.SetMode(gin.TestMode)
	router, err := buildRouter(nil, Deps{
		Catalog: f.catalog,
		Carts:   f.carts,
		ReadyChecks: map[string]ReadyCheck{
			"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
		},
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "redis") {
		t.Fatalf("expected 503 naming redis, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHome_IssuesSessionAndRendersBestSellers(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Peanut butter Greek yogurt") || !strings.Contains(rec.Body.String(), "120.00 THB") {
		t.Fatalf("expected best sellers in body")
	}
	c := sessionCookie(t, rec)
	if !c.HttpOnly {
		t.Fatalf("session cookie should be HttpOnly")
	}
}

func TestHome_CatalogFailureShowsInlineError(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("connection refused")
	rec := f.do(t, http.MethodGet, "/sweets", "", "", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "couldn&#39;t load products") {
		t.Fatalf("expected inline error, got %s", rec.Body.String())
	}
}

func TestProductPage(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodGet, "/product/1", "", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "3 in stock") {
		t.Fatalf("unexpected product page %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/product/99", "", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/no-such-page", "", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCartForms_AddMergeStepAndRemove(t *testing.T) {
	f := newFixture(t)
	first := f.do(t, http.MethodGet, "/cart", "", "", nil)
	cookie := sessionCookie(t, first)

	rec := f.form(t, "/cart/items", url.Values{"product_id": {"1"}, "quantity": {"1"}}, cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/cart" {
		t.Fatalf("expected redirect to /cart, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	f.form(t, "/cart/items", url.Values{"product_id": {"1"}, "quantity": {"2"}}, cookie)
	f.form(t, "/cart/items", url.Values{"product_id": {"2"}}, cookie)

	got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", cookie))
	if got.Count != 2 || got.Items[0].ID != "1" || got.Items[0].Quantity != 3 || got.Items[1].ID != "2" {
		t.Fatalf("unexpected cart %+v", got)
	}
	if got.Total != "540.00" {
		t.Fatalf("expected 540.00, got %s", got.Total)
	}

	f.form(t, "/cart/items/1", url.Values{"quantity": {"2"}}, cookie)
	f.form(t, "/cart/items/2/remove", url.Values{}, cookie)
	got = decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", cookie))
	if got.Count != 1 || got.Items[0].Quantity != 2 || got.TotalQuantity != 2 {
		t.Fatalf("unexpected cart after step/remove %+v", got)
	}

	page := f.do(t, http.MethodGet, "/cart", "", "", cookie)
	if !strings.Contains(page.Body.String(), "Total: ฿ 240.00") {
		t.Fatalf("expected cart total on page, got %s", page.Body.String())
	}

	if rec := f.form(t, "/cart/items", url.Values{"product_id": {"99"}}, cookie); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
	if rec := f.form(t, "/cart/items/1", url.Values{"quantity": {"many"}}, cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad quantity, got %d", rec.Code)
	}
}

func TestCartAPI(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"2","quantity":2}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec)
	got := decodeCart(t, rec)
	if got.Count != 1 || got.Items[0].Subtotal != "360.00" || got.Items[0].Image != domain.PlaceholderImage {
		t.Fatalf("unexpected cart %+v", got)
	}

	rec = f.do(t, http.MethodPatch, "/api/cart/items/404", "application/json", `{"quantity":5}`, cookie)
	if got := decodeCart(t, rec); got.Count != 1 {
		t.Fatalf("update on absent id must not create a row: %+v", got)
	}

	rec = f.do(t, http.MethodPatch, "/api/cart/items/2", "application/json", `{"quantity":0}`, cookie)
	if got := decodeCart(t, rec); got.Count != 0 {
		t.Fatalf("quantity 0 should remove the row: %+v", got)
	}

	f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1"}`, cookie)
	rec = f.do(t, http.MethodDelete, "/api/cart", "", "", cookie)
	if got := decodeCart(t, rec); got.Count != 0 || got.Total != "0.00" {
		t.Fatalf("expected empty cart, got %+v", got)
	}

	if rec := f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{}`, cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPatch, "/api/cart/items/1", "application/json", `{}`, cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCartAPI_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t)
	a := sessionCookie(t, f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1"}`, nil))
	b := sessionCookie(t, f.do(t, http.MethodGet, "/api/cart", "", "", nil))

	if got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", b)); got.Count != 0 {
		t.Fatalf("second session should not see the first cart: %+v", got)
	}
	if got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", a)); got.Count != 1 {
		t.Fatalf("first session lost its cart: %+v", got)
	}
}

func TestCartForms_RejectsOutOfRangeQuantity(t *testing.T) {
	f := newFixture(t)
	cookie := sessionCookie(t, f.do(t, http.MethodGet, "/cart", "", "", nil))
	f.form(t, "/cart/items", url.Values{"product_id": {"1"}, "quantity": {"2"}}, cookie)

	tooMany := strconv.Itoa(domain.MaxQuantity + 1)
	for _, q := range []string{"0", "-1", tooMany} {
		if rec := f.form(t, "/cart/items", url.Values{"product_id": {"1"}, "quantity": {q}}, cookie); rec.Code != http.StatusBadRequest {
			t.Fatalf("add quantity %s: expected 400, got %d", q, rec.Code)
		}
	}
	if rec := f.form(t, "/cart/items/1", url.Values{"quantity": {tooMany}}, cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("set quantity %s: expected 400, got %d", tooMany, rec.Code)
	}

	got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", cookie))
	if got.Count != 1 || got.Items[0].Quantity != 2 {
		t.Fatalf("rejected requests changed the cart: %+v", got)
	}
}

func TestCartAPI_RejectsOutOfRangeQuantity(t *testing.T) {
	f := newFixture(t)
	cookie := sessionCookie(t, f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1","quantity":2}`, nil))

	tooMany := strconv.Itoa(domain.MaxQuantity + 1)
	for _, q := range []string{"0", "-1", tooMany} {
		rec := f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1","quantity":`+q+`}`, cookie)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("add quantity %s: expected 400, got %d", q, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodPatch, "/api/cart/items/1", "application/json", `{"quantity":`+tooMany+`}`, cookie); rec.Code != http.StatusBadRequest {
		t.Fatalf("set quantity %s: expected 400, got %d", tooMany, rec.Code)
	}

	got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", cookie))
	if got.Count != 1 || got.Items[0].Quantity != 2 || got.Total != "240.00" {
		t.Fatalf("rejected requests changed the cart: %+v", got)
	}
}

func TestCartAPI_RepeatedAddsStayBounded(t *testing.T) {
	f := newFixture(t)
	limit := strconv.Itoa(domain.MaxQuantity)
	cookie := sessionCookie(t, f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1","quantity":`+limit+`}`, nil))

	rec := f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1","quantity":1}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	got := decodeCart(t, rec)
	if got.Items[0].Quantity != domain.MaxQuantity {
		t.Fatalf("expected quantity capped at %d, got %d", domain.MaxQuantity, got.Items[0].Quantity)
	}
	want := decimal.NewFromInt(120 * domain.MaxQuantity).StringFixed(2)
	if got.Total != want {
		t.Fatalf("expected total %s, got %s", want, got.Total)
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://shop.example" {
		t.Fatalf("expected allowed origin, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials allowed")
	}
}

func checkoutForm(method string) url.Values {
	v := url.Values{
		"name":           {"Nok"},
		"email":          {"nok@example.com"},
		"phone":          {"0812345678"},
		"paymentMethod":  {"cash"},
		"shippingMethod": {method},
	}
	if method == "delivery" {
		v.Set("address", "1 Sukhumvit")
		v.Set("city", "Bangkok")
		v.Set("zipCode", "10110")
	}
	return v
}

func filledCart(t *testing.T, f *fixture) *http.Cookie {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/cart/items", "application/json", `{"product_id":"1","quantity":2}`, nil)
	return sessionCookie(t, rec)
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t)
	cookie := filledCart(t, f)

	page := f.do(t, http.MethodGet, "/checkout", "", "", cookie)
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "฿ 320.00") {
		t.Fatalf("expected checkout page with delivery total, got %d", page.Code)
	}

	rec := f.form(t, "/checkout", checkoutForm("delivery"), cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/order-status?orderId=X" {
		t.Fatalf("expected redirect to order status, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", cookie)); got.Count != 0 {
		t.Fatalf("cart should be empty after checkout: %+v", got)
	}
}

func TestCheckout_FailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.orders.err = errors.New("backend 500")
	cookie := filledCart(t, f)

	rec := f.form(t, "/checkout", checkoutForm("pickup"), cookie)
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "Your cart is saved") {
		t.Fatalf("expected retryable 502, got %d", rec.Code)
	}
	if got := decodeCart(t, f.do(t, http.MethodGet, "/api/cart", "", "", cookie)); got.Count != 1 || got.TotalQuantity != 2 {
		t.Fatalf("cart must survive failed checkout: %+v", got)
	}
}

func TestCheckout_ValidationAndEmptyCart(t *testing.T) {
	f := newFixture(t)
	cookie := filledCart(t, f)

	form := checkoutForm("delivery")
	form.Del("address")
	rec := f.form(t, "/checkout", form, cookie)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "Address is required for delivery") {
		t.Fatalf("expected 400 with address error, got %d", rec.Code)
	}

	empty := sessionCookie(t, f.do(t, http.MethodGet, "/cart", "", "", nil))
	if rec := f.do(t, http.MethodGet, "/checkout", "", "", empty); rec.Code != http.StatusSeeOther {
		t.Fatalf("empty cart checkout page should redirect, got %d", rec.Code)
	}
	if rec := f.form(t, "/checkout", checkoutForm("pickup"), empty); rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/cart" {
		t.Fatalf("empty cart submit should redirect to cart, got %d", rec.Code)
	}
}

func TestOrderStatusPage(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.status.view = &order.View{
		Order:             &domain.Order{ID: "5", OrderNumber: "5", OrderDate: created, ShippingMethod: domain.ShippingDelivery, TotalAmount: decimal.RequireFromString("320")},
		Status:            domain.OrderStatusPreparing,
		Steps:             order.Steps(domain.OrderStatusPreparing, domain.ShippingDelivery),
		EstimatedDelivery: created.Add(30 * time.Minute),
		Items:             []order.Item{{ProductID: "1", Name: "Product #1", Quantity: 2}},
	}

	rec := f.do(t, http.MethodGet, "/order-status?orderId=5", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Order received", "Product #1", "10:30", "Total: 320.00 THB"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in order page", want)
		}
	}

	if rec := f.do(t, http.MethodGet, "/order-status", "", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", rec.Code)
	}
	f.status.err = domain.ErrNotFound
	if rec := f.do(t, http.MethodGet, "/order-status?orderId=9", "", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	f.status.err = errors.New("timeout")
	if rec := f.do(t, http.MethodGet, "/order-status?orderId=9", "", "", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCartEvents_StreamsMutations(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/cart/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected session cookie on stream")
	}

	events := make(chan cartResponse, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var c cartResponse
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &c) == nil {
				events <- c
			}
		}
		close(events)
	}()

	next := func() cartResponse {
		select {
		case c, ok := <-events:
			if !ok {
				t.Fatalf("stream closed")
			}
			return c
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event")
		}
		return cartResponse{}
	}

	if initial := next(); initial.Count != 0 {
		t.Fatalf("expected empty initial cart, got %+v", initial)
	}

	body := strings.NewReader(`{"product_id":"1","quantity":2}`)
	add, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/cart/items", body)
	add.Header.Set("Content-Type", "application/json")
	add.AddCookie(cookie)
	addResp, err := http.DefaultClient.Do(add)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	addResp.Body.Close()

	if update := next(); update.Count != 1 || update.TotalQuantity != 2 {
		t.Fatalf("expected streamed update, got %+v", update)
	}
}
