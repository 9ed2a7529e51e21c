package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/service/order"
)

// fakeOrdersRepo serves a fixed set of orders for handler tests.
type fakeOrdersRepo struct {
	orders map[string]model.Order
}

func (f *fakeOrdersRepo) Insert(ctx context.Context, tx *sqlx.Tx, o model.Order) error { return nil }
func (f *fakeOrdersRepo) InsertItem(ctx context.Context, tx *sqlx.Tx, it model.OrderItem) error {
	return nil
}

func (f *fakeOrdersRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (f *fakeOrdersRepo) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.Order, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeOrdersRepo) Items(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) ItemsTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]model.OrderItem, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id string, status model.OrderStatus) error {
	return nil
}

func (f *fakeOrdersRepo) ListAll(ctx context.Context) ([]model.Order, error) { return nil, nil }
func (f *fakeOrdersRepo) ListByClient(ctx context.Context, clientID string) ([]model.Order, error) {
	return nil, nil
}

func newOrderCtx(t *testing.T, body string, cl *model.Client) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if cl != nil {
		c.Set("client", cl)
	}
	return c, rec
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	svc := order.NewService(nil, nil, nil, nil)
	h := createOrderHandler(svc)

	c, rec := newOrderCtx(t, `{"items":[]}`, &model.Client{ID: "c1", Role: model.RoleClient})
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one item")
}

func TestCreateOrderRequiresAuth(t *testing.T) {
	svc := order.NewService(nil, nil, nil, nil)
	h := createOrderHandler(svc)

	c, rec := newOrderCtx(t, `{"items":[{"productId":"p1","quantity":1}]}`, nil)
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderRejectsNonPositiveQuantity(t *testing.T) {
	svc := order.NewService(nil, nil, nil, nil)
	h := createOrderHandler(svc)

	c, rec := newOrderCtx(t, `{"items":[{"productId":"p1","quantity":0}]}`, &model.Client{ID: "c1", Role: model.RoleClient})
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantity must be positive")
}

func TestGetOrderForbiddenForForeignClient(t *testing.T) {
	repo := &fakeOrdersRepo{orders: map[string]model.Order{
		"o1": {ID: "o1", ClientID: "owner", Status: model.OrderStatusPendingPayment},
	}}
	svc := order.NewService(nil, repo, nil, nil)
	h := getOrderHandler(svc)

	e := echo.New()

	get := func(cl *model.Client, orderID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/"+orderID, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(orderID)
		c.Set("client", cl)
		require.NoError(t, h(c))
		return rec
	}

	// another client's existing order is forbidden, not hidden
	rec := get(&model.Client{ID: "intruder", Role: model.RoleClient}, "o1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the owner and admins still read it
	assert.Equal(t, http.StatusOK, get(&model.Client{ID: "owner", Role: model.RoleClient}, "o1").Code)
	assert.Equal(t, http.StatusOK, get(&model.Client{ID: "staff", Role: model.RoleAdmin}, "o1").Code)

	// a missing order stays 404 for everyone
	assert.Equal(t, http.StatusNotFound, get(&model.Client{ID: "owner", Role: model.RoleClient}, "nope").Code)
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	svc := order.NewService(nil, nil, nil, nil)
	h := createOrderHandler(svc)

	c, rec := newOrderCtx(t, `{"items":`, &model.Client{ID: "c1", Role: model.RoleClient})
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProductReqValidate(t *testing.T) {
	ok := productReq{Name: "Widget", Stock: 3}
	assert.Empty(t, ok.validate())

	noName := productReq{Name: "  ", Stock: 1}
	assert.NotEmpty(t, noName.validate())

	negStock := productReq{Name: "Widget", Stock: -1}
	assert.NotEmpty(t, negStock.validate())
}
