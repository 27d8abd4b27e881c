package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/event"
	"github.com/utafrali/shopease/internal/repository/memory"
	apperrors "github.com/utafrali/shopease/pkg/errors"
	"github.com/utafrali/shopease/pkg/validator"
)

type orderFixture struct {
	orders *memory.OrderRepository
	carts  *CartService
	svc    *OrderService
}

func newOrderFixture(t *testing.T, remote OrderSubmitter, producer *event.Producer) *orderFixture {
	t.Helper()
	ctx := context.Background()

	catalog := NewCatalogService(memory.NewProductRepository(), newTestLogger())
	require.NoError(t, catalog.EnsureSeed(ctx))

	orders := memory.NewOrderRepository()
	carts := NewCartService(memory.NewCartRepository(), catalog, newQuietProducer(), newTestLogger(), time.Hour)
	svc := NewOrderService(orders, carts, remote, producer, newTestLogger())
	svc.now = func() time.Time { return testNow }
	svc.newID = func() string { return "ord-1" }

	return &orderFixture{orders: orders, carts: carts, svc: svc}
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{Name: " Ada ", Address: "1 Main St", City: "Springfield", PostalCode: "12345"}
}

func TestOrderService_PlaceOrder(t *testing.T) {
	pub := new(mockPublisher)
	f := newOrderFixture(t, nil, event.NewProducer(pub, newTestLogger()))
	ctx := context.Background()

	pub.On("Publish", ctx, event.TopicOrderPlaced, mock.Anything).Return(nil)

	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "2", Quantity: 1})
	require.NoError(t, err)

	res, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{
		SessionID: "sess-1", UserID: "user-1", Email: "ada@example.com", Address: validAddress(),
	})

	require.NoError(t, err)
	assert.Equal(t, MyOrdersPath, res.RedirectTo)
	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, "Ada", res.Order.Address.Name)
	assert.Equal(t, domain.DefaultCountry, res.Order.Address.Country)
	assert.Equal(t, "199.99", res.Order.Subtotal.String())
	assert.Equal(t, "0.00", res.Order.Shipping.String())
	assert.Equal(t, testNow, res.Order.CreatedAt)

	cart, err := f.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty(), "cart is cleared after a successful order")

	mine, err := f.svc.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "ord-1", mine[0].ID)
	pub.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_EmptyCart(t *testing.T) {
	f := newOrderFixture(t, nil, newQuietProducer())

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		SessionID: "sess-1", UserID: "user-1", Address: validAddress(),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestOrderService_PlaceOrder_MissingAddressFields(t *testing.T) {
	f := newOrderFixture(t, nil, newQuietProducer())
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "1"})
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{
		SessionID: "sess-1", UserID: "user-1",
		Address: domain.ShippingAddress{Name: "Ada", Address: "  ", City: "Springfield"},
	})

	var valErr *validator.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "address")
	assert.Contains(t, valErr.Fields(), "postalCode")

	cart, _ := f.carts.GetCart(ctx, "sess-1")
	assert.Len(t, cart.Items, 1)
}

func TestOrderService_PlaceOrder_RequiresUser(t *testing.T) {
	f := newOrderFixture(t, nil, newQuietProducer())

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{SessionID: "sess-1", Address: validAddress()})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestOrderService_PlaceOrder_RemoteFailureKeepsCart(t *testing.T) {
	remote := new(mockSubmitter)
	f := newOrderFixture(t, remote, newQuietProducer())
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "4", Quantity: 2})
	require.NoError(t, err)
	remote.On("Submit", ctx, mock.AnythingOfType("*domain.Order")).Return(errors.New("connection reset"))

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))

	cart, _ := f.carts.GetCart(ctx, "sess-1")
	item, ok := cart.Item("4")
	require.True(t, ok, "cart survives a failed submission")
	assert.Equal(t, 2, item.Quantity)

	all, _ := f.svc.ListAll(ctx)
	assert.Empty(t, all)
}

func TestOrderService_PlaceOrder_RemoteRejectionPassesThrough(t *testing.T) {
	remote := new(mockSubmitter)
	f := newOrderFixture(t, remote, newQuietProducer())
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "4"})
	require.NoError(t, err)
	remote.On("Submit", ctx, mock.Anything).Return(apperrors.InvalidInput("order: unknown product"))

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestOrderService_PlaceOrder_RemoteSuccessRecordsLocally(t *testing.T) {
	remote := new(mockSubmitter)
	f := newOrderFixture(t, remote, newQuietProducer())
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "5"})
	require.NoError(t, err)
	remote.On("Submit", ctx, mock.MatchedBy(func(o *domain.Order) bool { return o.ID == "ord-1" })).Return(nil)

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})
	require.NoError(t, err)

	stored, err := f.orders.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "30.00", stored.Subtotal.String())
	assert.Equal(t, "5.00", stored.Shipping.String())
	remote.AssertExpectations(t)
}

// unwritableOrders accepts reads but fails every Create.
type unwritableOrders struct {
	*memory.OrderRepository
	err error
}

func (u *unwritableOrders) Create(context.Context, *domain.Order) error { return u.err }

func TestOrderService_PlaceOrder_AcceptedRemotelyButNotStored(t *testing.T) {
	remote := new(mockSubmitter)
	f := newOrderFixture(t, remote, newQuietProducer())
	f.svc.orders = &unwritableOrders{OrderRepository: f.orders, err: errors.New("db down")}
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "5"})
	require.NoError(t, err)
	remote.On("Submit", ctx, mock.Anything).Return(nil)

	res, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})

	require.NoError(t, err)
	assert.Equal(t, MyOrdersPath, res.RedirectTo)
	cart, err := f.carts.GetCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty(), "cart is cleared once the backend accepted the order")

	// Nothing left to check out, so the order cannot be submitted twice.
	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	remote.AssertNumberOfCalls(t, "Submit", 1)
}

func TestOrderService_PlaceOrder_LocalStoreFailureKeepsCart(t *testing.T) {
	f := newOrderFixture(t, nil, newQuietProducer())
	f.svc.orders = &unwritableOrders{OrderRepository: f.orders, err: errors.New("db down")}
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "5"})
	require.NoError(t, err)

	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	cart, _ := f.carts.GetCart(ctx, "sess-1")
	assert.False(t, cart.IsEmpty(), "cart survives when no store accepted the order")
}

func placeTestOrder(t *testing.T, f *orderFixture) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, "sess-1", AddItemInput{ProductID: "1"})
	require.NoError(t, err)
	_, err = f.svc.PlaceOrder(ctx, PlaceOrderInput{SessionID: "sess-1", UserID: "user-1", Address: validAddress()})
	require.NoError(t, err)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	pub := new(mockPublisher)
	f := newOrderFixture(t, nil, event.NewProducer(pub, newTestLogger()))
	ctx := context.Background()
	pub.On("Publish", ctx, mock.Anything, mock.Anything).Return(nil)
	placeTestOrder(t, f)

	order, err := f.svc.UpdateStatus(ctx, "ord-1", "Shipped")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	order, err = f.svc.UpdateStatus(ctx, "ord-1", "shipped")
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, domain.OrderStatusShipped, order.Status)

	_, err = f.svc.UpdateStatus(ctx, "ord-1", "cancelled")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	order, err = f.svc.UpdateStatus(ctx, "ord-1", "delivered")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)

	pub.AssertNumberOfCalls(t, "Publish", 3) // order.placed + two status changes
}

func TestOrderService_UpdateStatus_Invalid(t *testing.T) {
	f := newOrderFixture(t, nil, newQuietProducer())
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, "ord-1", "refunded")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.UpdateStatus(ctx, "missing", "shipped")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOrderService_GetOrder_Ownership(t *testing.T) {
	f := newOrderFixture(t, nil, newQuietProducer())
	ctx := context.Background()
	placeTestOrder(t, f)

	_, err := f.svc.GetOrder(ctx, "ord-1", "user-1", false)
	assert.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, "ord-1", "user-2", false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.GetOrder(ctx, "ord-1", "admin-1", true)
	assert.NoError(t, err)
}
