package usecase_test

import (
	"context"
	"testing"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *env) order(t *testing.T, p domain.Principal, prod *domain.Product, qty int, at time.Time) *domain.Order {
	t.Helper()
	uc := e.placeOrder(usecase.WithClock(func() time.Time { return at }))
	o, err := uc.Execute(context.Background(), usecase.PlaceOrderInput{
		Principal: p,
		Delivery:  delivery,
		Lines:     []domain.Line{{ProductID: prod.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	return o
}

func TestUpdateStatus_RequiresAdmin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	p := e.product(t, "Widget", "1.00", 10)
	o := e.order(t, alice, p, 1, time.Now())

	uc := usecase.NewUpdateStatus(e.store.Orders(), e.cache, e.pub, false)
	_, err := uc.Execute(ctx, alice, o.ID, domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = uc.Execute(ctx, domain.Principal{}, o.ID, domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	got, err := e.store.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Empty(t, e.pub.changed)
}

func TestUpdateStatus_AdminChangeIsVisibleToOwner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	admin := e.user(t, "admin", domain.RoleAdmin, domain.RoleUser)
	p := e.product(t, "Widget", "1.00", 10)
	o := e.order(t, alice, p, 1, time.Now())

	q := usecase.NewOrderQueries(e.store.Orders(), e.cache, 100)
	st, err := q.Status(ctx, alice, o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, st)
	_, ok, _ := e.cache.GetStatus(ctx, o.ID)
	require.True(t, ok, "first read fills the cache")

	uc := usecase.NewUpdateStatus(e.store.Orders(), e.cache, e.pub, false)
	updated, err := uc.Execute(ctx, admin, o.ID, domain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, updated.Status)

	_, ok, _ = e.cache.GetStatus(ctx, o.ID)
	assert.False(t, ok, "writers evict rather than store")

	seen, err := q.Get(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, seen.Status)
	st, err = q.Status(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, st)

	require.Len(t, e.pub.changed, 1)
	assert.Equal(t, o.ID, e.pub.changed[0].OrderID)
	assert.Equal(t, "SHIPPED", e.pub.changed[0].Status)

	// default mode overwrites without consulting the state machine
	_, err = uc.Execute(ctx, admin, o.ID, domain.StatusPending)
	require.NoError(t, err)

	_, err = uc.Execute(ctx, admin, o.ID, domain.Status("LOST"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = uc.Execute(ctx, admin, 9999, domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_StrictTransitions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	admin := e.user(t, "admin", domain.RoleAdmin)
	p := e.product(t, "Widget", "1.00", 10)
	o := e.order(t, alice, p, 1, time.Now())

	uc := usecase.NewUpdateStatus(e.store.Orders(), nil, nil, true)
	_, err := uc.Execute(ctx, admin, o.ID, domain.StatusDelivered)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	for _, st := range []domain.Status{domain.StatusConfirmed, domain.StatusShipped, domain.StatusDelivered} {
		_, err := uc.Execute(ctx, admin, o.ID, st)
		require.NoError(t, err, st)
	}
	_, err = uc.Execute(ctx, admin, o.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	admin := e.user(t, "admin", domain.RoleAdmin)
	p := e.product(t, "Widget", "1.00", 10)
	o := e.order(t, alice, p, 4, time.Now())
	require.NoError(t, e.cache.FillStatus(ctx, o.ID, usecase.CachedStatus{OwnerID: alice.UserID, Status: "PENDING"}))

	uc := usecase.NewDeleteOrder(e.store.Orders(), e.cache)
	assert.ErrorIs(t, uc.Execute(ctx, alice, o.ID), domain.ErrForbidden)

	require.NoError(t, uc.Execute(ctx, admin, o.ID))
	_, err := e.store.Orders().GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, ok, _ := e.cache.GetStatus(ctx, o.ID)
	assert.False(t, ok)
	assert.Equal(t, 6, e.stock(t, p.ID), "stock is not restored")

	assert.ErrorIs(t, uc.Execute(ctx, admin, o.ID), domain.ErrNotFound)
}

// hookedOrders runs after once, right after the first call of the wrapped
// method has reached the ledger.
type hookedOrders struct {
	usecase.OrderRepo
	after func()
	fired bool
}

func (r *hookedOrders) fire() {
	if !r.fired && r.after != nil {
		r.fired = true
		r.after()
	}
}

type updateHook struct{ *hookedOrders }

func (r updateHook) UpdateStatus(ctx context.Context, id int64, to domain.Status) error {
	if err := r.OrderRepo.UpdateStatus(ctx, id, to); err != nil {
		return err
	}
	r.fire()
	return nil
}

type readHook struct{ *hookedOrders }

func (r readHook) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := r.OrderRepo.GetByID(ctx, id)
	r.fire()
	return o, err
}

func TestUpdateStatus_InterleavedUpdatesLeaveNoStaleCache(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	admin := e.user(t, "admin", domain.RoleAdmin)
	p := e.product(t, "Widget", "1.00", 10)
	o := e.order(t, alice, p, 1, time.Now())
	q := usecase.NewOrderQueries(e.store.Orders(), e.cache, 100)
	_, err := q.Status(ctx, alice, o.ID)
	require.NoError(t, err)

	second := usecase.NewUpdateStatus(e.store.Orders(), e.cache, nil, false)
	hooked := updateHook{&hookedOrders{OrderRepo: e.store.Orders(), after: func() {
		_, err := second.Execute(ctx, admin, o.ID, domain.StatusDelivered)
		require.NoError(t, err)
	}}}
	first := usecase.NewUpdateStatus(hooked, e.cache, nil, false)

	_, err = first.Execute(ctx, admin, o.ID, domain.StatusShipped)
	require.NoError(t, err)

	st, err := q.Status(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, st, "status follows the last ledger write")
}

func TestOrderQueries_StatusReadRacingWriters(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.user(t, "alice")
	admin := e.user(t, "admin", domain.RoleAdmin)
	p := e.product(t, "Widget", "1.00", 10)

	t.Run("update", func(t *testing.T) {
		o := e.order(t, alice, p, 1, time.Now())
		update := usecase.NewUpdateStatus(e.store.Orders(), e.cache, nil, false)
		reader := usecase.NewOrderQueries(readHook{&hookedOrders{OrderRepo: e.store.Orders(), after: func() {
			_, err := update.Execute(ctx, admin, o.ID, domain.StatusShipped)
			require.NoError(t, err)
		}}}, e.cache, 100)

		st, err := reader.Status(ctx, alice, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, st, "the read itself saw the older row")
		_, ok, _ := e.cache.GetStatus(ctx, o.ID)
		assert.False(t, ok, "the older row is not cached")

		st, err = usecase.NewOrderQueries(e.store.Orders(), e.cache, 100).Status(ctx, alice, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusShipped, st)
	})

	t.Run("delete", func(t *testing.T) {
		o := e.order(t, alice, p, 1, time.Now())
		remove := usecase.NewDeleteOrder(e.store.Orders(), e.cache)
		reader := usecase.NewOrderQueries(readHook{&hookedOrders{OrderRepo: e.store.Orders(), after: func() {
			require.NoError(t, remove.Execute(ctx, admin, o.ID))
		}}}, e.cache, 100)

		_, err := reader.Status(ctx, alice, o.ID)
		require.NoError(t, err)
		_, ok, _ := e.cache.GetStatus(ctx, o.ID)
		assert.False(t, ok, "a deleted order is not cached again")

		_, err = usecase.NewOrderQueries(e.store.Orders(), e.cache, 100).Status(ctx, alice, o.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
