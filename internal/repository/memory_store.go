package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/fjod/go_cart/shop-service/internal/domain"
	"github.com/shopspring/decimal"
)

type memoryState struct {
	nextID     int64
	products   map[int64]domain.Product
	carts      map[int64]domain.Cart
	cartByUser map[string]int64
	orders     map[int64]domain.Order
	users      map[string]domain.User
	addresses  map[int64]domain.Address
}

func (st *memoryState) id() int64 {
	st.nextID++
	return st.nextID
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		nextID:     st.nextID,
		products:   make(map[int64]domain.Product, len(st.products)),
		carts:      make(map[int64]domain.Cart, len(st.carts)),
		cartByUser: make(map[string]int64, len(st.cartByUser)),
		orders:     make(map[int64]domain.Order, len(st.orders)),
		users:      make(map[string]domain.User, len(st.users)),
		addresses:  make(map[int64]domain.Address, len(st.addresses)),
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = copyCart(v)
	}
	for k, v := range st.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.addresses {
		c.addresses[k] = v
	}
	return c
}

type memoryTxKey struct{}

// MemoryStore implements Store in memory. A transaction holds the store mutex for its whole
// duration and rolls back to a snapshot on error.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		products:   make(map[int64]domain.Product),
		carts:      make(map[int64]domain.Cart),
		cartByUser: make(map[string]int64),
		orders:     make(map[int64]domain.Order),
		users:      make(map[string]domain.User),
		addresses:  make(map[int64]domain.Address),
	}}
}

func (m *MemoryStore) inTx(ctx context.Context) bool {
	s, _ := ctx.Value(memoryTxKey{}).(*MemoryStore)
	return s == m
}

func (m *MemoryStore) lock(ctx context.Context) {
	if !m.inTx(ctx) {
		m.mu.Lock()
	}
}

func (m *MemoryStore) unlock(ctx context.Context) {
	if !m.inTx(ctx) {
		m.mu.Unlock()
	}
}

func (m *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.inTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(context.WithValue(ctx, memoryTxKey{}, m)); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *MemoryStore) Products() ProductRepository { return &memoryProducts{m} }
func (m *MemoryStore) Carts() CartRepository       { return &memoryCarts{m} }
func (m *MemoryStore) Orders() OrderRepository     { return &memoryOrders{m} }
func (m *MemoryStore) Users() UserRepository       { return &memoryUsers{m} }

func (m *MemoryStore) Close() error {
	return nil
}

type memoryProducts struct {
	m *MemoryStore
}

func (r *memoryProducts) Create(ctx context.Context, p *domain.Product) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	now := utcNow()
	p.ID = r.m.state.id()
	if p.Status == "" {
		p.Status = domain.ProductStatusActive
	}
	p.CreatedAt, p.UpdatedAt = now, now
	r.m.state.products[p.ID] = *p
	return nil
}

func (r *memoryProducts) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	p, ok := r.m.state.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetForUpdate needs no row lock: a transaction already owns the whole store.
func (r *memoryProducts) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryProducts) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	result := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.m.state.products[id]; ok {
			result[id] = &p
		}
	}
	return result, nil
}

func (r *memoryProducts) DecrementStock(ctx context.Context, id int64, qty int) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	p, ok := r.m.state.products[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = utcNow()
	r.m.state.products[id] = p
	return nil
}

func (r *memoryProducts) RestoreStock(ctx context.Context, id int64, qty int) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	p, ok := r.m.state.products[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = utcNow()
	r.m.state.products[id] = p
	return nil
}

type memoryCarts struct {
	m *MemoryStore
}

func (r *memoryCarts) GetOrCreate(ctx context.Context, userID string) (*domain.Cart, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	st := r.m.state
	id, ok := st.cartByUser[userID]
	if !ok {
		now := utcNow()
		id = st.id()
		st.carts[id] = domain.Cart{
			ID:         id,
			UserID:     userID,
			Items:      []domain.CartItem{},
			TotalPrice: decimal.Zero,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		st.cartByUser[userID] = id
	}
	cart := copyCart(st.carts[id])
	return &cart, nil
}

func (r *memoryCarts) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.GetOrCreate(ctx, userID)
}

func (r *memoryCarts) Save(ctx context.Context, cart *domain.Cart) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	st := r.m.state
	if _, ok := st.carts[cart.ID]; !ok {
		return ErrNotFound
	}
	now := utcNow()
	seen := make(map[int64]bool, len(cart.Items))
	for i := range cart.Items {
		item := &cart.Items[i]
		if seen[item.ProductID] {
			return ErrDuplicate
		}
		seen[item.ProductID] = true
		item.CartID = cart.ID
		if item.ID == 0 {
			item.ID = st.id()
		}
		if item.AddedAt.IsZero() {
			item.AddedAt = now
		}
	}
	cart.UpdatedAt = now
	st.carts[cart.ID] = copyCart(*cart)
	return nil
}

func (r *memoryCarts) CountItems(ctx context.Context, userID string) (int, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	id, ok := r.m.state.cartByUser[userID]
	if !ok {
		return 0, nil
	}
	return len(r.m.state.carts[id].Items), nil
}

type memoryOrders struct {
	m *MemoryStore
}

func (r *memoryOrders) Create(ctx context.Context, o *domain.Order) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	st := r.m.state
	for _, existing := range st.orders {
		if existing.OrderNumber == o.OrderNumber {
			return ErrDuplicate
		}
	}
	o.ID = st.id()
	for i := range o.Items {
		o.Items[i].ID = st.id()
		o.Items[i].OrderID = o.ID
	}
	if o.Payment != nil {
		o.Payment.ID = st.id()
		o.Payment.OrderID = o.ID
	}
	st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (r *memoryOrders) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	o, ok := r.m.state.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyOrder(o)
	return &c, nil
}

func (r *memoryOrders) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryOrders) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	for _, o := range r.m.state.orders {
		if o.OrderNumber == number {
			c := copyOrder(o)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryOrders) ListByUser(ctx context.Context, userID string, f OrderFilter) ([]*domain.Order, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	var orders []*domain.Order
	for _, o := range r.m.state.orders {
		if o.UserID != userID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		c := copyOrder(o)
		orders = append(orders, &c)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OrderedAt.Equal(orders[j].OrderedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].OrderedAt.After(orders[j].OrderedAt)
	})

	if f.Limit > 0 {
		if f.Offset >= len(orders) {
			return nil, nil
		}
		end := f.Offset + f.Limit
		if end > len(orders) {
			end = len(orders)
		}
		orders = orders[f.Offset:end]
	}
	return orders, nil
}

func (r *memoryOrders) CountByUser(ctx context.Context, userID string) (int, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	n := 0
	for _, o := range r.m.state.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memoryOrders) UpdateStatus(ctx context.Context, o *domain.Order) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	stored, ok := r.m.state.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = o.Status
	stored.PaymentAt = o.PaymentAt
	stored.ShippedAt = o.ShippedAt
	stored.DeliveredAt = o.DeliveredAt
	stored.CancelledAt = o.CancelledAt
	stored.UpdatedAt = o.UpdatedAt
	r.m.state.orders[o.ID] = stored
	return nil
}

func (r *memoryOrders) UpdatePayment(ctx context.Context, p *domain.Payment) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	stored, ok := r.m.state.orders[p.OrderID]
	if !ok || stored.Payment == nil || stored.Payment.ID != p.ID {
		return ErrNotFound
	}
	payment := *p
	stored.Payment = &payment
	r.m.state.orders[p.OrderID] = stored
	return nil
}

type memoryUsers struct {
	m *MemoryStore
}

func (r *memoryUsers) CreateUser(ctx context.Context, u *domain.User) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	if _, ok := r.m.state.users[u.ID]; ok {
		return ErrDuplicate
	}
	r.m.state.users[u.ID] = *u
	return nil
}

func (r *memoryUsers) CreateAddress(ctx context.Context, a *domain.Address) error {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	a.ID = r.m.state.id()
	r.m.state.addresses[a.ID] = *a
	return nil
}

func (r *memoryUsers) FindUser(ctx context.Context, id string) (*domain.User, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	u, ok := r.m.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) FindAddress(ctx context.Context, id int64) (*domain.Address, error) {
	r.m.lock(ctx)
	defer r.m.unlock(ctx)

	a, ok := r.m.state.addresses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func copyCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.CartItem{}, c.Items...)
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem{}, o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		o.Payment = &p
	}
	return o
}
