package usecase_test

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// =====================
// インメモリのリポジトリ（WithinTxはエラー時に状態を巻き戻す）
// =====================

type memStore struct {
	seq         int64
	tenants     map[int64]model.Tenant
	users       map[int64]model.User
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	addresses   map[int64]model.Address
	orders      map[int64]model.Order
	orderItems  map[int64][]model.OrderItem
	notifs      []model.PaymentNotification
	audits      []model.AuditLog
	adjustments []model.InventoryAdjustment

	txCount int
	// FindActiveByUserIDForUpdateが呼ばれた回数
	cartLocks int
	// trueならOrders().Createが一度だけErrDuplicateを返す（同時作成の再現）
	failNextOrderCreate bool
}

func newMemStore() *memStore {
	return &memStore{
		seq:        1000,
		tenants:    map[int64]model.Tenant{},
		users:      map[int64]model.User{},
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		addresses:  map[int64]model.Address{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
	}
}

func (s *memStore) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *memStore) clone() memStore {
	c := *s
	c.tenants = maps.Clone(s.tenants)
	c.users = maps.Clone(s.users)
	c.products = maps.Clone(s.products)
	c.carts = maps.Clone(s.carts)
	c.cartItems = maps.Clone(s.cartItems)
	c.addresses = maps.Clone(s.addresses)
	c.orders = maps.Clone(s.orders)
	c.orderItems = maps.Clone(s.orderItems)
	c.notifs = slices.Clone(s.notifs)
	c.audits = slices.Clone(s.audits)
	c.adjustments = slices.Clone(s.adjustments)
	return c
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.txCount++
	saved := s.clone()
	if err := fn(memTx{s}); err != nil {
		count, fail, locks := s.txCount, s.failNextOrderCreate, s.cartLocks
		*s = saved
		s.txCount, s.failNextOrderCreate, s.cartLocks = count, fail, locks
		return err
	}
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func paginate[T any](list []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(list) {
		return []T{}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

type memTx struct{ s *memStore }

func (t memTx) Orders() repo.OrderRepository                             { return memOrders{t.s} }
func (t memTx) OrderItems() repo.OrderItemRepository                     { return memOrderItems{t.s} }
func (t memTx) Carts() repo.CartRepository                               { return memCarts{t.s} }
func (t memTx) CartItems() repo.CartItemRepository                       { return memCartItems{t.s} }
func (t memTx) Inventory() repo.InventoryRepository                      { return memInventory{t.s} }
func (t memTx) Products() repo.ProductRepository                         { return memProducts{t.s} }
func (t memTx) PaymentNotifications() repo.PaymentNotificationRepository { return memNotifs{t.s} }
func (t memTx) AuditLogs() repo.AuditLogRepository                       { return memAudit{t.s} }

// =====================
// tenants / users
// =====================

type memTenants struct{ s *memStore }

func (r memTenants) Create(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	for _, v := range r.s.tenants {
		if v.Slug == t.Slug {
			return model.Tenant{}, repo.ErrDuplicate
		}
	}
	t.ID = r.s.nextID()
	r.s.tenants[t.ID] = t
	return t, nil
}

func (r memTenants) FindByID(ctx context.Context, id int64) (model.Tenant, error) {
	t, ok := r.s.tenants[id]
	if !ok {
		return model.Tenant{}, repo.ErrNotFound
	}
	return t, nil
}

func (r memTenants) FindBySlug(ctx context.Context, slug string) (model.Tenant, error) {
	for _, t := range r.s.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return model.Tenant{}, repo.ErrNotFound
}

func (r memTenants) List(ctx context.Context) ([]model.Tenant, error) {
	out := []model.Tenant{}
	for _, id := range sortedKeys(r.s.tenants) {
		out = append(out, r.s.tenants[id])
	}
	return out, nil
}

func (r memTenants) Update(ctx context.Context, t model.Tenant) error {
	if _, ok := r.s.tenants[t.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.tenants[t.ID] = t
	return nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, user *model.User) error {
	for _, v := range r.s.users {
		if v.Email == user.Email {
			return repo.ErrDuplicate
		}
	}
	user.ID = r.s.nextID()
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	u, ok := r.s.users[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r memUsers) List(ctx context.Context, f repo.UserListFilter) ([]model.User, int64, error) {
	list := []model.User{}
	for _, id := range sortedKeys(r.s.users) {
		u := r.s.users[id]
		if f.TenantID != nil && (u.TenantID == nil || *u.TenantID != *f.TenantID) {
			continue
		}
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		list = append(list, u)
	}
	return paginate(list, f.Page, f.Limit), int64(len(list)), nil
}

func (r memUsers) Update(ctx context.Context, user *model.User) error {
	if _, ok := r.s.users[user.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r memUsers) IncrementTokenVersion(ctx context.Context, userID int64) (int, error) {
	u, ok := r.s.users[userID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	u.TokenVersion++
	r.s.users[userID] = u
	return u.TokenVersion, nil
}

// =====================
// products / inventory
// =====================

type memProducts struct{ s *memStore }

func (r memProducts) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	list := []model.Product{}
	for _, id := range sortedKeys(r.s.products) {
		p := r.s.products[id]
		if p.TenantID != q.TenantID || (!q.IncludeInactive && !p.IsActive) {
			continue
		}
		if q.Q != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Q)) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.MinPrice != nil && p.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && p.Price > *q.MaxPrice {
			continue
		}
		list = append(list, p)
	}
	switch q.Sort {
	case "price_asc":
		sort.SliceStable(list, func(i, j int) bool { return list[i].Price < list[j].Price })
	case "price_desc":
		sort.SliceStable(list, func(i, j int) bool { return list[i].Price > list[j].Price })
	}
	return paginate(list, q.Page, q.Limit), int64(len(list)), nil
}

func (r memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = r.s.nextID()
	r.s.products[p.ID] = p
	return p, nil
}

func (r memProducts) Update(ctx context.Context, p model.Product) error {
	cur, ok := r.s.products[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = cur.Stock
	r.s.products[p.ID] = p
	return nil
}

func (r memProducts) SoftDelete(ctx context.Context, id int64) error {
	if _, ok := r.s.products[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

type memInventory struct{ s *memStore }

func (r memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := r.s.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.s.products[productID] = p
	return true, nil
}

func (r memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	p, ok := r.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	r.s.products[productID] = p
	return nil
}

func (r memInventory) SetStockWithAdjustment(ctx context.Context, actorUserID int64, productID int64, newStock int64, reason string) (int64, error) {
	p, ok := r.s.products[productID]
	if !ok {
		return 0, repo.ErrNotFound
	}
	before := p.Stock
	p.Stock = newStock
	r.s.products[productID] = p
	r.s.adjustments = append(r.s.adjustments, model.InventoryAdjustment{
		ID:          r.s.nextID(),
		ProductID:   productID,
		ActorUserID: actorUserID,
		Delta:       newStock - before,
		Reason:      reason,
	})
	return before, nil
}

func (r memInventory) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	adjustment.ID = r.s.nextID()
	r.s.adjustments = append(r.s.adjustments, adjustment)
	return nil
}

// =====================
// carts
// =====================

type memCarts struct{ s *memStore }

func (r memCarts) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	for _, id := range sortedKeys(r.s.carts) {
		c := r.s.carts[id]
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r memCarts) FindActiveByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	r.s.cartLocks++
	return r.FindActiveByUserID(ctx, userID)
}

func (r memCarts) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, err := r.FindActiveByUserID(ctx, userID); err == nil {
		return c, nil
	}
	c := model.Cart{ID: r.s.nextID(), UserID: userID, Status: model.CartStatusActive}
	r.s.carts[c.ID] = c
	return c, nil
}

func (r memCarts) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	c, ok := r.s.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.Status = status
	r.s.carts[cartID] = c
	return nil
}

func (r memCarts) Clear(ctx context.Context, cartID int64) error {
	for id, it := range r.s.cartItems {
		if it.CartID == cartID {
			delete(r.s.cartItems, id)
		}
	}
	return nil
}

type memCartItems struct{ s *memStore }

func (r memCartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	for _, id := range sortedKeys(r.s.cartItems) {
		if it := r.s.cartItems[id]; it.CartID == cartID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r memCartItems) UpsertByCartAndProduct(ctx context.Context, cartID int64, productID int64, addQty int64, unitPriceSnapshot int64) error {
	for id, it := range r.s.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity += addQty
			r.s.cartItems[id] = it
			return nil
		}
	}
	id := r.s.nextID()
	r.s.cartItems[id] = model.CartItem{ID: id, CartID: cartID, ProductID: productID, Quantity: addQty, UnitPriceSnapshot: unitPriceSnapshot}
	return nil
}

func (r memCartItems) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	it, ok := r.s.cartItems[cartItemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	r.s.cartItems[cartItemID] = it
	return nil
}

func (r memCartItems) DeleteByID(ctx context.Context, cartItemID int64) error {
	if _, ok := r.s.cartItems[cartItemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.s.cartItems, cartItemID)
	return nil
}

func (r memCartItems) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	it, ok := r.s.cartItems[cartItemID]
	if !ok {
		return model.CartItem{}, repo.ErrNotFound
	}
	return it, nil
}

func (r memCartItems) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	it, ok := r.s.cartItems[cartItemID]
	if !ok {
		return false, nil
	}
	c, ok := r.s.carts[it.CartID]
	return ok && c.UserID == userID && c.Status == model.CartStatusActive, nil
}

// =====================
// addresses
// =====================

type memAddresses struct{ s *memStore }

func (r memAddresses) Create(ctx context.Context, a model.Address) (model.Address, error) {
	//uq_addresses_user_default と同じ制約
	if a.IsDefault {
		for _, v := range r.s.addresses {
			if v.UserID == a.UserID && v.IsDefault {
				return model.Address{}, repo.ErrDuplicate
			}
		}
	}
	a.ID = r.s.nextID()
	r.s.addresses[a.ID] = a
	return a, nil
}

func (r memAddresses) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	out := []model.Address{}
	for _, id := range sortedKeys(r.s.addresses) {
		if a := r.s.addresses[id]; a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

func (r memAddresses) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	a, ok := r.s.addresses[addressID]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r memAddresses) Update(ctx context.Context, a model.Address) error {
	if _, ok := r.s.addresses[a.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.addresses[a.ID] = a
	return nil
}

func (r memAddresses) Delete(ctx context.Context, userID, addressID int64) error {
	a, ok := r.s.addresses[addressID]
	if !ok || a.UserID != userID {
		return repo.ErrNotFound
	}
	delete(r.s.addresses, addressID)
	if a.IsDefault {
		for _, id := range sortedKeys(r.s.addresses) {
			if next := r.s.addresses[id]; next.UserID == userID {
				next.IsDefault = true
				r.s.addresses[id] = next
				break
			}
		}
	}
	return nil
}

func (r memAddresses) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memAddresses) SetDefault(ctx context.Context, userID, addressID int64) error {
	if a, ok := r.s.addresses[addressID]; !ok || a.UserID != userID {
		return repo.ErrNotFound
	}
	for id, a := range r.s.addresses {
		if a.UserID == userID {
			a.IsDefault = id == addressID
			r.s.addresses[id] = a
		}
	}
	return nil
}

// =====================
// orders / payments / audit
// =====================

type memOrders struct{ s *memStore }

func (r memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r memOrders) FindByOrderNumber(ctx context.Context, orderNumber string) (model.Order, error) {
	for _, o := range r.s.orders {
		if o.OrderNumber == orderNumber {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r memOrders) FindByOrderNumberForUpdate(ctx context.Context, orderNumber string) (model.Order, error) {
	return r.FindByOrderNumber(ctx, orderNumber)
}

func (r memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	list := []model.Order{}
	for _, id := range sortedKeys(r.s.orders) {
		if o := r.s.orders[id]; o.UserID == userID {
			list = append(list, o)
		}
	}
	slices.Reverse(list)
	return paginate(list, page, limit), int64(len(list)), nil
}

func (r memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	if r.s.failNextOrderCreate {
		r.s.failNextOrderCreate = false
		return 0, repo.ErrDuplicate
	}
	for _, o := range r.s.orders {
		if o.OrderNumber == order.OrderNumber || (o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey) {
			return 0, repo.ErrDuplicate
		}
	}
	order.ID = r.s.nextID()
	r.s.orders[order.ID] = order
	return order.ID, nil
}

func (r memOrders) Save(ctx context.Context, order model.Order) error {
	if _, ok := r.s.orders[order.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.orders[order.ID] = order
	return nil
}

func (r memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	for _, o := range r.s.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (r memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	list := []model.Order{}
	for _, id := range sortedKeys(r.s.orders) {
		o := r.s.orders[id]
		if f.TenantID != nil && o.TenantID != *f.TenantID {
			continue
		}
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.PaymentStatus != "" && string(o.PaymentStatus) != f.PaymentStatus {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		list = append(list, o)
	}
	return paginate(list, f.Page, f.Limit), int64(len(list)), nil
}

type memOrderItems struct{ s *memStore }

func (r memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		it.ID = r.s.nextID()
		it.OrderID = orderID
		out = append(out, it)
	}
	r.s.orderItems[orderID] = out
	return nil
}

func (r memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return slices.Clone(r.s.orderItems[orderID]), nil
}

type memNotifs struct{ s *memStore }

func (r memNotifs) Create(ctx context.Context, n model.PaymentNotification) error {
	for _, v := range r.s.notifs {
		if v.TransactionID == n.TransactionID && v.TransactionStatus == n.TransactionStatus {
			return repo.ErrDuplicate
		}
	}
	n.ID = r.s.nextID()
	r.s.notifs = append(r.s.notifs, n)
	return nil
}

func (r memNotifs) ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentNotification, error) {
	out := []model.PaymentNotification{}
	for _, n := range r.s.notifs {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memAudit struct{ s *memStore }

func (r memAudit) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = r.s.nextID()
	r.s.audits = append(r.s.audits, log)
	return nil
}

func (r memAudit) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	out := []model.AuditLog{}
	for _, l := range r.s.audits {
		if f.TenantID != nil && l.TenantID != *f.TenantID {
			continue
		}
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// =====================
// product cache
// =====================

type memProductCache struct {
	items   map[int64]model.Product
	deleted []int64
}

func newMemProductCache() *memProductCache {
	return &memProductCache{items: map[int64]model.Product{}}
}

func (c *memProductCache) Get(ctx context.Context, id int64) (model.Product, bool) {
	p, ok := c.items[id]
	return p, ok
}

func (c *memProductCache) Set(ctx context.Context, p model.Product) { c.items[p.ID] = p }

func (c *memProductCache) Delete(ctx context.Context, id int64) {
	delete(c.items, id)
	c.deleted = append(c.deleted, id)
}

var (
	_ repo.ProductCache                  = (*memProductCache)(nil)
	_ repo.TransactionManager            = (*memStore)(nil)
	_ repo.TenantRepository              = memTenants{}
	_ repo.UserRepository                = memUsers{}
	_ repo.AddressRepository             = memAddresses{}
	_ repo.PaymentNotificationRepository = memNotifs{}
)
