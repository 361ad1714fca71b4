package service

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/repository"
)

// EconomyService performs atomic, per-user-serialized purchases: the balance
// check, debit and persistence write happen as one unit, so two concurrent
// purchases for the same user can never both pass the check against a stale
// read.
type EconomyService struct {
	users  repository.UserRepository
	market repository.MarketplaceRepository

	mu      sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
	catalog []model.MarketplaceItem
}

// NewEconomyService constructs an economy engine over persistent storage.
func NewEconomyService(users repository.UserRepository, market repository.MarketplaceRepository) *EconomyService {
	return &EconomyService{
		users:  users,
		market: market,
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

// Catalog returns the immutable item catalog, loaded once and cached.
func (s *EconomyService) Catalog(ctx context.Context) ([]model.MarketplaceItem, error) {
	s.mu.Lock()
	if s.catalog != nil {
		out := s.catalog
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	items, err := s.market.List(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.catalog = items
	s.mu.Unlock()
	return items, nil
}

// Purchase debits the item price from the buyer's persisted balance. Guests
// cannot purchase. The per-user mutex serializes the whole check-debit
// sequence; the debit itself is conditional in storage, so the balance can
// never go negative even across processes.
func (s *EconomyService) Purchase(ctx context.Context, buyer model.User, itemID string) (model.MarketplaceItem, model.Receipt, error) {
	if buyer.Guest {
		return model.MarketplaceItem{}, model.Receipt{}, errs.ErrUnauthorized
	}
	item, err := s.item(ctx, itemID)
	if err != nil {
		return model.MarketplaceItem{}, model.Receipt{}, err
	}

	lock := s.userLock(buyer.ID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := s.users.Debit(ctx, buyer.ID, item.Price)
	if err != nil {
		return model.MarketplaceItem{}, model.Receipt{}, err
	}
	return item, model.Receipt{
		ItemID:  item.ID,
		Price:   item.Price,
		Balance: balance,
		When:    time.Now(),
	}, nil
}

// Refund returns a debited amount after a failed effect application.
func (s *EconomyService) Refund(ctx context.Context, userID uuid.UUID, amount int64) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.users.Credit(ctx, userID, amount)
	return err
}

func (s *EconomyService) item(ctx context.Context, id string) (model.MarketplaceItem, error) {
	items, err := s.Catalog(ctx)
	if err != nil {
		return model.MarketplaceItem{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return model.MarketplaceItem{}, errs.ErrNotFound
}

func (s *EconomyService) userLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// DisabledEconomy serves anonymous relay mode: no persistence, no catalog,
// every purchase rejected.
type DisabledEconomy struct{}

// Catalog is empty in relay mode.
func (DisabledEconomy) Catalog(context.Context) ([]model.MarketplaceItem, error) { return nil, nil }

// Purchase always fails: there is no balance to debit.
func (DisabledEconomy) Purchase(context.Context, model.User, string) (model.MarketplaceItem, model.Receipt, error) {
	return model.MarketplaceItem{}, model.Receipt{}, errs.ErrUnauthorized
}

// Refund is a no-op.
func (DisabledEconomy) Refund(context.Context, uuid.UUID, int64) error { return nil }
