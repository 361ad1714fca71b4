package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/repository"
)

type fakeMarket struct {
	items     []model.MarketplaceItem
	listCalls int
	listErr   error
}

var _ repository.MarketplaceRepository = (*fakeMarket)(nil)

func (f *fakeMarket) List(context.Context) ([]model.MarketplaceItem, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func testCatalog() []model.MarketplaceItem {
	return []model.MarketplaceItem{
		{ID: "golden-power", Name: "Golden Power", Price: 20,
			Effect: model.Effect{Kind: model.EffectGoldenPowerUp, Duration: 5 * time.Second}},
		{ID: "layer-wipe", Name: "Layer Wipe", Price: 30,
			Effect: model.Effect{Kind: model.EffectClearActiveLayer}},
	}
}

func seedAccount(users *fakeUsers, balance int64) model.User {
	a := &model.Account{ID: uuid.Must(uuid.NewV4()), Username: "alice", Currency: balance}
	users.byName = map[string]*model.Account{"alice": a}
	return model.User{ID: a.ID, Name: a.Username, Role: model.RoleArtist, Currency: balance}
}

func TestEconomy_Catalog_LoadedOnceAndCached(t *testing.T) {
	t.Parallel()
	market := &fakeMarket{items: testCatalog()}
	s := NewEconomyService(&fakeUsers{}, market)

	for i := 0; i < 3; i++ {
		items, err := s.Catalog(context.Background())
		if err != nil {
			t.Fatalf("Catalog: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("catalog size = %d", len(items))
		}
	}
	if market.listCalls != 1 {
		t.Fatalf("List called %d times, want 1", market.listCalls)
	}
}

func TestEconomy_Catalog_ErrorNotCached(t *testing.T) {
	t.Parallel()
	market := &fakeMarket{listErr: errors.New("db down")}
	s := NewEconomyService(&fakeUsers{}, market)

	if _, err := s.Catalog(context.Background()); err == nil {
		t.Fatalf("want propagated storage error")
	}
	market.listErr = nil
	market.items = testCatalog()
	items, err := s.Catalog(context.Background())
	if err != nil || len(items) != 2 {
		t.Fatalf("Catalog after recovery: %v (%d items)", err, len(items))
	}
}

func TestEconomy_Purchase_DebitsAndReceipts(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	buyer := seedAccount(users, 100)
	s := NewEconomyService(users, &fakeMarket{items: testCatalog()})

	item, receipt, err := s.Purchase(context.Background(), buyer, "golden-power")
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if item.ID != "golden-power" || receipt.Price != 20 || receipt.Balance != 80 {
		t.Fatalf("bad receipt: item=%+v receipt=%+v", item, receipt)
	}
	if receipt.When.IsZero() {
		t.Fatalf("receipt has no timestamp")
	}
}

func TestEconomy_Purchase_InsufficientLeavesBalance(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	buyer := seedAccount(users, 15)
	s := NewEconomyService(users, &fakeMarket{items: testCatalog()})

	if _, _, err := s.Purchase(context.Background(), buyer, "golden-power"); !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Fatalf("underfunded purchase: %v, want ErrInsufficientFunds", err)
	}
	a, err := users.GetByID(context.Background(), buyer.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.Currency != 15 {
		t.Fatalf("balance after failed purchase = %d, want 15", a.Currency)
	}
}

func TestEconomy_Purchase_GuestAndUnknownItem(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	buyer := seedAccount(users, 100)
	s := NewEconomyService(users, &fakeMarket{items: testCatalog()})

	guest := model.User{ID: uuid.Must(uuid.NewV4()), Name: "anon", Guest: true}
	if _, _, err := s.Purchase(context.Background(), guest, "golden-power"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("guest purchase: %v, want ErrUnauthorized", err)
	}
	if _, _, err := s.Purchase(context.Background(), buyer, "hoverboard"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("unknown item: %v, want ErrNotFound", err)
	}
}

func TestEconomy_Refund_CreditsBack(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	buyer := seedAccount(users, 100)
	s := NewEconomyService(users, &fakeMarket{items: testCatalog()})

	if _, _, err := s.Purchase(context.Background(), buyer, "layer-wipe"); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if err := s.Refund(context.Background(), buyer.ID, 30); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	a, _ := users.GetByID(context.Background(), buyer.ID)
	if a.Currency != 100 {
		t.Fatalf("balance after refund = %d, want 100", a.Currency)
	}
}

// Two concurrent purchases must never both pass the balance check against a
// stale read: with 50 on the account and a price of 20, exactly two of the
// attempts succeed no matter how they interleave.
func TestEconomy_Purchase_ConcurrentAtomicity(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{}
	buyer := seedAccount(users, 50)
	s := NewEconomyService(users, &fakeMarket{items: testCatalog()})

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Purchase(context.Background(), buyer, "golden-power")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, underfunded int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, errs.ErrInsufficientFunds):
			underfunded++
		default:
			t.Fatalf("unexpected purchase error: %v", err)
		}
	}
	if ok != 2 || underfunded != attempts-2 {
		t.Fatalf("ok=%d underfunded=%d, want exactly 2 successes", ok, underfunded)
	}
	a, _ := users.GetByID(context.Background(), buyer.ID)
	if a.Currency != 10 {
		t.Fatalf("final balance = %d, want 10", a.Currency)
	}
}

func TestDisabledEconomy_RelayMode(t *testing.T) {
	t.Parallel()
	var e DisabledEconomy

	items, err := e.Catalog(context.Background())
	if err != nil || len(items) != 0 {
		t.Fatalf("relay catalog: %v (%d items)", err, len(items))
	}
	buyer := model.User{ID: uuid.Must(uuid.NewV4()), Name: "x", Role: model.RoleArtist}
	if _, _, err := e.Purchase(context.Background(), buyer, "anything"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("relay purchase: %v, want ErrUnauthorized", err)
	}
	if err := e.Refund(context.Background(), buyer.ID, 5); err != nil {
		t.Fatalf("relay refund: %v", err)
	}
}
