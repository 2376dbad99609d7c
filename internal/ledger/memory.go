package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline-backend/pkg/db/models"
)

// MemoryStore keeps products in process. Each product has its own mutex so
// reservations on different products never contend.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*memoryProduct
}

type memoryProduct struct {
	mu      sync.Mutex
	product models.Product
}

func NewMemoryStore(products ...models.Product) *MemoryStore {
	s := &MemoryStore{products: make(map[uuid.UUID]*memoryProduct, len(products))}
	for _, p := range products {
		s.Put(p)
	}
	return s
}

// Put inserts or replaces a product. A nil id is assigned.
func (s *MemoryStore) Put(p models.Product) uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &memoryProduct{product: p}
	return p.ID
}

func (s *MemoryStore) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry := s.entry(id)
	if entry == nil {
		return nil, ErrProductNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	product := entry.product
	return &product, nil
}

func (s *MemoryStore) ConditionalDecrement(ctx context.Context, id uuid.UUID, qty int) (Decrement, bool, error) {
	if err := ctx.Err(); err != nil {
		return Decrement{}, false, err
	}
	entry := s.entry(id)
	if entry == nil {
		return Decrement{}, false, nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.product.QuantityOnHand < qty {
		return Decrement{}, false, nil
	}
	entry.product.QuantityOnHand -= qty
	return Decrement{
		UnitPrice: entry.product.PriceCents,
		Remaining: entry.product.QuantityOnHand,
	}, true, nil
}

// QuantityOnHand returns the current stock for id.
func (s *MemoryStore) QuantityOnHand(id uuid.UUID) (int, bool) {
	entry := s.entry(id)
	if entry == nil {
		return 0, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.product.QuantityOnHand, true
}

func (s *MemoryStore) entry(id uuid.UUID) *memoryProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id]
}
