package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/catalogrec/core"
)

// MemoryCatalog 是内存实现，所有方法并发安全。
// 返回的 Product 是副本，调用方修改不会影响存储。
type MemoryCatalog struct {
	mu           sync.RWMutex
	products     map[string]*core.Product
	interactions []core.Interaction
	prefs        map[prefKey]core.PreferenceRecord
}

type prefKey struct {
	userID string
	typ    core.PreferenceType
	key    string
}

// NewMemoryCatalog 创建 MemoryCatalog，可选地预置商品。
func NewMemoryCatalog(products ...*core.Product) *MemoryCatalog {
	m := &MemoryCatalog{
		products: make(map[string]*core.Product),
		prefs:    make(map[prefKey]core.PreferenceRecord),
	}
	for _, p := range products {
		m.PutProduct(p)
	}
	return m
}

func (m *MemoryCatalog) Name() string { return "memory" }

// PutProduct 新增或覆盖商品。
func (m *MemoryCatalog) PutProduct(p *core.Product) {
	if p == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = copyProduct(p)
}

func (m *MemoryCatalog) VisibleProducts(ctx context.Context) ([]*core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*core.Product, 0, len(m.products))
	for _, p := range m.products {
		if p.Visible && p.Published {
			out = append(out, copyProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryCatalog) GetProducts(ctx context.Context, ids []string) (map[string]*core.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*core.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = copyProduct(p)
		}
	}
	return out, nil
}

func (m *MemoryCatalog) InteractionsSince(ctx context.Context, since time.Time) ([]core.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Interaction, 0)
	for _, in := range m.interactions {
		if !in.CreatedAt.Before(since) {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryCatalog) UserInteractions(ctx context.Context, userID string, limit int) ([]core.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Interaction, 0)
	for _, in := range m.interactions {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryCatalog) ProductInteractions(ctx context.Context, productID string, types ...core.InteractionType) ([]core.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.Interaction, 0)
	for _, in := range m.interactions {
		if in.ProductID == productID && matchType(in.Type, types) {
			out = append(out, in)
		}
	}
	return out, nil
}

// RecordInteraction 实现 core.InteractionRecorder。
func (m *MemoryCatalog) RecordInteraction(ctx context.Context, in core.Interaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if in.ProductID == "" {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog: interaction product id is required")
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in)
	return nil
}

func (m *MemoryCatalog) GetPreferences(ctx context.Context, userID string) ([]core.PreferenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.PreferenceRecord, 0)
	for k, rec := range m.prefs {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	sortPreferences(out)
	return out, nil
}

func (m *MemoryCatalog) GetPreference(ctx context.Context, userID string, typ core.PreferenceType, key string) (*core.PreferenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.prefs[prefKey{userID, typ, key}]
	if !ok {
		return nil, core.ErrPreferenceNotFound
	}
	return &rec, nil
}

func (m *MemoryCatalog) CompareAndSwapPreference(ctx context.Context, rec core.PreferenceRecord, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := prefKey{rec.UserID, rec.Type, rec.Key}
	cur, exists := m.prefs[k]
	switch {
	case expectedVersion == 0 && exists:
		return core.ErrPreferenceConflict
	case expectedVersion != 0 && (!exists || cur.Version != expectedVersion):
		return core.ErrPreferenceConflict
	}
	rec.Version = expectedVersion + 1
	m.prefs[k] = rec
	return nil
}

func matchType(t core.InteractionType, types []core.InteractionType) bool {
	if len(types) == 0 {
		return true
	}
	for _, x := range types {
		if t == x {
			return true
		}
	}
	return false
}

func sortPreferences(recs []core.PreferenceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Type != recs[j].Type {
			return recs[i].Type < recs[j].Type
		}
		return recs[i].Key < recs[j].Key
	})
}

func copyProduct(p *core.Product) *core.Product {
	cp := *p
	cp.CategoryIDs = append([]string(nil), p.CategoryIDs...)
	return &cp
}

var (
	_ core.CatalogStore        = (*MemoryCatalog)(nil)
	_ core.InteractionRecorder = (*MemoryCatalog)(nil)
	_ core.PreferenceStore     = (*MemoryCatalog)(nil)
)
