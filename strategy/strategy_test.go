package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/catalogrec/catalog"
	"github.com/rushteam/catalogrec/core"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func product(id string, views int64, cats []string, brand string, price float64) *core.Product {
	return &core.Product{
		ID:          id,
		Name:        "product " + id,
		Price:       price,
		Visible:     true,
		Published:   true,
		BrandID:     brand,
		CategoryIDs: cats,
		ViewCount:   views,
	}
}

func ids(items []*core.Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func build(t *testing.T, typ core.AlgorithmType, params map[string]any, deps Deps) Strategy {
	t.Helper()
	if deps.Clock == nil {
		deps.Clock = fixedClock{testNow}
	}
	s, err := NewFactory().Build(core.AlgorithmConfig{Type: typ, Parameters: params}, deps)
	if err != nil {
		t.Fatalf("Build(%s) 失败: %v", typ, err)
	}
	return s
}

// 三个用户都买了 A；u1、u2 还买了 B，u3 还买了 C
func purchaseCatalog() *catalog.MemoryCatalog {
	cat := catalog.NewMemoryCatalog(
		product("A", 0, []string{"c1"}, "b1", 100),
		product("B", 0, []string{"c1"}, "b1", 100),
		product("C", 0, []string{"c2"}, "b2", 100),
	)
	ctx := context.Background()
	at := testNow.Add(-time.Hour)
	for _, in := range []core.Interaction{
		{UserID: "u1", ProductID: "A"}, {UserID: "u1", ProductID: "B"},
		{UserID: "u2", ProductID: "A"}, {UserID: "u2", ProductID: "B"},
		{UserID: "u3", ProductID: "A"}, {UserID: "u3", ProductID: "C"},
	} {
		in.Type = core.InteractionPurchase
		in.CreatedAt = at
		_ = cat.RecordInteraction(ctx, in)
	}
	return cat
}

func TestPopularity(t *testing.T) {
	hidden := product("hidden", 1000, nil, "", 10)
	hidden.Visible = false
	cat := catalog.NewMemoryCatalog(
		product("p1", 10, nil, "", 10),
		product("p2", 30, nil, "", 10),
		product("p3", 5, nil, "", 10),
		product("p4", 20, nil, "", 10),
		hidden,
	)

	tests := []struct {
		name   string
		params map[string]any
		want   []string
	}{
		{name: "defaults", want: []string{"p2", "p4", "p1", "p3"}},
		{name: "limit", params: map[string]any{"limit": 2}, want: []string{"p2", "p4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := build(t, core.AlgorithmPopularity, tt.params, Deps{Catalog: cat})
			got, err := s.Generate(context.Background(), &core.RecommendContext{})
			if err != nil {
				t.Fatal(err)
			}
			if !equalIDs(ids(got), tt.want) {
				t.Fatalf("Generate = %v，期望 %v", ids(got), tt.want)
			}
			if got[0].Score != 1 {
				t.Fatalf("最高分应归一化为 1，实际 %v", got[0].Score)
			}
		})
	}
}

func TestPopularity_ZeroSignalsStillReturnsResults(t *testing.T) {
	cat := catalog.NewMemoryCatalog(product("a", 0, nil, "", 10), product("b", 0, nil, "", 10))
	got, err := NewPopularity(cat, nil).Generate(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(got), []string{"a", "b"}) {
		t.Fatalf("Generate = %v", ids(got))
	}
}

type fakeSignals struct {
	signals map[string]core.ProductSignals
	err     error
}

func (f fakeSignals) Name() string { return "fake" }

func (f fakeSignals) ProductSignals(context.Context, []string) (map[string]core.ProductSignals, error) {
	return f.signals, f.err
}

func TestPopularity_Signals(t *testing.T) {
	cat := catalog.NewMemoryCatalog(product("a", 100, nil, "", 10), product("b", 1, nil, "", 10))
	ctx := context.Background()

	got, _ := NewPopularity(cat, fakeSignals{signals: map[string]core.ProductSignals{"b": {Views: 500}}}).Generate(ctx, nil)
	if !equalIDs(ids(got), []string{"b", "a"}) {
		t.Fatalf("外部信号应覆盖目录计数: %v", ids(got))
	}

	got, _ = NewPopularity(cat, fakeSignals{err: errors.New("down")}).Generate(ctx, nil)
	if !equalIDs(ids(got), []string{"a", "b"}) {
		t.Fatalf("信号失败时应使用目录计数: %v", ids(got))
	}
}

func TestTrending(t *testing.T) {
	cat := catalog.NewMemoryCatalog(
		product("old", 0, nil, "", 10),
		product("new", 0, nil, "", 10),
		product("ancient", 0, nil, "", 10),
	)
	ctx := context.Background()
	events := []core.Interaction{
		// 3 次 48 小时前的浏览：3 * 0.25 = 0.75
		{ProductID: "old", Type: core.InteractionView, CreatedAt: testNow.Add(-48 * time.Hour)},
		{ProductID: "old", Type: core.InteractionView, CreatedAt: testNow.Add(-48 * time.Hour)},
		{ProductID: "old", Type: core.InteractionView, CreatedAt: testNow.Add(-48 * time.Hour)},
		// 1 次刚发生的浏览：1.0
		{ProductID: "new", Type: core.InteractionView, CreatedAt: testNow},
		// 窗口外
		{ProductID: "ancient", Type: core.InteractionPurchase, CreatedAt: testNow.Add(-30 * 24 * time.Hour)},
	}
	for _, ev := range events {
		_ = cat.RecordInteraction(ctx, ev)
	}

	s := build(t, core.AlgorithmTrending, nil, Deps{Catalog: cat})
	got, err := s.Generate(ctx, &core.RecommendContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(got), []string{"new", "old"}) {
		t.Fatalf("Generate = %v", ids(got))
	}
	if got[1].Score < 0.74 || got[1].Score > 0.76 {
		t.Fatalf("衰减后的分数 = %v，期望约 0.75", got[1].Score)
	}
}

func TestTrending_InvalidParams(t *testing.T) {
	_, err := NewFactory().Build(core.AlgorithmConfig{
		Type:       core.AlgorithmTrending,
		Parameters: map[string]any{"half_life_hours": 0},
	}, Deps{Catalog: catalog.NewMemoryCatalog()})
	if err == nil {
		t.Fatal("half_life_hours=0 应构建失败")
	}
}

func TestContentBased(t *testing.T) {
	target := product("p1", 0, []string{"c1"}, "b1", 100)
	cat := catalog.NewMemoryCatalog(
		target,
		product("p2", 0, []string{"c1"}, "b1", 100), // 1.0
		product("p3", 0, []string{"c2"}, "b2", 100), // 0.2
		product("p4", 0, []string{"c1"}, "b2", 50),  // 0.6
	)
	ctx := context.Background()
	s := build(t, core.AlgorithmContentBased, nil, Deps{Catalog: cat})

	got, err := s.Generate(ctx, &core.RecommendContext{Product: target})
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(got), []string{"p2", "p4", "p3"}) {
		t.Fatalf("Generate = %v", ids(got))
	}

	// 没有商品也没有偏好时不产生结果
	got, err = s.Generate(ctx, &core.RecommendContext{})
	if err != nil || len(got) != 0 {
		t.Fatalf("无输入时 Generate = %v, %v", ids(got), err)
	}
}

func TestContentBased_Preferences(t *testing.T) {
	cat := catalog.NewMemoryCatalog(
		product("shoe", 0, []string{"shoes"}, "b1", 80),
		product("hat", 0, []string{"hats"}, "b2", 80),
	)
	ctx := context.Background()
	_ = cat.CompareAndSwapPreference(ctx, core.PreferenceRecord{
		UserID: "u1", Type: core.PreferenceCategory, Key: "shoes", Score: 0.8,
	}, 0)

	s := build(t, core.AlgorithmContentBased, nil, Deps{Catalog: cat, Preferences: cat})
	got, err := s.Generate(ctx, &core.RecommendContext{User: &core.User{ID: "u1"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "shoe" {
		t.Fatalf("Generate = %v，期望只有 shoe", ids(got))
	}
}

func TestCollaborative(t *testing.T) {
	cat := purchaseCatalog()
	s := build(t, core.AlgorithmCollaborative, nil, Deps{Catalog: cat})

	got, err := s.Generate(context.Background(), &core.RecommendContext{Product: &core.Product{ID: "A"}})
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(got), []string{"B", "C"}) {
		t.Fatalf("Generate = %v", ids(got))
	}
	// B: 2/sqrt(3*2)，C: 1/sqrt(3*1)，归一化后 C ≈ 0.707
	if got[1].Score < 0.70 || got[1].Score > 0.71 {
		t.Fatalf("C 的分数 = %v", got[1].Score)
	}
}

func TestCollaborative_UserHistoryExcludesSeen(t *testing.T) {
	cat := purchaseCatalog()
	ctx := context.Background()
	_ = cat.RecordInteraction(ctx, core.Interaction{
		UserID: "u4", ProductID: "A", Type: core.InteractionView, CreatedAt: testNow.Add(-time.Minute),
	})
	_ = cat.RecordInteraction(ctx, core.Interaction{
		UserID: "u4", ProductID: "B", Type: core.InteractionView, CreatedAt: testNow.Add(-time.Minute),
	})

	s := build(t, core.AlgorithmCollaborative, nil, Deps{Catalog: cat})
	got, err := s.Generate(ctx, &core.RecommendContext{User: &core.User{ID: "u4"}})
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(got), []string{"C"}) {
		t.Fatalf("已交互的商品不应被推荐: %v", ids(got))
	}
}

func TestHybrid(t *testing.T) {
	cat := purchaseCatalog()
	s := build(t, core.AlgorithmHybrid, map[string]any{"content_weight": 0.5, "collaborative_weight": 0.5}, Deps{Catalog: cat})

	target, _ := cat.GetProducts(context.Background(), []string{"A"})
	got, err := s.Generate(context.Background(), &core.RecommendContext{Product: target["A"]})
	if err != nil {
		t.Fatal(err)
	}
	// B 同类目同品牌且协同分最高
	if len(got) != 2 || got[0].ID != "B" || got[0].Score != 1 {
		t.Fatalf("Generate = %v", ids(got))
	}
}

func TestCrossSell(t *testing.T) {
	s := build(t, core.AlgorithmCrossSell, nil, Deps{Catalog: purchaseCatalog()})
	ctx := context.Background()

	got, err := s.Generate(ctx, &core.RecommendContext{Product: &core.Product{ID: "A"}})
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(ids(got), []string{"B", "C"}) || got[1].Score != 0.5 {
		t.Fatalf("Generate = %v", ids(got))
	}

	got, err = s.Generate(ctx, &core.RecommendContext{})
	if err != nil || len(got) != 0 {
		t.Fatalf("没有商品时应为空: %v, %v", ids(got), err)
	}
}

func TestUpSell(t *testing.T) {
	target := product("t", 0, []string{"c1"}, "b1", 100)
	cat := catalog.NewMemoryCatalog(
		target,
		product("cheaper", 0, []string{"c1"}, "b1", 80),
		product("same", 0, []string{"c1"}, "b1", 100),
		product("near", 0, []string{"c1"}, "b2", 150),
		product("far", 0, []string{"c1"}, "b1", 290),
		product("too_far", 0, []string{"c1"}, "b1", 400),
		product("other_cat", 0, []string{"c9"}, "b1", 150),
	)
	s := build(t, core.AlgorithmUpSell, nil, Deps{Catalog: cat})
	got, err := s.Generate(context.Background(), &core.RecommendContext{Product: target})
	if err != nil {
		t.Fatal(err)
	}
	// near: 0.5 + 0.3*0.75 = 0.725；far: 0.5 + 0.2 + 0.3*0.05 = 0.715
	if !equalIDs(ids(got), []string{"near", "far"}) {
		t.Fatalf("Generate = %v", ids(got))
	}
}

func TestUpSell_InvalidRatio(t *testing.T) {
	_, err := NewFactory().Build(core.AlgorithmConfig{
		Type:       core.AlgorithmUpSell,
		Parameters: map[string]any{"min_ratio": 2, "max_ratio": 1},
	}, Deps{Catalog: catalog.NewMemoryCatalog()})
	if err == nil {
		t.Fatal("min_ratio > max_ratio 应构建失败")
	}
}
