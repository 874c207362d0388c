package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/catalogrec/cache"
	"github.com/rushteam/catalogrec/catalog"
	"github.com/rushteam/catalogrec/config"
	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/utils"
	"github.com/rushteam/catalogrec/ranking"
	"github.com/rushteam/catalogrec/store"
	"github.com/rushteam/catalogrec/strategy"
	"github.com/rushteam/catalogrec/telemetry"
)

// countingCatalog 统计 VisibleProducts 调用次数。
type countingCatalog struct {
	*catalog.MemoryCatalog
	visible atomic.Int64
}

func (c *countingCatalog) VisibleProducts(ctx context.Context) ([]*core.Product, error) {
	c.visible.Add(1)
	return c.MemoryCatalog.VisibleProducts(ctx)
}

// sampleSink 收集性能样本。
type sampleSink struct {
	mu      sync.Mutex
	samples []core.PerformanceSample
}

func (s *sampleSink) Record(sample core.PerformanceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
}

func (s *sampleSink) last(t *testing.T) core.PerformanceSample {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		t.Fatal("no samples recorded")
	}
	return s.samples[len(s.samples)-1]
}

func catalogWithViews() *countingCatalog {
	views := []int64{10, 30, 5, 20}
	mc := catalog.NewMemoryCatalog()
	for i, v := range views {
		mc.PutProduct(&core.Product{
			ID:        "p" + string(rune('1'+i)),
			Name:      "product",
			Price:     float64(10 * (i + 1)),
			Visible:   true,
			Published: true,
			ViewCount: v,
		})
	}
	return &countingCatalog{MemoryCatalog: mc}
}

func homepageBlock(active bool) core.Block {
	return core.Block{
		Name:          "homepage_featured",
		Active:        active,
		MaxResults:    3,
		CacheDuration: 300,
		Algorithms: []core.AlgorithmConfig{
			{Type: core.AlgorithmPopularity, Parameters: map[string]any{"limit": 10}},
		},
	}
}

type fixture struct {
	engine  *Engine
	catalog *countingCatalog
	cache   *cache.Cache
	sink    *sampleSink
}

func newFixture(t *testing.T, blocks []core.Block, opts ...Option) *fixture {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })

	f := &fixture{
		catalog: catalogWithViews(),
		cache:   cache.New(kv),
		sink:    &sampleSink{},
	}
	deps := Deps{
		Blocks:      config.NewMemoryBlockRepository(blocks...),
		Catalog:     f.catalog,
		Preferences: f.catalog.MemoryCatalog,
		Cache:       f.cache,
	}
	f.engine = New(deps, append([]Option{WithRecorder(f.sink)}, opts...)...)
	return f
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

func TestGetRecommendations_PopularityAndCache(t *testing.T) {
	f := newFixture(t, []core.Block{homepageBlock(true)})
	ctx := context.Background()

	first := f.engine.GetRecommendations(ctx, "homepage_featured", nil, nil, RequestContext{Type: "homepage"})
	if got := ids(first); !equalIDs(got, []string{"p2", "p4", "p1"}) {
		t.Fatalf("first = %v, want [p2 p4 p1]", got)
	}
	if s := f.sink.last(t); s.CacheHit || s.Fallback || s.ResultCount != 3 {
		t.Errorf("first sample = %+v", s)
	}
	queries := f.catalog.visible.Load()

	second := f.engine.GetRecommendations(ctx, "homepage_featured", nil, nil, RequestContext{Type: "homepage"})
	if !equalIDs(ids(second), ids(first)) {
		t.Errorf("second = %v, want %v", ids(second), ids(first))
	}
	if got := f.catalog.visible.Load(); got != queries {
		t.Errorf("缓存命中不应查询目录: %d -> %d", queries, got)
	}
	if s := f.sink.last(t); !s.CacheHit || s.Fallback {
		t.Errorf("second sample = %+v", s)
	}

	key := cache.Key("homepage_featured", "", "", "homepage", nil)
	entry, found, err := f.cache.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("cache entry: found=%v err=%v", found, err)
	}
	if entry.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", entry.HitCount)
	}
}

func TestGetRecommendations_CacheHitSkipsStrategies(t *testing.T) {
	var calls atomic.Int64
	factory := strategy.NewFactory()
	factory.Register(core.AlgorithmPopularity, func(params map[string]any, deps strategy.Deps) (strategy.Strategy, error) {
		calls.Add(1)
		return strategy.NewPopularity(deps.Catalog, nil), nil
	})
	f := newFixture(t, []core.Block{homepageBlock(true)}, WithFactory(factory))
	ctx := context.Background()

	cached := []*core.Candidate{core.NewCandidate("cached-1")}
	cached[0].Score = 0.9
	key := cache.Key("homepage_featured", "", "", "", nil)
	if err := f.cache.Put(ctx, key, cached, time.Minute); err != nil {
		t.Fatal(err)
	}

	got := f.engine.GetRecommendations(ctx, "homepage_featured", nil, nil, RequestContext{})
	if !equalIDs(ids(got), []string{"cached-1"}) {
		t.Errorf("got %v, want cached list", ids(got))
	}
	if calls.Load() != 0 {
		t.Errorf("缓存命中不应构建算法, calls = %d", calls.Load())
	}
	entry, _, _ := f.cache.Get(ctx, key)
	if entry == nil || entry.HitCount != 1 {
		t.Errorf("hit count = %+v", entry)
	}
}

func TestGetRecommendations_FallbackEquivalence(t *testing.T) {
	f := newFixture(t, []core.Block{func() core.Block {
		b := homepageBlock(false)
		b.Name = "inactive"
		return b
	}()})
	ctx := context.Background()
	want := ids(f.engine.Fallback(ctx, nil, nil, RequestContext{}))
	if len(want) == 0 {
		t.Fatal("fallback 结果不应为空")
	}

	for _, name := range []string{"inactive", "missing"} {
		got := f.engine.GetRecommendations(ctx, name, nil, nil, RequestContext{})
		if !equalIDs(ids(got), want) {
			t.Errorf("%s: got %v, want %v", name, ids(got), want)
		}
		if s := f.sink.last(t); !s.Fallback || s.CacheHit {
			t.Errorf("%s: sample = %+v", name, s)
		}
	}
}

func TestGetRecommendations_PanicFallsBack(t *testing.T) {
	// 算法 panic 在聚合内被隔离；这里让 Block 解析本身 panic
	f := newFixture(t, nil)
	f.engine.deps.Blocks = panicBlocks{}

	got := f.engine.GetRecommendations(context.Background(), "homepage_featured", nil, nil, RequestContext{})
	if len(got) == 0 {
		t.Fatal("panic 后应返回 fallback 结果")
	}
	if s := f.sink.last(t); !s.Fallback {
		t.Errorf("sample = %+v", s)
	}
}

type panicBlocks struct{}

func (panicBlocks) GetBlock(context.Context, string) (*core.Block, error) { panic("corrupt config") }

func TestGetRecommendations_EmptyNotCached(t *testing.T) {
	b := homepageBlock(true)
	b.Algorithms = []core.AlgorithmConfig{{Type: "unknown"}}
	f := newFixture(t, []core.Block{b})
	ctx := context.Background()

	got := f.engine.GetRecommendations(ctx, b.Name, nil, nil, RequestContext{})
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil list", got)
	}
	if _, found, _ := f.cache.Get(ctx, cache.Key(b.Name, "", "", "", nil)); found {
		t.Error("空结果不应写入缓存")
	}
}

func TestFallback_CatalogError(t *testing.T) {
	e := New(Deps{Catalog: failingCatalog{}})
	got := e.Fallback(context.Background(), nil, nil, RequestContext{})
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil list", got)
	}
}

type failingCatalog struct{ core.CatalogStore }

func (failingCatalog) Name() string { return "failing" }

func (failingCatalog) VisibleProducts(context.Context) ([]*core.Product, error) {
	return nil, errors.New("db down")
}

func TestRecordInteraction(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := &core.User{ID: "u1"}
	product := &core.Product{ID: "p1", BrandID: "b1", Price: 20}

	f.engine.RecordInteraction(ctx, user, product, core.InteractionPurchase, 0)

	recs, err := f.catalog.GetPreferences(ctx, "u1")
	if err != nil || len(recs) == 0 {
		t.Fatalf("preferences = %v, %v", recs, err)
	}
	for _, r := range recs {
		if r.Score != 0.8 {
			t.Errorf("%s/%s = %v, want 0.8", r.Type, r.Key, r.Score)
		}
	}
	logged, _ := f.catalog.UserInteractions(ctx, "u1", 0)
	if len(logged) != 1 || logged[0].Type != core.InteractionPurchase {
		t.Errorf("interactions = %+v", logged)
	}
}

func TestRankResults_LoadsPreferences(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user := &core.User{ID: "u1"}
	f.engine.RecordInteraction(ctx, user, &core.Product{ID: "p9", BrandID: "b1", Price: 20}, core.InteractionPurchase, 0)

	results := []*ranking.Result{
		{ID: "x", Type: core.CandidateTypeProduct, Title: "plain"},
		{ID: "y", Type: core.CandidateTypeProduct, Title: "plain", BrandID: "b1"},
	}
	got := f.engine.RankResults(ctx, user, results, ranking.Context{})
	if len(got) != 2 || got[0].ID != "y" {
		t.Errorf("偏好品牌应排在前面: %s", got[0].ID)
	}
}

func TestRankingContext(t *testing.T) {
	rc := RankingContext(RequestContext{Params: map[string]any{
		"query":          "red shoes",
		"search_history": []any{"boots", 7.0},
		"location":       "SH",
	}})
	if rc.Query != "red shoes" || rc.Location != "SH" {
		t.Errorf("rc = %+v", rc)
	}
	if len(rc.SearchHistory) != 2 || rc.SearchHistory[1] != "7" {
		t.Errorf("history = %v", rc.SearchHistory)
	}
}

func TestOpen_Defaults(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "disabled"
	eng, err := Open(context.Background(), &cfg, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer eng.Close()

	mc, ok := eng.Catalog().(*catalog.MemoryCatalog)
	if !ok {
		t.Fatalf("catalog = %T", eng.Catalog())
	}
	mc.PutProduct(&core.Product{ID: "p1", Visible: true, Published: true, ViewCount: 3})
	eng.Blocks().(*config.MemoryBlockRepository).Put(homepageBlock(true))

	got := eng.GetRecommendations(context.Background(), "homepage_featured", nil, nil, RequestContext{})
	if !equalIDs(ids(got), []string{"p1"}) {
		t.Errorf("got %v", ids(got))
	}
}

func TestOpen_BadBlocksFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "disabled"
	cfg.BlocksPath = "/nonexistent/blocks.yaml"
	if _, err := Open(context.Background(), &cfg, prometheus.NewRegistry()); err == nil {
		t.Error("expected error")
	}
}

func TestEngine_RecorderPanicIgnored(t *testing.T) {
	f := newFixture(t, []core.Block{homepageBlock(true)},
		WithRecorder(telemetry.RecorderFunc(func(core.PerformanceSample) { panic("sink down") })))

	got := f.engine.GetRecommendations(context.Background(), "homepage_featured", nil, nil, RequestContext{})
	if len(got) != 3 {
		t.Errorf("got %v", ids(got))
	}
}

// gatedStrategy 在 gate 关闭前阻塞，用于构造并发未命中。
type gatedStrategy struct {
	calls   *atomic.Int64
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (s *gatedStrategy) Name() string { return "gated" }

func (s *gatedStrategy) Generate(context.Context, *core.RecommendContext) ([]*core.Candidate, error) {
	s.calls.Add(1)
	s.once.Do(func() { close(s.entered) })
	<-s.gate
	out := make([]*core.Candidate, 0, 2)
	for i, id := range []string{"g1", "g2"} {
		c := core.NewCandidate(id)
		c.Name = "gated " + id
		c.Price = 20
		c.Visible = true
		c.Score = 0.9 - 0.1*float64(i)
		out = append(out, c)
	}
	return out, nil
}

func newGatedFixture(t *testing.T) (*fixture, *gatedStrategy) {
	t.Helper()
	gs := &gatedStrategy{calls: &atomic.Int64{}, entered: make(chan struct{}), gate: make(chan struct{})}
	factory := strategy.NewFactory()
	factory.Register(core.AlgorithmPopularity, func(map[string]any, strategy.Deps) (strategy.Strategy, error) {
		return gs, nil
	})
	return newFixture(t, []core.Block{homepageBlock(true)}, WithFactory(factory)), gs
}

func TestGetRecommendations_CoalescesConcurrentMisses(t *testing.T) {
	f, gs := newGatedFixture(t)
	req := RequestContext{Type: "homepage"}

	const callers = 8
	results := make([][]*core.Candidate, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = f.engine.GetRecommendations(context.Background(), "homepage_featured", nil, nil, req)
	}()
	<-gs.entered
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.engine.GetRecommendations(context.Background(), "homepage_featured", nil, nil, req)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gs.gate)
	wg.Wait()

	if got := gs.calls.Load(); got != 1 {
		t.Fatalf("strategy calls = %d, want 1", got)
	}
	for i, r := range results {
		if !equalIDs(ids(r), []string{"g1", "g2"}) {
			t.Fatalf("caller %d got %v", i, ids(r))
		}
	}

	// 每个调用方拿到独立副本，修改互不影响
	results[0][0].Score = -1
	results[0][0].PutLabel("touched", utils.Label{Value: "yes", Source: "test"})
	for i := 1; i < callers; i++ {
		if results[i][0] == results[0][0] {
			t.Fatalf("caller %d shares candidate pointer with caller 0", i)
		}
		if results[i][0].Score != 0.9 {
			t.Errorf("caller %d score = %v, want 0.9", i, results[i][0].Score)
		}
		if _, ok := results[i][0].Labels["touched"]; ok {
			t.Errorf("caller %d sees another caller's label", i)
		}
	}
}

func TestGetRecommendations_CancelledCallerDoesNotAbortSharedMiss(t *testing.T) {
	f, gs := newGatedFixture(t)
	req := RequestContext{Type: "homepage"}

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan []*core.Candidate, 1)
	go func() {
		doneA <- f.engine.GetRecommendations(ctxA, "homepage_featured", nil, nil, req)
	}()
	<-gs.entered

	doneB := make(chan []*core.Candidate, 1)
	go func() {
		doneB <- f.engine.GetRecommendations(context.Background(), "homepage_featured", nil, nil, req)
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("cancelled caller should stop waiting")
	}
	close(gs.gate)

	var b []*core.Candidate
	select {
	case b = <-doneB:
	case <-time.After(time.Second):
		t.Fatal("caller B did not return")
	}
	if !equalIDs(ids(b), []string{"g1", "g2"}) {
		t.Fatalf("caller B got %v, want [g1 g2]", ids(b))
	}
	if got := gs.calls.Load(); got != 1 {
		t.Errorf("strategy calls = %d, want 1", got)
	}

	key := cache.Key("homepage_featured", "", "", "homepage", nil)
	if _, found, err := f.cache.Get(context.Background(), key); err != nil || !found {
		t.Errorf("shared result should be cached: found=%v err=%v", found, err)
	}
}
