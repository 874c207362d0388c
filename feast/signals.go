package feast

import (
	"context"

	"github.com/rushteam/catalogrec/core"
	"github.com/rushteam/catalogrec/pkg/conv"
)

// FeatureNames 把商品热度信号映射到 Feast 特征名；为空的字段不请求。
type FeatureNames struct {
	Views   string `koanf:"views"`
	Sales   string `koanf:"sales"`
	Reviews string `koanf:"reviews"`
	Rating  string `koanf:"rating"`
}

// DefaultFeatureNames 是默认的 product_stats 特征视图。
func DefaultFeatureNames() FeatureNames {
	return FeatureNames{
		Views:   "product_stats:view_count",
		Sales:   "product_stats:sales_count",
		Reviews: "product_stats:review_count",
		Rating:  "product_stats:avg_rating",
	}
}

func (f FeatureNames) list() []string {
	out := make([]string, 0, 4)
	for _, n := range []string{f.Views, f.Sales, f.Reviews, f.Rating} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// SignalSource 用 Feast 在线特征实现 core.SignalSource。
type SignalSource struct {
	Client    Client
	Project   string
	EntityKey string
	Features  FeatureNames

	// BatchSize 单次请求的实体数，默认 100
	BatchSize int
}

// NewSignalSource 创建使用默认特征名的 SignalSource，实体 key 为 product_id。
func NewSignalSource(client Client, project string) *SignalSource {
	return &SignalSource{
		Client:    client,
		Project:   project,
		EntityKey: "product_id",
		Features:  DefaultFeatureNames(),
		BatchSize: 100,
	}
}

func (s *SignalSource) Name() string { return "feast" }

// ProductSignals 批量读取商品信号；Feast 中没有任何特征值的商品不出现在结果中。
func (s *SignalSource) ProductSignals(ctx context.Context, productIDs []string) (map[string]core.ProductSignals, error) {
	out := make(map[string]core.ProductSignals, len(productIDs))
	features := s.Features.list()
	if len(productIDs) == 0 || len(features) == 0 {
		return out, nil
	}

	batch := s.BatchSize
	if batch <= 0 {
		batch = 100
	}
	for start := 0; start < len(productIDs); start += batch {
		end := min(start+batch, len(productIDs))
		ids := productIDs[start:end]

		rows := make([]map[string]any, len(ids))
		for i, id := range ids {
			rows[i] = map[string]any{s.EntityKey: id}
		}
		resp, err := s.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
			Features:   features,
			EntityRows: rows,
			Project:    s.Project,
		})
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "feast: online features", err)
		}
		for i, fv := range resp.FeatureVectors {
			if i >= len(ids) || len(fv.Values) == 0 {
				continue
			}
			out[ids[i]] = core.ProductSignals{
				Views:   value(fv.Values, s.Features.Views),
				Sales:   value(fv.Values, s.Features.Sales),
				Reviews: value(fv.Values, s.Features.Reviews),
				Rating:  value(fv.Values, s.Features.Rating),
			}
		}
	}
	return out, nil
}

func value(values map[string]any, name string) float64 {
	if name == "" {
		return 0
	}
	f, _ := conv.ToFloat64(values[name])
	return f
}

var _ core.SignalSource = (*SignalSource)(nil)
