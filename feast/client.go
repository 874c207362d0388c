// Package feast 通过 Feast Feature Store 的在线特征为推荐提供商品热度信号。
package feast

import (
	"context"
	"time"
)

// Client 是 Feast 在线特征客户端的最小接口。
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	// 参数：
	//   - Features: 特征名称列表，例如 ["product_stats:views_7d", "product_stats:sales_7d"]
	//   - EntityRows: 实体行，例如 [{"product_id": "p1"}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	Features []string

	// EntityRows 实体行，例如 [{"product_id": "p1"}, {"product_id": "p2"}]
	EntityRows []map[string]any

	// Project 项目名称（可选，默认使用客户端的 Project）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 与 EntityRows 一一对应
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征名称；缺失或空值的特征不出现
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	Endpoint string
	Project  string

	// Timeout 单次请求超时
	Timeout time.Duration

	// Token 非空时使用静态 Token 认证
	Token string

	// TLS 是否启用 TLS
	TLS bool
}

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithToken 使用静态 Token 认证
func WithToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.Token = token
	}
}

// WithTLS 启用 TLS
func WithTLS() ClientOption {
	return func(c *ClientConfig) {
		c.TLS = true
	}
}
