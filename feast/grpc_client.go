package feast

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// DefaultPort 是 Feast Serving 的默认 gRPC 端口。
const DefaultPort = 6565

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
type GrpcClient struct {
	client *feastsdk.GrpcClient
	config ClientConfig
}

// NewGrpcClient 创建 Feast gRPC 客户端。
//
// endpoint 形如 "localhost:6565" 或 "grpc://feast:6565"，省略端口时使用 DefaultPort。
func NewGrpcClient(endpoint, project string, opts ...ClientOption) (*GrpcClient, error) {
	host, port := parseEndpoint(endpoint)
	if host == "" {
		return nil, fmt.Errorf("feast: endpoint is required")
	}

	config := ClientConfig{
		Endpoint: net.JoinHostPort(host, strconv.Itoa(port)),
		Project:  project,
		Timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if config.Token != "" || config.TLS {
		security := feastsdk.SecurityConfig{EnableTLS: config.TLS}
		if config.Token != "" {
			security.Credential = feastsdk.NewStaticCredential(config.Token)
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("create feast grpc client: %w", err)
	}

	return &GrpcClient{client: client, config: config}, nil
}

// GetOnlineFeatures 实现 Client 接口。
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("feast: features are required")
	}
	if len(req.EntityRows) == 0 {
		return &GetOnlineFeaturesResponse{}, nil
	}
	project := req.Project
	if project == "" {
		project = c.config.Project
	}
	if project == "" {
		return nil, fmt.Errorf("feast: project is required")
	}

	entities := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		r := make(feastsdk.Row, len(row))
		for k, v := range row {
			r[k] = toSDKValue(v)
		}
		entities[i] = r
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entities,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get online features: %w", err)
	}

	rows := resp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("feast: response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}

	vectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if v, ok := fromSDKValue(row[name]); ok {
				values[name] = v
			}
		}
		vectors[i] = FeatureVector{Values: values, EntityRow: req.EntityRows[i]}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

// Close 实现 Client 接口。连接由 SDK 内部的 gRPC 连接管理。
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

func toSDKValue(v any) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int32Val(val)
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprint(val))
	}
}

// fromSDKValue 取出数值型特征；空值与非数值类型返回 false。
func fromSDKValue(v *types.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch x := v.GetVal().(type) {
	case *types.Value_DoubleVal:
		return x.DoubleVal, true
	case *types.Value_FloatVal:
		return float64(x.FloatVal), true
	case *types.Value_Int64Val:
		return float64(x.Int64Val), true
	case *types.Value_Int32Val:
		return float64(x.Int32Val), true
	case *types.Value_BoolVal:
		if x.BoolVal {
			return 1, true
		}
		return 0, true
	case *types.Value_StringVal:
		f, err := strconv.ParseFloat(x.StringVal, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parseEndpoint 解析 host:port，去掉协议前缀；没有端口时返回 DefaultPort。
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimSpace(endpoint)
	for _, prefix := range []string{"grpc://", "http://", "https://"} {
		endpoint = strings.TrimPrefix(endpoint, prefix)
	}
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, DefaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return host, DefaultPort
	}
	return host, port
}

var _ Client = (*GrpcClient)(nil)
