package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 可包装底层错误（Err），兼容 errors.Is / errors.As
//
// 错误分类：
//   - CONFIGURATION_MISSING：Block 不存在或未启用，触发 Fallback
//   - ALGORITHM_FAILURE：单个 Strategy 失败，其余算法继续
//   - AGGREGATION_FAILURE：合并/过滤阶段的意外错误，在 Orchestrator 层触发 Fallback
//   - CACHE_FAILURE：缓存读写失败，读视为 miss，写视为 no-op
//   - FEEDBACK_FAILURE：偏好更新失败，记录日志后吞掉
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "ALGORITHM_FAILURE"）
	Message string // 错误消息
	Module  string // 模块名称（如 "block", "cache", "strategy"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 按 Module + Code 比较，使哨兵错误可以配合 errors.Is 使用。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误是否为 DomainError 类型
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取 DomainError，如果不是则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	ErrorCodeConfigurationMissing = "CONFIGURATION_MISSING"
	ErrorCodeAlgorithmFailure     = "ALGORITHM_FAILURE"
	ErrorCodeAggregationFailure   = "AGGREGATION_FAILURE"
	ErrorCodeCacheFailure         = "CACHE_FAILURE"
	ErrorCodeFeedbackFailure      = "FEEDBACK_FAILURE"
	ErrorCodeConflict             = "CONFLICT" // 乐观并发冲突
)

// 模块名称常量
const (
	ModuleStore     = "store"
	ModuleBlock     = "block"
	ModuleStrategy  = "strategy"
	ModuleAggregate = "aggregate"
	ModuleCache     = "cache"
	ModuleCatalog   = "catalog"
	ModuleFeedback  = "feedback"
	ModuleFeature   = "feature"
)

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsConflict 检查错误是否为乐观并发冲突
func IsConflict(err error) bool {
	return hasCode(err, ErrorCodeConflict)
}

// IsConfigurationMissing 检查错误是否为 Block 缺失/未启用
func IsConfigurationMissing(err error) bool {
	return hasCode(err, ErrorCodeConfigurationMissing)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
