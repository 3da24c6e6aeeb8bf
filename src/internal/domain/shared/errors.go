package shared

import "fmt"

// ===========================
// DomainError 結構
// ===========================

// ErrorCode 錯誤代碼類型
type ErrorCode string

// DomainError 領域錯誤
//
// 設計原則：
// 1. 結構化錯誤代碼（HTTP 狀態碼映射、指標標籤）
// 2. 上下文信息（日誌與除錯）
// 3. 不可變性：WithContext 返回新實例
// 4. errors.Is 以 Code 比較，附加上下文後仍可匹配預定義錯誤
type DomainError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
}

// NewDomainError 建立預定義錯誤
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Error 實現 error 接口
func (e *DomainError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (context: %+v)", e.Code, e.Message, e.Context)
}

// WithContext 添加上下文信息（返回新的錯誤實例）
func (e *DomainError) WithContext(keyValues ...interface{}) error {
	if len(keyValues)%2 != 0 {
		panic("WithContext requires even number of arguments (key-value pairs)")
	}

	ctx := make(map[string]interface{}, len(e.Context)+len(keyValues)/2)
	for k, v := range e.Context {
		ctx[k] = v
	}
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			panic(fmt.Sprintf("context key must be string, got %T", keyValues[i]))
		}
		ctx[key] = keyValues[i+1]
	}

	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Context: ctx,
	}
}

// Is 實現 errors.Is 接口（以錯誤代碼判斷）
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ===========================
// 跨 bounded context 的共用錯誤
// ===========================

const (
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeStoreUnavailable       ErrorCode = "STORE_UNAVAILABLE"
)

var (
	// ErrConcurrentModification 條件更新輸掉競爭（版本號或數量已被其他寫入者改變）
	// 呼叫端應在有限次數內重試
	ErrConcurrentModification = NewDomainError(ErrCodeConcurrentModification, "資料已被並發修改")

	// ErrStoreUnavailable 資料庫不可用（一般服務錯誤）
	ErrStoreUnavailable = NewDomainError(ErrCodeStoreUnavailable, "資料庫不可用")
)
