package extractor

import (
	"errors"
	"fmt"
)

var (
	// ErrCompile 提取器模式编译失败
	ErrCompile = errors.New("extractor compile failed")
	// ErrInvalidDefinition 提取器定义文档不合法
	ErrInvalidDefinition = errors.New("invalid extractor definition")
)

// CompileError 记录第一个编译失败的模式
type CompileError struct {
	Name    string // 提取器名称，可能为空
	Index   int    // 模式下标
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("extractor %q: pattern #%d %q: %v", e.Name, e.Index, e.Pattern, e.Err)
	}
	return fmt.Sprintf("extractor pattern #%d %q: %v", e.Index, e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() []error {
	return []error{ErrCompile, e.Err}
}

func invalidDefinition(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...))
}
