package probedb

import (
	"errors"
	"fmt"
)

// ErrDatabaseLoad 指纹库缺失或格式错误，进程无法继续
var ErrDatabaseLoad = errors.New("fingerprint database load failed")

// errNoProbes 文档中没有任何探针
var errNoProbes = errors.New("no probe definitions found")

// DatabaseLoadError 指纹库加载错误
type DatabaseLoadError struct {
	Path string
	Err  error
}

func (e *DatabaseLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load fingerprint database: %v", e.Err)
	}
	return fmt.Sprintf("load fingerprint database %s: %v", e.Path, e.Err)
}

func (e *DatabaseLoadError) Unwrap() []error {
	return []error{ErrDatabaseLoad, e.Err}
}

func loadError(path string, err error) error {
	return &DatabaseLoadError{Path: path, Err: err}
}
