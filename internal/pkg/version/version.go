// 版本信息，BuildTime / GitCommit 在构建时通过 -ldflags 注入
// go build -ldflags "-X github.com/wisdark/observer-ward/internal/pkg/version.GitCommit=$(git rev-parse --short HEAD)"

package version

import (
	"fmt"
	"runtime"
)

var (
	Version    = "0.3.0"
	APIVersion = "v1"
	BuildTime  string
	GitCommit  string
	GoVersion  = runtime.Version()
)

func GetVersion() string {
	return Version
}

// GetFullVersion 带提交号和构建时间的完整版本
func GetFullVersion() string {
	s := Version
	if GitCommit != "" {
		s += "+" + GitCommit
	}
	if BuildTime != "" {
		s += " (" + BuildTime + ")"
	}
	return fmt.Sprintf("%s %s", s, GoVersion)
}
