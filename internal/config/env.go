package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile 加载 .env 文件
// 文件不存在时直接返回，已有环境变量不会被覆盖
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
