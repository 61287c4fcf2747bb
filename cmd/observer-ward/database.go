package main

import (
	"fmt"

	"github.com/wisdark/observer-ward/internal/pkg/fingerprint/probedb"
	"github.com/wisdark/observer-ward/internal/pkg/logger"
	"github.com/wisdark/observer-ward/internal/pkg/matcher"
)

type databaseOptions struct {
	path        string
	maxRarity   int
	probeFilter string
}

// loadDatabase 加载指纹库并按稀有度与过滤规则裁剪
// 路径为空时使用可执行文件同目录下的默认库
func loadDatabase(opts databaseOptions) (*probedb.Database, error) {
	var (
		db  *probedb.Database
		err error
	)
	if opts.path == "" {
		db, err = probedb.Default()
	} else {
		db, err = probedb.Load(opts.path)
	}
	if err != nil {
		return nil, err
	}

	rule, err := matcher.ParseJSON(opts.probeFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid probe filter: %w", err)
	}
	if opts.maxRarity <= 0 && rule.IsEmpty() {
		return db, nil
	}

	filtered, err := db.Filter(probedb.FilterOptions{MaxRarity: opts.maxRarity, Rule: rule})
	if err != nil {
		return nil, fmt.Errorf("invalid probe filter: %w", err)
	}
	logger.Infof("probe database filtered: %d -> %d probes", db.Len(), filtered.Len())
	return filtered, nil
}
