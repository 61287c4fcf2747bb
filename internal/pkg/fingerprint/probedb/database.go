/**
 * 指纹库
 * @date: 2026.10.15
 * @description: 加载后不可变，可被任意数量的扫描任务并发只读共享
 */
package probedb

import (
	"os"
	"path/filepath"
	"sync"
)

// DefaultFileName 默认指纹库文件名，位于可执行文件同目录
const DefaultFileName = "nmap-service-probes.json"

// Database 探针集合
type Database struct {
	probes []*Probe
	byName map[string]*Probe
}

// New 由探针列表构造指纹库，保持原有顺序
func New(probes []*Probe) *Database {
	db := &Database{
		probes: make([]*Probe, 0, len(probes)),
		byName: make(map[string]*Probe, len(probes)),
	}
	for _, p := range probes {
		if p == nil {
			continue
		}
		if p.portSet == nil {
			p.indexPorts()
		}
		db.probes = append(db.probes, p)
		if _, ok := db.byName[p.DirectiveName]; !ok {
			db.byName[p.DirectiveName] = p
		}
	}
	return db
}

// Probes 返回探针列表副本
func (db *Database) Probes() []*Probe {
	return append([]*Probe(nil), db.probes...)
}

// Len 探针数量
func (db *Database) Len() int {
	return len(db.probes)
}

// Lookup 按指令名查找探针，用于 fallback 引用
func (db *Database) Lookup(name string) (*Probe, bool) {
	p, ok := db.byName[name]
	return p, ok
}

// Partition 按端口划分探针：端口集合包含 port 的与其余的，各自保持原有相对顺序
func (db *Database) Partition(port uint16) (in, ex []*Probe) {
	for _, p := range db.probes {
		if p.HasPort(port) {
			in = append(in, p)
		} else {
			ex = append(ex, p)
		}
	}
	return in, ex
}

// Select 返回满足条件的子集，原库不变
func (db *Database) Select(pred func(*Probe) bool) *Database {
	var kept []*Probe
	for _, p := range db.probes {
		if pred(p) {
			kept = append(kept, p)
		}
	}
	return New(kept)
}

// Stats 指纹库统计
type Stats struct {
	Probes    int `json:"probes"`
	Rules     int `json:"rules"`
	SoftRules int `json:"soft_rules"`
	Services  int `json:"services"`
	Ports     int `json:"ports"`
}

// Stats 统计探针、规则、服务与端口数量
func (db *Database) Stats() Stats {
	services := make(map[string]struct{})
	ports := make(map[uint16]struct{})
	st := Stats{Probes: len(db.probes)}
	for _, p := range db.probes {
		for _, r := range p.Matches {
			st.Rules++
			if r.Soft {
				st.SoftRules++
			}
			services[r.Service] = struct{}{}
		}
		for port := range p.portSet {
			ports[port] = struct{}{}
		}
	}
	st.Services = len(services)
	st.Ports = len(ports)
	return st
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
	defaultErr  error
)

// DefaultPath 可执行文件同目录下的默认指纹库路径
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName), nil
}

// Default 进程级指纹库，首次调用时加载，之后不再重载
// 加载失败的错误同样被缓存，调用方应视为致命错误
func Default() (*Database, error) {
	defaultOnce.Do(func() {
		path, err := DefaultPath()
		if err != nil {
			defaultErr = loadError(DefaultFileName, err)
			return
		}
		defaultDB, defaultErr = Load(path)
	})
	return defaultDB, defaultErr
}
