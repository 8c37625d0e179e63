package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Store 开关的持久化接口。整个开关集合作为一个文档，
// 单次Save对应一次写入。
type Store interface {
	// Load 读取全部开关
	Load() (map[string]bool, error)

	// Save 整体写入全部开关
	Save(overrides map[string]bool) error
}

// FileStore 基于单个JSON文件的开关存储
type FileStore struct {
	path  string
	mutex sync.Mutex
}

// NewFileStore 创建文件存储
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Load 读取全部开关，文件不存在时返回空集合
func (s *FileStore) Load() (map[string]bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]bool), nil
		}
		return nil, err
	}

	overrides := make(map[string]bool)
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

// Save 整体写入全部开关
func (s *FileStore) Save(overrides map[string]bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
