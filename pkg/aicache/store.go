package aicache

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store 持久存储接口，由宿主应用的存储层实现。
// 容量策略由实现自行决定，这一层不做淘汰。
type Store interface {
	// BatchGet 批量读取键以 prefix 开头的所有条目
	BatchGet(ctx context.Context, prefix string) (map[string]string, error)

	// BatchSet 批量写入条目
	BatchSet(ctx context.Context, entries []Entry) error

	// Delete 删除指定键
	Delete(ctx context.Context, key string) error

	// Clear 清除所有条目
	Clear(ctx context.Context) error
}

// FileStore 基于文件的持久存储实现，每个条目一个JSON文件
type FileStore struct {
	basePath string
	mutex    sync.RWMutex
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// fileName 根据key生成文件名
func (s *FileStore) fileName(key string) string {
	hash := md5.Sum([]byte(key))
	return fmt.Sprintf("%x.cache", hash)
}

// BatchGet 批量读取键以 prefix 开头的所有条目
func (s *FileStore) BatchGet(ctx context.Context, prefix string) (map[string]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	files, err := filepath.Glob(filepath.Join(s.basePath, "*.cache"))
	if err != nil {
		return nil, err
	}

	found := make(map[string]string)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// 损坏的条目当作不存在
			continue
		}

		if strings.HasPrefix(entry.Key, prefix) {
			found[entry.Key] = entry.Content
		}
	}
	return found, nil
}

// BatchSet 批量写入条目，单次调用对应一次持久化往返
func (s *FileStore) BatchSet(ctx context.Context, entries []Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		path := filepath.Join(s.basePath, s.fileName(entry.Key))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Delete 删除指定键
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := os.Remove(filepath.Join(s.basePath, s.fileName(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear 清除所有条目
func (s *FileStore) Clear(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	files, err := filepath.Glob(filepath.Join(s.basePath, "*.cache"))
	if err != nil {
		return err
	}
	for _, file := range files {
		os.Remove(file)
	}
	return nil
}
