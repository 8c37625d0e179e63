package gateway

import (
	"context"
	"sync"
)

// Semaphore 进程级并发信号量，等待者严格按FIFO顺序获得准入。
// 不变量：active 永远不超过 limit；每次成功的 Acquire
// 都恰好对应一次 Release，取消路径不会占用槽位。
type Semaphore struct {
	mutex   sync.Mutex
	limit   int
	active  int
	waiters []chan struct{}
}

// NewSemaphore 创建信号量，limit 必须为正数
func NewSemaphore(limit int) *Semaphore {
	if limit <= 0 {
		limit = 1
	}
	return &Semaphore{limit: limit}
}

// Acquire 获取一个槽位。有空闲槽位时立即返回，
// 否则按FIFO排队等待，直到获得槽位或 ctx 被取消。
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mutex.Lock()
	if s.active < s.limit {
		s.active++
		s.mutex.Unlock()
		return nil
	}

	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mutex.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mutex.Lock()
		for i, w := range s.waiters {
			if w == ready {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				s.mutex.Unlock()
				return ctx.Err()
			}
		}
		// 不在队列里说明取消的同时槽位已经被授予，必须还回去
		s.releaseLocked()
		s.mutex.Unlock()
		return ctx.Err()
	}
}

// Release 释放一个槽位。有等待者时直接把槽位移交给队首，
// 移交期间 active 计数保持不变，不存在空闲未授予的窗口。
func (s *Semaphore) Release() {
	s.mutex.Lock()
	s.releaseLocked()
	s.mutex.Unlock()
}

// releaseLocked 释放槽位，调用方必须持有锁
func (s *Semaphore) releaseLocked() {
	if len(s.waiters) > 0 {
		ready := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(ready)
		return
	}
	s.active--
}

// Active 当前已占用的槽位数
func (s *Semaphore) Active() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.active
}

// Waiting 当前排队的等待者数量
func (s *Semaphore) Waiting() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.waiters)
}
