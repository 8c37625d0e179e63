// Package pipeline 实现AI翻译/摘要请求的批处理工作池：
// 去重入队、固定大小的批量拉取、缓存优先解析、
// 按编号拆分批量响应，以及整个运行的协作式取消。
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenfeed/go-feed-ai/pkg/aicache"
	"github.com/lumenfeed/go-feed-ai/pkg/policy"
)

// 默认配置
const (
	DefaultBatchSize = 10
	DefaultWorkers   = 2
)

// ErrNoGateway 未配置网关
var ErrNoGateway = errors.New("gateway not configured")

// Task 一条翻译任务。去重以ID为准，缓存以 (原文, 目标语言) 为准。
type Task struct {
	ID         string
	SourceText string
	TargetLang string

	// OnResult 结果回调，任务成功或回退时恰好调用一次
	OnResult func(Result)
}

// Result 单条任务的结果
type Result struct {
	TaskID     string
	Text       string
	FromCache  bool
	Failed     bool
	ErrMessage string
}

// Gateway 出站AI调用接口
type Gateway interface {
	Call(ctx context.Context, prompt string, onChunk func(string)) (string, error)
}

// Cache 两级缓存接口
type Cache interface {
	LookupMany(ctx context.Context, keys []aicache.Key) map[string]string
	WriteMany(ctx context.Context, entries []aicache.Entry)
}

// Config 工作池配置
type Config struct {
	// Workers 每个功能队列的最大并发工作者数
	Workers int
	// BatchSize 单个工作者一次批量拉取的任务数
	BatchSize int
}

// queueState 单个功能队列的运行状态
type queueState struct {
	pending       []Task
	queuedIDs     map[string]struct{}
	activeWorkers int
}

// Pipeline 批处理工作池
type Pipeline struct {
	config  Config
	gateway Gateway
	cache   Cache
	logger  *zap.Logger

	// onResult 可选的全局结果回调，在每个任务自身的回调之外调用
	onResult func(Result)

	mutex     sync.Mutex
	queues    map[policy.Feature]*queueState
	runID     string
	runCtx    context.Context
	runCancel context.CancelFunc

	wg sync.WaitGroup
}

// Option 工作池配置选项函数
type Option func(*Pipeline)

// WithCache 设置缓存
func WithCache(cache Cache) Option {
	return func(p *Pipeline) {
		p.cache = cache
	}
}

// WithLogger 设置logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithResultHandler 设置全局结果回调
func WithResultHandler(handler func(Result)) Option {
	return func(p *Pipeline) {
		p.onResult = handler
	}
}

// New 创建工作池
func New(config Config, gw Gateway, opts ...Option) (*Pipeline, error) {
	if gw == nil {
		return nil, ErrNoGateway
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	p := &Pipeline{
		config:    config,
		gateway:   gw,
		logger:    zap.NewNop(),
		queues:    make(map[policy.Feature]*queueState),
		runID:     uuid.New().String(),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// queue 取得功能对应的队列，调用方必须持有锁
func (p *Pipeline) queue(feature policy.Feature) *queueState {
	q, ok := p.queues[feature]
	if !ok {
		q = &queueState{queuedIDs: make(map[string]struct{})}
		p.queues[feature] = q
	}
	return q
}

// Submit 提交一批任务。已在队列中的任务ID被跳过，
// 然后在并发上限内补足工作者。
func (p *Pipeline) Submit(feature policy.Feature, tasks []Task) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	q := p.queue(feature)
	accepted := 0
	for _, task := range tasks {
		if _, dup := q.queuedIDs[task.ID]; dup {
			continue
		}
		q.queuedIDs[task.ID] = struct{}{}
		q.pending = append(q.pending, task)
		accepted++
	}

	p.logger.Debug("tasks submitted",
		zap.String("run", p.runID),
		zap.String("feature", string(feature)),
		zap.Int("accepted", accepted),
		zap.Int("pending", len(q.pending)))

	for q.activeWorkers < p.config.Workers && len(q.pending) > 0 {
		q.activeWorkers++
		p.wg.Add(1)
		go p.worker(feature)
	}
}

// CancelRun 取消当前运行：触发共享取消信号，同步清空队列和去重集合。
// 进行中的工作者在当前批次的网关调用结束后转入新一轮，
// 继续处理取消之后提交的任务。幂等。
func (p *Pipeline) CancelRun() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.runCancel()
	for _, q := range p.queues {
		q.pending = nil
		q.queuedIDs = make(map[string]struct{})
	}

	p.logger.Debug("run cancelled", zap.String("run", p.runID))

	// 换上新的运行上下文，后续提交开启新一轮
	p.runCtx, p.runCancel = context.WithCancel(context.Background())
	p.runID = uuid.New().String()
}

// Wait 等待所有工作者退出，用于测试和收尾
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// ActiveWorkers 某个功能队列当前的工作者数
func (p *Pipeline) ActiveWorkers(feature policy.Feature) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.queue(feature).activeWorkers
}

// PendingTasks 某个功能队列当前排队的任务数
func (p *Pipeline) PendingTasks(feature policy.Feature) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.queue(feature).pending)
}
