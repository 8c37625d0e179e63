package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumenfeed/go-feed-ai/pkg/aicache"
	"github.com/lumenfeed/go-feed-ai/pkg/policy"
)

// worker 工作者循环：反复批量拉取任务并解析，
// 队列取空或当前运行被取消时退出。
func (p *Pipeline) worker(feature policy.Feature) {
	defer p.wg.Done()

	for {
		batch, ctx := p.takeBatch(feature)
		if batch == nil {
			return
		}
		p.resolveBatch(ctx, batch)
	}
}

// takeBatch 从队首取走至多 BatchSize 个任务，并同步移除去重标记。
// 返回的ctx是当前这一轮运行的上下文：上一轮取消后仍然存活的
// 工作者会拿到新一轮的上下文，接着消化取消之后提交的任务。
// 队列为空或当前运行被取消时递减工作者计数并返回nil。
func (p *Pipeline) takeBatch(feature policy.Feature) ([]Task, context.Context) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	q := p.queue(feature)
	if p.runCtx.Err() != nil || len(q.pending) == 0 {
		q.activeWorkers--
		return nil, nil
	}

	n := p.config.BatchSize
	if n > len(q.pending) {
		n = len(q.pending)
	}

	batch := make([]Task, n)
	copy(batch, q.pending[:n])
	q.pending = q.pending[n:]
	for _, task := range batch {
		delete(q.queuedIDs, task.ID)
	}
	return batch, p.runCtx
}

// resolveBatch 解析一个批次：先查缓存，未命中的部分按目标语言
// 分组，每种语言合并成一次网关调用。
func (p *Pipeline) resolveBatch(ctx context.Context, batch []Task) {
	var remainder []Task

	if p.cache != nil {
		keys := make([]aicache.Key, len(batch))
		for i, task := range batch {
			keys[i] = aicache.Key{SourceText: task.SourceText, TargetLang: task.TargetLang}
		}
		cached := p.cache.LookupMany(ctx, keys)

		for i, task := range batch {
			if text, ok := cached[keys[i].String()]; ok {
				p.deliver(task, Result{TaskID: task.ID, Text: text, FromCache: true})
			} else {
				remainder = append(remainder, task)
			}
		}
	} else {
		remainder = batch
	}

	if len(remainder) == 0 {
		return
	}

	// 混合目标语言的批次不能共用一个提示词，否则整批都会被
	// 翻成第一个任务的语言，缓存键却落在各自的语言下
	groups := make(map[string][]Task)
	var langs []string
	for _, task := range remainder {
		if _, ok := groups[task.TargetLang]; !ok {
			langs = append(langs, task.TargetLang)
		}
		groups[task.TargetLang] = append(groups[task.TargetLang], task)
	}
	for _, lang := range langs {
		p.translateGroup(ctx, lang, groups[lang])
	}
}

// translateGroup 把同一种目标语言的任务合并成一次网关调用，
// 再按编号把响应拆回到各任务。
func (p *Pipeline) translateGroup(ctx context.Context, targetLang string, tasks []Task) {
	prompt := buildBatchPrompt(tasks, targetLang)
	response, err := p.gateway.Call(ctx, prompt, nil)
	if err != nil {
		// 整组失败：每个任务回退到原文并携带错误消息，由调用方决定是否重新提交
		p.logger.Warn("batch translation failed",
			zap.String("run", p.runID),
			zap.String("lang", targetLang),
			zap.Int("tasks", len(tasks)),
			zap.Error(err))
		for _, task := range tasks {
			p.deliver(task, Result{
				TaskID:     task.ID,
				Text:       task.SourceText,
				Failed:     true,
				ErrMessage: err.Error(),
			})
		}
		return
	}

	outputs := parseNumberedResponse(response)
	parseMissLogged := false

	var entries []aicache.Entry
	for i, task := range tasks {
		text, ok := outputs[i+1]
		if !ok || text == "" {
			// 编号缺失或无法解析，回退到原文
			if !parseMissLogged {
				p.logger.Debug("batch response missing indexed line",
					zap.String("run", p.runID),
					zap.Int("index", i+1))
				parseMissLogged = true
			}
			p.deliver(task, Result{TaskID: task.ID, Text: task.SourceText})
			continue
		}

		entries = append(entries, aicache.Entry{
			Key:     aicache.Key{SourceText: task.SourceText, TargetLang: task.TargetLang}.String(),
			Content: text,
		})
		p.deliver(task, Result{TaskID: task.ID, Text: text})
	}

	// 每组一次批量写入，而不是逐条写
	if p.cache != nil && len(entries) > 0 {
		p.cache.WriteMany(ctx, entries)
	}
}

// deliver 投递单个任务的结果
func (p *Pipeline) deliver(task Task, result Result) {
	if task.OnResult != nil {
		task.OnResult(result)
	}
	if p.onResult != nil {
		p.onResult(result)
	}
}
