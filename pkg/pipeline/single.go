package pipeline

import (
	"context"

	"github.com/lumenfeed/go-feed-ai/pkg/aicache"
)

// summaryLangSuffix 摘要结果与翻译结果共用缓存，用语言后缀区分
const summaryLangSuffix = "#summary"

// TranslateStream 单篇全文的流式翻译，每个增量片段回调一次 onChunk。
// 缓存命中时不发起网络调用，完整文本作为单个片段回调。
func (p *Pipeline) TranslateStream(ctx context.Context, text, targetLang string, onChunk func(string)) (string, error) {
	key := aicache.Key{SourceText: text, TargetLang: targetLang}
	if cached, ok := p.lookupOne(ctx, key); ok {
		if onChunk != nil {
			onChunk(cached)
		}
		return cached, nil
	}

	translated, err := p.gateway.Call(ctx, buildTranslatePrompt(text, targetLang), onChunk)
	if err != nil {
		return "", err
	}

	p.writeOne(ctx, key, translated)
	return translated, nil
}

// StreamTranslation 以channel形式暴露流式翻译的增量片段。
// 片段channel在流结束或取消时关闭，最终结果通过error channel给出。
func (p *Pipeline) StreamTranslation(ctx context.Context, text, targetLang string) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(chunks)
		_, err := p.TranslateStream(ctx, text, targetLang, func(delta string) {
			select {
			case chunks <- delta:
			case <-ctx.Done():
			}
		})
		errc <- err
	}()
	return chunks, errc
}

// Summarize 生成单篇文章的摘要
func (p *Pipeline) Summarize(ctx context.Context, text, targetLang string) (string, error) {
	key := aicache.Key{SourceText: text, TargetLang: targetLang + summaryLangSuffix}
	if cached, ok := p.lookupOne(ctx, key); ok {
		return cached, nil
	}

	summary, err := p.gateway.Call(ctx, buildSummaryPrompt(text, targetLang), nil)
	if err != nil {
		return "", err
	}

	p.writeOne(ctx, key, summary)
	return summary, nil
}

// lookupOne 单键缓存查找
func (p *Pipeline) lookupOne(ctx context.Context, key aicache.Key) (string, bool) {
	if p.cache == nil {
		return "", false
	}
	found := p.cache.LookupMany(ctx, []aicache.Key{key})
	text, ok := found[key.String()]
	return text, ok
}

// writeOne 单键缓存写入
func (p *Pipeline) writeOne(ctx context.Context, key aicache.Key, text string) {
	if p.cache == nil {
		return
	}
	p.cache.WriteMany(ctx, []aicache.Entry{{Key: key.String(), Content: text}})
}
