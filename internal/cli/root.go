package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumenfeed/go-feed-ai/internal/config"
	"github.com/lumenfeed/go-feed-ai/internal/logger"
	"github.com/lumenfeed/go-feed-ai/pkg/aicache"
	"github.com/lumenfeed/go-feed-ai/pkg/gateway"
	"github.com/lumenfeed/go-feed-ai/pkg/pipeline"
	"github.com/lumenfeed/go-feed-ai/pkg/policy"
)

var (
	// 命令行标志变量
	cfgFile      string
	targetLang   string
	debugMode    bool
	verboseMode  bool
	streamOutput bool // 把输入当作整篇文章流式翻译
	summaryMode  bool // 生成摘要而不是翻译
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "feedai [flags] [input_file]",
		Short: "feedai 是订阅阅读器的AI翻译/摘要管道",
		Long: `feedai 把订阅内容交给AI服务商做翻译或摘要：
逐行输入按批次合并请求并去重，结果写入两级缓存；
全篇输入可以流式翻译或生成摘要。

不带输入文件时从标准输入读取。`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "开启调试日志")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "显示详细日志")
	rootCmd.Flags().StringVarP(&targetLang, "target", "t", "", "目标语言（覆盖配置文件）")
	rootCmd.Flags().BoolVar(&streamOutput, "stream", false, "把输入当作整篇文章流式翻译")
	rootCmd.Flags().BoolVar(&summaryMode, "summary", false, "生成摘要而不是翻译")

	rootCmd.AddCommand(newCacheCommand())
	return rootCmd
}

// runTranslate 执行翻译命令
func runTranslate(args []string) error {
	log := logger.NewLoggerWithVerbose(debugMode, verboseMode)
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if targetLang != "" {
		cfg.TargetLanguage = targetLang
	}

	gw := gateway.New(cfg.GatewayConfig(), gateway.WithLogger(log))
	if !gw.Configured() {
		return fmt.Errorf("未配置API密钥（配置文件 provider.api_key 或环境变量 FEEDAI_API_KEY）: %w", gateway.ErrNotConfigured)
	}

	cache, err := buildCache(cfg, log)
	if err != nil {
		return err
	}
	defer cache.Flush()

	input, err := readInput(args)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if summaryMode {
		return runSummary(ctx, cfg, gw, cache, input, log)
	}
	if streamOutput {
		return runStream(ctx, cfg, gw, cache, input, log)
	}
	return runBatch(ctx, cfg, gw, cache, input, log)
}

// buildCache 按配置组装两级缓存
func buildCache(cfg *config.Config, log *zap.Logger) (*aicache.Tiered, error) {
	opts := []aicache.TieredOption{aicache.WithLogger(log)}
	if cfg.Cache.Dir != "" {
		store, err := aicache.NewFileStore(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("初始化持久缓存失败: %w", err)
		}
		opts = append(opts, aicache.WithStore(store))
	}
	return aicache.NewTiered(cfg.Cache.Capacity, opts...), nil
}

// readInput 读取输入文件或标准输入
func readInput(args []string) (string, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("读取输入文件失败: %w", err)
	}
	return string(data), nil
}

// runBatch 逐行批量翻译
func runBatch(ctx context.Context, cfg *config.Config, gw *gateway.Client, cache *aicache.Tiered, input string, log *zap.Logger) error {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return fmt.Errorf("输入为空")
	}

	pool, err := pipeline.New(cfg.PipelineSettings(), gw,
		pipeline.WithCache(cache),
		pipeline.WithLogger(log))
	if err != nil {
		return err
	}

	progress, _ := pterm.DefaultProgressbar.
		WithTotal(len(lines)).
		WithTitle("翻译中").
		Start()

	var mutex sync.Mutex
	results := make(map[string]pipeline.Result, len(lines))
	var done sync.WaitGroup
	done.Add(len(lines))

	tasks := make([]pipeline.Task, len(lines))
	for i, line := range lines {
		tasks[i] = pipeline.Task{
			ID:         fmt.Sprintf("line-%d", i+1),
			SourceText: line,
			TargetLang: cfg.TargetLanguage,
			OnResult: func(result pipeline.Result) {
				mutex.Lock()
				results[result.TaskID] = result
				mutex.Unlock()
				progress.Increment()
				done.Done()
			},
		}
	}

	pool.Submit(policy.FeatureTitleTranslation, tasks)
	done.Wait()
	pool.Wait()
	_, _ = progress.Stop()

	failMark := color.New(color.FgRed, color.Bold).Sprint("✗")
	cacheMark := color.New(color.FgCyan).Sprint("≡")
	for i := range lines {
		result := results[fmt.Sprintf("line-%d", i+1)]
		switch {
		case result.Failed:
			fmt.Printf("%s %s  (%s)\n", failMark, result.Text, result.ErrMessage)
		case result.FromCache:
			fmt.Printf("%s %s\n", cacheMark, result.Text)
		default:
			fmt.Println(result.Text)
		}
	}
	return nil
}

// runStream 整篇流式翻译，增量片段直接写到标准输出
func runStream(ctx context.Context, cfg *config.Config, gw *gateway.Client, cache *aicache.Tiered, input string, log *zap.Logger) error {
	pool, err := pipeline.New(cfg.PipelineSettings(), gw,
		pipeline.WithCache(cache),
		pipeline.WithLogger(log))
	if err != nil {
		return err
	}

	_, err = pool.TranslateStream(ctx, input, cfg.TargetLanguage, func(delta string) {
		fmt.Print(delta)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("流式翻译失败: %w", err)
	}
	return nil
}

// runSummary 生成整篇摘要
func runSummary(ctx context.Context, cfg *config.Config, gw *gateway.Client, cache *aicache.Tiered, input string, log *zap.Logger) error {
	pool, err := pipeline.New(cfg.PipelineSettings(), gw,
		pipeline.WithCache(cache),
		pipeline.WithLogger(log))
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("生成摘要中")
	summary, err := pool.Summarize(ctx, input, cfg.TargetLanguage)
	if err != nil {
		spinner.Fail("摘要失败")
		return err
	}
	spinner.Success("完成")

	fmt.Println(summary)
	return nil
}
