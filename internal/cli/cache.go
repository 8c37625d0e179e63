package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lumenfeed/go-feed-ai/internal/config"
	"github.com/lumenfeed/go-feed-ai/pkg/aicache"
)

// newCacheCommand 创建缓存管理子命令
func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "管理持久翻译缓存",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出持久缓存中的条目",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			entries, err := store.BatchGet(context.Background(), "")
			if err != nil {
				return fmt.Errorf("读取缓存失败: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Key", "Content"})
			for key, content := range entries {
				t.AppendRow(table.Row{truncate(key, 48), truncate(content, 64)})
			}
			t.AppendFooter(table.Row{"Total", len(entries)})
			t.Render()
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "清空持久缓存",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Clear(context.Background()); err != nil {
				return fmt.Errorf("清空缓存失败: %w", err)
			}
			fmt.Println("缓存已清空")
			return nil
		},
	}

	cacheCmd.AddCommand(listCmd, clearCmd)
	return cacheCmd
}

// openStore 按配置打开持久缓存
func openStore() (*aicache.FileStore, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if cfg.Cache.Dir == "" {
		return nil, fmt.Errorf("未配置持久缓存目录（cache.dir）")
	}
	return aicache.NewFileStore(cfg.Cache.Dir)
}

// truncate 截断过长的显示文本
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
