// Package cli 实现 schedulectl 命令行工具，不依赖数据库和消息队列，直接在本地运行遗传算法
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/seed"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type globalOptions struct {
	catalogFile string
	format      string
}

// NewRootCmd 每次调用都返回一棵新的命令树
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "schedulectl",
		Short:         "SLA 排课命令行工具",
		Long:          "在本地为 SLA 活动排课、评估排课表以及查看排课目录。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return fmt.Errorf("不支持的输出格式 %s", opts.format)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.catalogFile, "catalog", "c", "", "排课目录 JSON 文件，默认使用内置目录")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", formatText, "输出格式: text 或 json")

	root.AddCommand(
		newRunCmd(opts),
		newEvaluateCmd(opts),
		newCatalogCmd(opts),
	)

	return root
}

func (o *globalOptions) loadCatalog() (*domain.Catalog, error) {
	if o.catalogFile == "" {
		return seed.DefaultCatalog(), nil
	}
	return seed.LoadCatalogFile(o.catalogFile)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
