// evplanner 启动 ev-planner 服务：接收 HTTP 请求，延续上游 trace，
// 并把 span 批量导出到 OTLP 采集端。
//
// 用法:
//
//	evplanner [选项]
//
// 选项:
//
//	-c, --config       YAML/JSON 配置文件 (环境变量 PLANNER_CONFIG)
//	    --addr         监听地址 (默认: 0.0.0.0:3001)
//	    --endpoint     OTLP trace 采集地址
//	    --routing-url  下游路径规划引擎地址，为空时不调用
//	    --log-level    日志级别 (debug/info/warn/error)
//	    --log-format   日志格式 (text/json)
//
// 配置优先级从低到高：默认值、配置文件、环境变量、命令行选项。
//
// 退出码:
//
//	0: 收到 SIGINT/SIGTERM 后正常关闭
//	1: 启动失败（配置非法、端口占用等）或运行中出错
//	2: 命令行参数错误
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/evplanner/internal/app"
	"github.com/omeyang/evplanner/internal/config"
	"github.com/omeyang/evplanner/pkg/observability/xlog"
)

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// usageError 命令行参数错误，退出码 2
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "evplanner",
		Usage:     "ev-planner trace 上下文传播服务",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML/JSON 配置文件路径",
				Sources: cli.EnvVars("PLANNER_CONFIG"),
			},
			&cli.StringFlag{Name: "addr", Usage: "监听地址"},
			&cli.StringFlag{Name: "endpoint", Usage: "OTLP trace 采集地址"},
			&cli.StringFlag{Name: "routing-url", Usage: "下游路径规划引擎地址"},
			&cli.StringFlag{Name: "log-level", Usage: "日志级别"},
			&cli.StringFlag{Name: "log-format", Usage: "日志格式"},
		},
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return &usageError{err: err}
		},
		// 退出码由 run 统一映射，不让框架直接 os.Exit
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cmd, stderr)
		},
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := createApp(stdout, stderr).Run(ctx, args); err != nil {
		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", uerr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig 加载配置并叠加命令行选项
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	overrides := []struct {
		flag string
		dst  *string
	}{
		{"addr", &cfg.Server.Addr},
		{"endpoint", &cfg.Exporter.Endpoint},
		{"routing-url", &cfg.Routing.URL},
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
	}
	changed := false
	for _, o := range overrides {
		if cmd.IsSet(o.flag) {
			*o.dst = cmd.String(o.flag)
			changed = true
		}
	}
	if changed {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(stderr).
		SetLevelString(cfg.Log.Level).
		SetFormat(cfg.Log.Format).
		SetAttrs(slog.String("service", cfg.Service.Name))
	if cfg.Log.File != "" {
		b.SetRotation(cfg.Log.File)
	}
	return b.Build()
}

func serve(ctx context.Context, cmd *cli.Command, stderr io.Writer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, cleanup, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	// OTel 内部错误等没有注入 logger 的路径经全局 logger 输出，退出时恢复
	prev := xlog.Default()
	xlog.SetDefault(logger)
	defer xlog.SetDefault(prev)

	m, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}
