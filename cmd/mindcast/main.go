package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iabetor/mindcast/internal/config"
	"github.com/iabetor/mindcast/internal/logger"
	"github.com/iabetor/mindcast/internal/metrics"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/mindcast.yaml", "配置文件路径")
	scriptPath := flag.String("script", "", "脚本文件（.yaml/.json/.txt）")
	outDir := flag.String("out", "out", "片段输出目录")
	voice := flag.String("voice", "", "音色，覆盖脚本和配置中的设置")
	maxChars := flag.Int("max-chars", 0, "纯文本脚本每个批次的最大字符数")
	fadeIn := flag.String("fade", "", "对整段录音做淡入淡出，指定输入文件")
	fadeOut := flag.String("fade-out", "", "淡入淡出结果输出路径，默认 <输入>.faded.wav")
	fadeHint := flag.String("hint", "", "输入音频的格式提示，如 audio/pcm;rate=24000")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Infof("[main] mindcast 启动中 (log_level=%s)", cfg.Log.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	stopMetrics := serveMetrics(cfg.Metrics.Addr, reg)
	defer stopMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 第一次信号只停止后续批次，第二次信号直接取消进行中的请求
	stopCh := make(chan struct{})
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，处理完当前批次后停止...", sig)
		close(stopCh)
		sig = <-sigCh
		logger.Infof("[main] 再次收到信号 %v，立即退出", sig)
		cancel()
	}()

	if *fadeIn != "" {
		out := *fadeOut
		if out == "" {
			out = *fadeIn + ".faded.wav"
		}
		if err := runFade(ctx, cfg, m, *fadeIn, out, *fadeHint); err != nil {
			logger.Errorf("[main] 淡入淡出处理失败: %v", err)
			return 1
		}
		return 0
	}

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "需要 -script 或 -fade 参数")
		flag.Usage()
		return 2
	}

	completed, err := runRender(ctx, stopCh, cfg, m, renderOptions{
		ScriptPath: *scriptPath,
		OutDir:     *outDir,
		Voice:      *voice,
		MaxChars:   *maxChars,
	})
	if err != nil {
		logger.Errorf("[main] 渲染失败: %v", err)
		return 1
	}
	if !completed {
		logger.Info("[main] 会话已取消，只写出了部分片段")
		return 130
	}

	logger.Info("[main] mindcast 已完成")
	return 0
}

// serveMetrics 在 addr 上暴露 /metrics，addr 为空时不启动。返回关闭函数。
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Infof("[main] 指标服务监听 %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("[main] 指标服务退出: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
