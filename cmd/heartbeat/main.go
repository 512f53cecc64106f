package main

import (
	"Parley/internal/pkg/logger"
	"Parley/internal/pkg/security"
	"Parley/internal/presence"
	"context"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// heartbeat 命令行在线客户端：保持某个用户在线，SIGUSR1 模拟切后台，SIGUSR2 切回前台
func main() {
	log.SetDefault(log.New(&logger.ContextHandler{Handler: log.NewJSONHandler(os.Stdout, &log.HandlerOptions{Level: log.LevelInfo})}))

	flags := pflag.NewFlagSet("heartbeat", pflag.ExitOnError)
	flags.String("server", "http://127.0.0.1:8080", "Parley API 地址")
	flags.String("token", "", "会话令牌 (Bearer JWT)")
	flags.String("jwt-secret", "", "未提供 token 时用该密钥本地签发")
	flags.String("subject", "", "本地签发时的 externalId")
	flags.Duration("interval", presence.HeartbeatInterval, "心跳周期")
	flags.Duration("timeout", 5*time.Second, "单次上报超时")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("PARLEY_HEARTBEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		log.Error("bind flags failed", "err", err)
		os.Exit(1)
	}

	token := v.GetString("token")
	if token == "" && v.GetString("jwt-secret") != "" {
		security.InitJWT(v.GetString("jwt-secret"), "")
		t, err := security.GenerateToken(v.GetString("subject"), v.GetString("subject"), "")
		if err != nil {
			log.Error("generate token failed", "err", err)
			os.Exit(1)
		}
		token = t
	}
	if token == "" {
		log.Error("token or jwt-secret + subject is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newPresenceClient(v.GetString("server"), token, v.GetDuration("timeout"))
	emitter := presence.NewEmitter(client.WriteStatus,
		presence.WithInterval(v.GetDuration("interval")),
		presence.WithLogAttrs("server", v.GetString("server")),
	)
	if err := emitter.Start(ctx); err != nil {
		log.Error("start emitter failed", "err", err)
		os.Exit(1)
	}
	log.Info("heartbeat started", "interval", v.GetDuration("interval"))

	visibility := make(chan os.Signal, 1)
	signal.Notify(visibility, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(visibility)

	for {
		select {
		case sig := <-visibility:
			if sig == syscall.SIGUSR1 {
				emitter.Hidden(ctx)
			} else {
				emitter.Visible(ctx)
			}
		case <-ctx.Done():
			// 最后一次离线上报不能用已取消的 ctx
			stopCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("timeout"))
			emitter.Stop(stopCtx)
			cancel()
			log.Info("heartbeat stopped")
			return
		}
	}
}
