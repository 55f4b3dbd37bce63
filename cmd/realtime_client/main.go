// Command realtime-client is a diagnostic consumer: it connects to a
// realtime node as one user and prints every frame it receives,
// reconnecting with backoff when the connection drops.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	"github.com/collabhub/realtime/reconnect"
)

type env struct {
	ServerURL string `env:"REALTIME_SERVER_URL" env-default:"ws://localhost:8080/v1/realtime/ws"`
	UserID    uint64 `env:"REALTIME_USER_ID" env-required:"true"`

	HeartbeatIntervalMs  int `env:"HEARTBEAT_INTERVAL_MS" env-default:"30000"`
	ReconnectBaseMs      int `env:"RECONNECT_BASE_MS" env-default:"1000"`
	ReconnectCapMs       int `env:"RECONNECT_CAP_MS" env-default:"30000"`
	ReconnectMaxAttempts int `env:"RECONNECT_MAX_ATTEMPTS" env-default:"10"`
}

func main() {
	var e env
	if err := cleanenv.ReadEnv(&e); err != nil {
		log.Fatalf("read env: %s", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("create logger: %s", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	header.Set("X-User-Id", fmt.Sprintf("%d", e.UserID))

	backoff := reconnect.NewBackoff(
		time.Duration(e.ReconnectBaseMs)*time.Millisecond,
		time.Duration(e.ReconnectCapMs)*time.Millisecond,
		e.ReconnectMaxAttempts,
	)

	controller := reconnect.NewController(
		reconnect.WebsocketDialer(e.ServerURL, header),
		backoff,
		time.Duration(e.HeartbeatIntervalMs)*time.Millisecond,
		func(data []byte) {
			logger.Info("frame", zap.ByteString("data", data))
		},
		func(state reconnect.State) {
			logger.Info("connection state", zap.String("state", string(state)))
		},
		logger,
	)

	controller.Run(ctx)
}
