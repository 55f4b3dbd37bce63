// Command realtime-service terminates websocket connections for the
// collaboration app: presence tracking, heartbeat liveness, and
// notification fan-out.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/collabhub/realtime/bootstrap"
	"github.com/collabhub/realtime/domain"
	"github.com/collabhub/realtime/heartbeat"
	"github.com/collabhub/realtime/http/handler"
	"github.com/collabhub/realtime/http/route"
	"github.com/collabhub/realtime/presence"
	"github.com/collabhub/realtime/queue"
	"github.com/collabhub/realtime/registry"
	"github.com/collabhub/realtime/repository"
	"github.com/collabhub/realtime/router"
	"github.com/collabhub/realtime/service"
	"github.com/collabhub/realtime/use_case"
)

func main() {
	app, err := bootstrap.NewApp()
	if err != nil {
		log.Fatalf("bootstrap: %s", err)
	}
	defer app.Close()

	logger := app.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := app.Env

	preferenceRepo := repository.NewPreference(app.RedisClient)
	presenceRepo := repository.NewPresence(app.RedisClient)
	membershipRepo := repository.NewMembership(app.RedisClient)
	notificationRepo := repository.NewNotification(app.CassandraSession)

	tracker := presence.NewTracker(presence.Config{
		AwayTimeout: env.AwayTimeout(),
		AFKTimeout:  env.AFKTimeout(),
	}, preferenceRepo, logger)

	reg := registry.New(env.MaxConnections, registry.Hooks{
		UserOnline: func(userID uint64, at time.Time) {
			tracker.Apply(userID, domain.PresenceSignal{Kind: domain.SignalConnect, At: at})
		},
		UserOffline: func(userID uint64, at time.Time) {
			tracker.Apply(userID, domain.PresenceSignal{Kind: domain.SignalDisconnect, At: at})
		},
	}, logger)

	ring := router.NewRing(env.EventRingSize, env.EventRingTTL())
	rt := router.New(reg, membershipRepo, preferenceRepo, ring, logger)

	presenceFanout, err := queue.NewPresenceFanout(app.RabbitMQConnection, logger)
	if err != nil {
		logger.Fatal("create presence fanout", zap.Error(err))
	}
	defer presenceFanout.Close()

	updatePresence := use_case.NewUpdatePresence(presenceRepo, presenceFanout)

	tracker.SetChangeListener(func(userID uint64, state domain.PresenceState) {
		if err := updatePresence.Execute(ctx, userID, state); err != nil {
			logger.Error("propagate presence change",
				zap.Uint64("userId", userID),
				zap.Error(err),
			)
		}
	})

	eventQueue, err := queue.NewEvent(app.RabbitMQConnection, logger)
	if err != nil {
		logger.Fatal("create event queue", zap.Error(err))
	}
	defer eventQueue.Close()

	chatOutbound, err := queue.NewChatOutbound(app.RabbitMQConnection)
	if err != nil {
		logger.Fatal("create chat outbound queue", zap.Error(err))
	}
	defer chatOutbound.Close()

	uidGenerator := service.NewSonyflakeUID(app.SonyFlake)
	publishEvent := use_case.NewPublishEvent(uidGenerator, membershipRepo, notificationRepo, eventQueue, logger)
	forwarder := service.NewChatForwarder(uidGenerator, chatOutbound)

	monitor := heartbeat.NewMonitor(reg, env.HeartbeatInterval(), env.HeartbeatTimeout(), logger)

	go monitor.Run(ctx)
	go tracker.RunGC(ctx, time.Minute)
	go ring.RunGC(ctx, time.Minute)

	go func() {
		if err := eventQueue.Consume(ctx, rt); err != nil {
			logger.Error("event consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		err := presenceFanout.Consume(ctx, func(update *domain.PresenceUpdate) {
			rt.Broadcast(update, update.UserID)
		})
		if err != nil {
			logger.Error("presence consumer stopped", zap.Error(err))
		}
	}()

	h := handler.NewHandler(
		handler.NewRealtime(reg, tracker, forwarder, publishEvent, rt, env.HeartbeatTimeout(), logger),
		handler.NewPresence(tracker, preferenceRepo, presenceRepo, logger),
		handler.NewNotification(notificationRepo, logger),
	)

	eng := route.Setup(h, env.EnvironmentName)

	logger.Info("listening", zap.Int("port", env.HTTPPortNumber))

	if err := eng.Run(fmt.Sprintf(":%d", env.HTTPPortNumber)); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
