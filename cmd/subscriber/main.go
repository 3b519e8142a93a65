// Subscriber prints live phase transitions published by the api server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/swap-execution-engine/internal/cache"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/config"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/constants"
	"github.com/aman-zulfiqar/swap-execution-engine/internal/models"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	sessionID := flag.String("session", "", "follow one session instead of all transitions")
	outcomesOnly := flag.Bool("outcomes", false, "only print finished attempts")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: cfg.RedisAddr}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer rc.Close()

	channel := constants.PubSubChannelTransitions
	switch {
	case *sessionID != "":
		channel = constants.PubSubChannelSession + *sessionID
	case *outcomesOnly:
		channel = constants.PubSubChannelOutcomes
	}

	events, err := rc.SubscribeTransitions(ctx, channel)
	if err != nil {
		logger.WithError(err).Fatal("failed to subscribe")
	}

	logger.WithField("channel", channel).Info("subscriber running, press Ctrl+C to stop")

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down subscriber")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			printEvent(logger, ev)
		}
	}
}

func printEvent(logger *logrus.Logger, ev *models.TransitionEvent) {
	entry := logger.WithFields(logrus.Fields{
		"session": ev.SessionID,
		"seq":     ev.Seq,
		"from":    ev.From,
		"to":      ev.To,
	})
	if ev.AmountAtomic > 0 {
		entry = entry.WithFields(logrus.Fields{
			"input_mint":    ev.InputMint,
			"output_mint":   ev.OutputMint,
			"amount_atomic": ev.AmountAtomic,
		})
	}
	switch {
	case ev.To == "success":
		entry.WithField("signature", ev.Signature).Info(ev.Reason)
	case ev.To == "failed":
		entry.WithFields(logrus.Fields{"status": ev.Status, "error": ev.ErrorPreview}).Warn(ev.Reason)
	default:
		entry.Info(ev.Reason)
	}
}
