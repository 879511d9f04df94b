// Copyright (c) 2026 Heerawalla
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Heerawalla Atelier Relay
//
// Entry point for the relay service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to Redis (thread state) and, when configured, PostgreSQL
//     (submission log)
//  3. Builds the outbound dispatcher and the Google API clients
//  4. Wires the inbound-email classifier and the website form handlers
//  5. Runs the queued-acknowledgment sweeper when ack_mode is "queue"
//  6. Serves the HTTP API and handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/heerawalla/atelier-relay/internal/ackgate"
	"github.com/heerawalla/atelier-relay/internal/calendar"
	"github.com/heerawalla/atelier-relay/internal/catalog"
	"github.com/heerawalla/atelier-relay/internal/classifier"
	"github.com/heerawalla/atelier-relay/internal/config"
	"github.com/heerawalla/atelier-relay/internal/contacts"
	"github.com/heerawalla/atelier-relay/internal/dispatch"
	"github.com/heerawalla/atelier-relay/internal/gauth"
	"github.com/heerawalla/atelier-relay/internal/httpapi"
	"github.com/heerawalla/atelier-relay/internal/submitlog"
	"github.com/heerawalla/atelier-relay/internal/threadstore"
	"github.com/heerawalla/atelier-relay/internal/validate"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting atelier relay")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"forward_to", cfg.ForwardTo,
		"ack_mode", cfg.AckMode,
		"internal_senders", len(cfg.InternalSenders),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	store := threadstore.New(rdb)
	if err := store.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	gate := ackgate.New(rdb)

	// --- Connect to PostgreSQL (optional submission log) ---
	var pgPool *pgxpool.Pool
	var subLog *submitlog.Store
	if cfg.DatabaseURL != "" {
		pgPool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := pgPool.Ping(ctx); err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		subLog, err = submitlog.NewStore(ctx, pgPool)
		if err != nil {
			slog.Error("failed to initialise submission log", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, submission log disabled")
	}

	// --- Outbound Dispatcher ---
	var dispatcher dispatch.Dispatcher
	if cfg.ResendAPIKey != "" {
		dispatcher = dispatch.NewResendClient(cfg.ResendAPIKey)
	} else {
		slog.Warn("RESEND_API_KEY not set, outbound mail is dry-run logged")
		dispatcher = dispatch.LogDispatcher{}
	}

	// --- Google clients (optional: contacts directory + calendar) ---
	var directory *contacts.Client
	var scheduler *calendar.Client
	if cfg.Google.ClientID != "" && cfg.Google.RefreshToken != "" {
		gclient, err := gauth.New(ctx, gauth.Credentials{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RefreshToken: cfg.Google.RefreshToken,
		})
		if err != nil {
			slog.Error("failed to build Google client", "error", err)
			os.Exit(1)
		}
		directory = contacts.NewClient(gclient.HTTP(), "")
		if cfg.Google.CalendarID != "" {
			scheduler, err = calendar.NewClient(gclient.HTTP(), "", cfg.Google.CalendarID)
			if err != nil {
				slog.Error("failed to build calendar client", "error", err)
				os.Exit(1)
			}
		}
		slog.Info("Google clients ready", "calendar", cfg.Google.CalendarID != "")
	} else {
		slog.Warn("Google credentials not set, directory sync and scheduling disabled")
	}

	// --- Catalog feeds ---
	var feeds *catalog.Service
	if cfg.Catalog.ProductsURL != "" || cfg.Catalog.InspirationsURL != "" || cfg.Catalog.SiteConfigURL != "" {
		feeds = catalog.New(nil, rdb, map[string]string{
			"products":     cfg.Catalog.ProductsURL,
			"inspirations": cfg.Catalog.InspirationsURL,
			"site-config":  cfg.Catalog.SiteConfigURL,
		})
	}

	// --- Classifier ---
	proc := classifier.New(store, gate, dispatcher, classifier.Options{
		ForwardTo:        cfg.ForwardTo,
		ForwardRejectsTo: cfg.ForwardRejectsTo,
		ReplyTo:          cfg.ReplyTo,
		NoReplyAddress:   cfg.NoReplyAddress,
		InternalSenders:  cfg.InternalSenders,
		SendAck:          cfg.SendAck,
		SendReject:       cfg.SendReject,
		AckMode:          cfg.AckMode,
	})

	// --- Queued-Acknowledgment Sweeper ---
	var sweeper *ackgate.Sweeper
	if cfg.AckMode == "queue" {
		sweeper = ackgate.NewSweeper(gate, cfg.AckSweepInterval)
		sweeper.Deliver = func(ctx context.Context, id string) error {
			origin, err := store.Origin(ctx, id)
			if err != nil {
				return err
			}
			if origin == nil {
				// The thread expired before its ack was swept; drop it.
				return nil
			}
			return dispatcher.Send(ctx, dispatch.Message{
				To:      []string{origin.Email},
				Sender:  "Heerawalla <" + cfg.NoReplyAddress + ">",
				ReplyTo: cfg.NoReplyAddress,
				Subject: dispatch.AckSubject,
				Text:    dispatch.AckText,
				HTML:    dispatch.AckHTML,
				Headers: dispatch.AutoReplyHeaders(),
			})
		}
		sweeper.Start(ctx)
		slog.Info("ack sweeper running", "interval", cfg.AckSweepInterval)
	}

	// --- HTTP API ---
	handler := &httpapi.Handler{
		Processor:  proc,
		Store:      store,
		Gate:       gate,
		Dispatcher: dispatcher,
		Config:     cfg,
		Verifier:   validate.NewDomainChecker(),
		Ping: func(ctx context.Context) error {
			if err := store.Ping(ctx); err != nil {
				return err
			}
			if pgPool != nil {
				return pgPool.Ping(ctx)
			}
			return nil
		},
	}
	if subLog != nil {
		handler.Log = subLog
	}
	if directory != nil {
		handler.Directory = directory
	}
	if scheduler != nil {
		handler.Scheduler = scheduler
	}
	if feeds != nil {
		handler.Feeds = feeds
	}

	ready, err := httpapi.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("relay ready", "port", cfg.Port)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel() // stops the api server and background goroutines

	if sweeper != nil {
		sweeper.Stop()
	}

	// Give in-flight requests a moment to finish logging.
	time.Sleep(200 * time.Millisecond)

	if err := rdb.Close(); err != nil {
		slog.Error("redis close error", "error", err)
	}

	slog.Info("atelier relay stopped")
}
