// Command orchestrator runs the Queue Controller, Timeout Reaper, and
// Completion Handler loops (C4-C6) against either the production GCP
// backends (Firestore/Cloud Batch/Pub-Sub) or the local dev/test
// backends (gorm+SQLite/in-process channel/fake executor), selected by
// WHISPERQUEUE_BACKEND. Grounded in the teacher's cmd/server/main.go
// startup sequence and its cobra+kardianos/service CLI
// (internal/cli/{root,service}.go).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	gcpbatch "cloud.google.com/go/batch/apiv1"
	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"whisperqueue/internal/batch"
	"whisperqueue/internal/batch/cloudbatch"
	"whisperqueue/internal/batch/fake"
	"whisperqueue/internal/config"
	"whisperqueue/internal/eventbus"
	"whisperqueue/internal/eventbus/local"
	pubsubbus "whisperqueue/internal/eventbus/pubsub"
	"whisperqueue/internal/logger"
	"whisperqueue/internal/notify"
	"whisperqueue/internal/orchestrator"
	"whisperqueue/internal/store"
	fsstore "whisperqueue/internal/store/firestore"
	"whisperqueue/internal/store/sqlstore"
)

var (
	version = "dev"

	rootCmd = &cobra.Command{
		Use:   "orchestrator",
		Short: "Speech-transcription job orchestrator",
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the reaper, controller, and completion handler loops",
		Run:   runServe,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reaper sweep and one controller dispatch, then exit",
		Run:   runReconcile,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, reconcileCmd)
	registerServiceCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	log := logger.Init(os.Getenv("LOG_LEVEL"))
	log.Startup("config", "loading configuration")
	cfg := config.Load(log.Logger)

	s, bus, exec, notifier, closeFn := buildBackends(cfg, log)
	defer closeFn()

	rt := orchestrator.New(cfg, log.Logger, s, exec, bus, notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("orchestrator running", "version", version)
	if err := rt.Run(ctx); err != nil {
		log.Error("orchestrator exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("orchestrator shut down cleanly")
}

func runReconcile(cmd *cobra.Command, args []string) {
	log := logger.Init(os.Getenv("LOG_LEVEL"))
	cfg := config.Load(log.Logger)

	s, bus, exec, notifier, closeFn := buildBackends(cfg, log)
	defer closeFn()

	rt := orchestrator.New(cfg, log.Logger, s, exec, bus, notifier)

	ctx := context.Background()
	rt.Reaper().Tick(ctx)
	claimed, err := rt.Controller().Dispatch(ctx)
	if err != nil {
		log.Error("reconcile dispatch failed", "error", err)
		os.Exit(1)
	}
	log.Info("reconcile complete", "claimed", len(claimed))
}

// buildBackends selects the production GCP adapters or the local
// dev/test adapters based on WHISPERQUEUE_BACKEND ("gcp", the default,
// or "local").
func buildBackends(cfg *config.Config, log *logger.Logger) (store.Store, eventbus.Bus, batch.Executor, notify.Notifier, func()) {
	notifier := notify.NewLogNotifier(log.Logger)

	if os.Getenv("WHISPERQUEUE_BACKEND") == "local" {
		log.Startup("backend", "using local SQLite/channel/fake backends")
		s, err := sqlstore.Open(cfg.DatabasePath)
		if err != nil {
			log.Error("failed to open local store", "error", err)
			os.Exit(1)
		}
		return s, local.New(64), fake.New(), notifier, func() { _ = s.Close() }
	}

	log.Startup("backend", "using Firestore/Cloud Batch/Pub-Sub backends")
	ctx := context.Background()

	fsClient, err := firestore.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		log.Error("failed to create firestore client", "error", err)
		os.Exit(1)
	}
	s := fsstore.New(fsClient, cfg.WhisperJobsCollection)

	batchClient, err := gcpbatch.NewClient(ctx)
	if err != nil {
		log.Error("failed to create cloud batch client", "error", err)
		os.Exit(1)
	}
	exec := cloudbatch.New(batchClient, cloudbatch.Config{
		ProjectID:   cfg.GCPProjectID,
		Region:      cfg.GCPRegion,
		Bucket:      cfg.Bucket,
		ImageURL:    cfg.BatchImageURL,
		HFAuthToken: cfg.HFAuthToken,
		PubsubTopic: cfg.PubsubTopic,
	})

	psClient, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		log.Error("failed to create pubsub client", "error", err)
		os.Exit(1)
	}
	topic := psClient.Topic(cfg.PubsubTopic)
	var sub *pubsub.Subscription
	if cfg.PubsubSubscription != "" {
		sub = psClient.Subscription(cfg.PubsubSubscription)
	}
	bus := pubsubbus.New(topic, sub)

	closeFn := func() {
		_ = fsClient.Close()
		_ = batchClient.Close()
		_ = psClient.Close()
	}
	return s, bus, exec, notifier, closeFn
}

// --- kardianos/service wiring, grounded in the teacher's internal/cli/service.go ---

type program struct {
	cancel context.CancelFunc
}

func (p *program) Start(s service.Service) error {
	go p.run()
	return nil
}

func (p *program) run() {
	log := logger.Init(os.Getenv("LOG_LEVEL"))
	cfg := config.Load(log.Logger)

	s, bus, exec, notifier, closeFn := buildBackends(cfg, log)
	defer closeFn()

	rt := orchestrator.New(cfg, log.Logger, s, exec, bus, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	if err := rt.Run(ctx); err != nil {
		log.Error("service run failed", "error", err)
	}
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func serviceConfig() *service.Config {
	ex, err := os.Executable()
	if err != nil {
		log.Fatal(err)
	}
	return &service.Config{
		Name:        "whisperqueue-orchestrator",
		DisplayName: "WhisperQueue Orchestrator",
		Description: "Runs the speech-transcription job orchestrator's reaper, controller, and completion handler loops.",
		Executable:  ex,
		Arguments:   []string{"service-run"},
	}
}

func registerServiceCommands(root *cobra.Command) {
	serviceRunCmd := &cobra.Command{
		Use:    "service-run",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			s, err := service.New(&program{}, serviceConfig())
			if err != nil {
				log.Fatalf("failed to create service: %v", err)
			}
			if err := s.Run(); err != nil {
				log.Fatalf("service failed to run: %v", err)
			}
		},
	}

	install := &cobra.Command{
		Use:   "install",
		Short: "Install the orchestrator as an OS service",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := service.New(&program{}, serviceConfig())
			if err != nil {
				log.Fatal(err)
			}
			if err := s.Install(); err != nil {
				log.Fatalf("failed to install service: %v", err)
			}
			fmt.Println("service installed")
		},
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start the installed OS service",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := service.New(&program{}, serviceConfig())
			if err != nil {
				log.Fatal(err)
			}
			if err := s.Start(); err != nil {
				log.Fatalf("failed to start service: %v", err)
			}
			fmt.Println("service started")
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the installed OS service",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := service.New(&program{}, serviceConfig())
			if err != nil {
				log.Fatal(err)
			}
			if err := s.Stop(); err != nil {
				log.Fatalf("failed to stop service: %v", err)
			}
			fmt.Println("service stopped")
		},
	}

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the OS service",
		Run: func(cmd *cobra.Command, args []string) {
			s, err := service.New(&program{}, serviceConfig())
			if err != nil {
				log.Fatal(err)
			}
			if err := s.Uninstall(); err != nil {
				log.Fatalf("failed to uninstall service: %v", err)
			}
			fmt.Println("service uninstalled")
		},
	}

	root.AddCommand(serviceRunCmd, install, start, stop, uninstall)
}
