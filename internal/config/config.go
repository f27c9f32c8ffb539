// Package config is the Config loader (C7): the full environment table
// from spec §6, loaded via viper with AutomaticEnv plus explicit
// defaults, generalized from the teacher's CLI-only viper config
// (internal/cli/config.go) to the orchestrator's whole environment.
// MAX_PROCESSING_JOBS, POLL_INTERVAL_SECONDS, PROCESS_TIMEOUT_SECONDS,
// and AUDIO_TIMEOUT_MULTIPLIER are re-read on every access so an
// optional orchestrator.yaml can change them without a restart (spec
// §4.6 "Edge policy"); the watch is grounded in the teacher's
// internal/dropzone/dropzone.go and internal/cli/watch.go fsnotify use.
package config

import (
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds process-wide settings, backed by viper. The hot-reload
// fields are stored as atomics so concurrent reads from C4/C5 never
// race with a config-file reload.
type Config struct {
	v *viper.Viper

	maxProcessingJobs   atomic.Int64
	processTimeoutSecs  atomic.Int64
	pollIntervalSecs    atomic.Int64
	audioTimeoutMult    atomic.Uint64 // math.Float64bits

	// Static for the process lifetime; these name external systems and
	// don't benefit from hot reload.
	WhisperJobsCollection string
	PubsubTopic           string
	PubsubSubscription    string
	BatchImageURL         string
	HFAuthToken           string
	GCPProjectID          string
	GCPRegion             string
	Bucket                string
	DatabasePath          string
	EmailNotification     bool
}

// Load reads configuration from the environment (and an optional
// orchestrator.yaml in the working directory or /etc/whisperqueue),
// applying the §6 default column, then starts watching the config file
// for changes to the hot-reload fields.
func Load(log *slog.Logger) *Config {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("MAX_PROCESSING_JOBS", 1)
	v.SetDefault("PROCESS_TIMEOUT_SECONDS", 300)
	v.SetDefault("AUDIO_TIMEOUT_MULTIPLIER", 2.0)
	v.SetDefault("POLL_INTERVAL_SECONDS", 10)
	v.SetDefault("EMAIL_NOTIFICATION", false)
	v.SetDefault("DATABASE_PATH", "data/whisperqueue.db")

	v.SetConfigName("orchestrator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/whisperqueue")
	if err := v.ReadInConfig(); err != nil {
		log.Info("no orchestrator.yaml found, using environment only")
	}

	pubsubSubscription := v.GetString("PUBSUB_SUBSCRIPTION")
	pubsubTopic := v.GetString("PUBSUB_TOPIC")
	if pubsubSubscription == "" {
		// A deployment that never set PUBSUB_SUBSCRIPTION explicitly is
		// assumed to use the single-subscriber convention of naming the
		// subscription after its topic, rather than leaving the
		// orchestrator with no subscription to receive on.
		pubsubSubscription = pubsubTopic
	}

	cfg := &Config{
		v:                     v,
		WhisperJobsCollection: v.GetString("WHISPER_JOBS_COLLECTION"),
		PubsubTopic:           pubsubTopic,
		PubsubSubscription:    pubsubSubscription,
		BatchImageURL:         v.GetString("BATCH_IMAGE_URL"),
		HFAuthToken:           v.GetString("HF_AUTH_TOKEN"),
		GCPProjectID:          v.GetString("GCP_PROJECT_ID"),
		GCPRegion:             v.GetString("GCP_REGION"),
		Bucket:                v.GetString("GCP_BUCKET"),
		DatabasePath:          v.GetString("DATABASE_PATH"),
		EmailNotification:     v.GetBool("EMAIL_NOTIFICATION"),
	}
	cfg.storeHotReload()

	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg.storeHotReload()
		log.Info("orchestrator.yaml reloaded")
	})
	v.WatchConfig()

	return cfg
}

func (c *Config) storeHotReload() {
	c.maxProcessingJobs.Store(c.v.GetInt64("MAX_PROCESSING_JOBS"))
	c.processTimeoutSecs.Store(c.v.GetInt64("PROCESS_TIMEOUT_SECONDS"))
	c.pollIntervalSecs.Store(c.v.GetInt64("POLL_INTERVAL_SECONDS"))
	c.audioTimeoutMult.Store(math.Float64bits(c.v.GetFloat64("AUDIO_TIMEOUT_MULTIPLIER")))
}

// MaxProcessingJobs is N_max (controller.Config).
func (c *Config) MaxProcessingJobs() int { return int(c.maxProcessingJobs.Load()) }

// ProcessTimeoutSeconds is T_process (reaper.Config).
func (c *Config) ProcessTimeoutSeconds() int { return int(c.processTimeoutSecs.Load()) }

// AudioTimeoutMultiplier is F_audio (reaper.Config).
func (c *Config) AudioTimeoutMultiplier() float64 {
	return math.Float64frombits(c.audioTimeoutMult.Load())
}

// PollIntervalSeconds is the C4/C5 tick cadence.
func (c *Config) PollIntervalSeconds() int { return int(c.pollIntervalSecs.Load()) }

// EmailNotificationEnabled (handler.NotifyConfig).
func (c *Config) EmailNotificationEnabled() bool { return c.EmailNotification }
