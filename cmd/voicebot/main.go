// Command voicebot is the realtime engine's process entrypoint: it loads
// configuration, wires every collaborator (phrase cache, resampler pool,
// STT/TTS/LLM provider sessions, the directory client, the metrics meter),
// and runs the admission server until terminated (§6, §10).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/pflag"

	"github.com/lokutor-ai/voicedesk/db/migrations"
	"github.com/lokutor-ai/voicedesk/internal/ami"
	"github.com/lokutor-ai/voicedesk/internal/config"
	"github.com/lokutor-ai/voicedesk/internal/metrics"
	"github.com/lokutor-ai/voicedesk/pkg/callsession"
	"github.com/lokutor-ai/voicedesk/pkg/directory"
	"github.com/lokutor-ai/voicedesk/pkg/phrasecache"
	"github.com/lokutor-ai/voicedesk/pkg/providers/llm"
	"github.com/lokutor-ai/voicedesk/pkg/providers/stt"
	"github.com/lokutor-ai/voicedesk/pkg/providers/tts"
	"github.com/lokutor-ai/voicedesk/pkg/resample"
	"github.com/lokutor-ai/voicedesk/pkg/sanitize"
	"github.com/lokutor-ai/voicedesk/pkg/server"
)

// llmEndpoint is the realtime engine's single opaque LLM inference
// endpoint (§4.6). The wire shape is fixed in pkg/providers/llm; this is
// just where it's pointed.
const llmEndpoint = "https://api.groq.com/openai/v1/messages"

// sttEndpoint is the streaming transcription endpoint (§4.4, §6).
const sttEndpoint = "wss://api.deepgram.com/v1/listen"

// negativeKeywords is the closed, fixed vocabulary the sentiment guard
// counts against (§4.9), kept alongside the dialog package's own two
// problem-type keyword lists in spirit: ordinary, reproducible French
// support-desk vocabulary, not a learned or configurable list.
var negativeKeywords = []string{
	"inadmissible", "scandaleux", "scandale", "inacceptable", "honteux",
	"nul", "colère", "furieux", "furieuse", "plainte", "réclamation",
	"insupportable", "n'importe quoi", "ça suffit", "incompétent",
}

func main() {
	migrateOnly := pflag.Bool("migrate", false, "apply database migrations and exit")
	promptsFlag := pflag.String("prompts", "", "override the prompt-templates YAML path")
	pflag.Parse()

	logger := charmlog.New(os.Stderr)
	log := logAdapter{logger}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration error", "error", err)
	}
	if *promptsFlag != "" {
		cfg.PromptFile = *promptsFlag
	}
	if cfg.PromptFile == "" {
		cfg.PromptFile = "config/prompts.yaml"
	}

	if *migrateOnly {
		if err := runMigrations(cfg); err != nil {
			logger.Fatal("migration failed", "error", err)
		}
		logger.Info("migrations applied")
		return
	}

	promptSet, err := callsession.LoadPromptSet(cfg.PromptFile)
	if err != nil {
		logger.Fatal("failed to load prompt templates", "path", cfg.PromptFile, "error", err)
	}

	m, err := metrics.New()
	if err != nil {
		logger.Fatal("failed to init metrics", "error", err)
	}

	names := sanitize.NewList(negativeKeywords)

	cache := phrasecache.New(cfg.DynamicCacheMaxSize, log)
	if err := cache.Load(cfg.PhraseCacheDir); err != nil {
		log.Warn("phrase cache directory unavailable, static phrases disabled", "dir", cfg.PhraseCacheDir, "error", err)
	}
	cache.WarnMissing(callsession.StaticPhraseKeys)

	pool := resample.NewPool(cfg.ProcessPoolWorkers, resample.MP3Decoder{}, resample.NullEncoder{})

	ttsSession := tts.New(tts.Config{
		Endpoint: fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s/stream", cfg.ElevenLabsVoice),
		APIKey:   cfg.ElevenLabsAPIKey,
	}, pool)

	llmClient := llm.New(cfg.GroqAPIKey, llmEndpoint, cfg.GroqModel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dirClient, err := directory.Open(ctx, cfg.DBClientsDSN, cfg.DBTicketsDSN, names)
	if err != nil {
		logger.Fatal("failed to connect to directory databases", "error", err)
	}
	defer dirClient.Close()

	amiClient := ami.New(cfg.AMIHost, cfg.AMIPort, cfg.AMIUsername, cfg.AMISecret)

	settings := callsession.Settings{
		SilenceWarning:          time.Duration(cfg.SilenceWarningTimeoutSec) * time.Second,
		SilenceHangup:           time.Duration(cfg.SilenceHangupTimeoutSec) * time.Second,
		MaxCallDur:              time.Duration(cfg.MaxCallDurationSec) * time.Second,
		TechnicianMaxActive:     cfg.TechnicianMaxActiveTransfers,
		TechnicianLoadWindow:    cfg.TechnicianLoadWindowMin,
		SentimentAngerThreshold: cfg.SentimentAngerThreshold,
		NegativeKeywords:        names,
		BusinessOpen:            businessOpen(cfg),
		AMILookup:               amiClient.CallerNumber,
		PromptTemplates:         promptSet,
		STT: stt.Config{
			Endpoint: sttEndpoint,
			APIKey:   cfg.DeepgramAPIKey,
			Model:    cfg.DeepgramModel,
			Language: "fr",
		},
		TTSVoice: tts.VoiceConfig{
			Model:        cfg.ElevenLabsModel,
			Voice:        cfg.ElevenLabsVoice,
			Stability:    0.5,
			Similarity:   0.75,
			Style:        0,
			SpeakerBoost: true,
		},
		RecordingsDir: cfg.RecordingsDir,
	}

	deps := callsession.Deps{
		Cache:     cache,
		TTS:       ttsSession,
		LLM:       llmClient,
		Directory: dirClient,
		Events:    m,
		Logger:    log,
	}

	spawn := func(ctx context.Context, conn net.Conn, callID string) {
		m.Publish(callID, "call_started", nil)
		callsession.New(conn, callID, settings, deps, log).Run(ctx)
		m.Publish(callID, "call_ended", nil)
	}

	srv := server.New(server.Config{
		Addr:               net.JoinHostPort(cfg.AudioSocketHost, cfg.AudioSocketPort),
		MaxConcurrentCalls: cfg.MaxConcurrentCalls,
	}, spawn, log)

	metricsHTTP := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Router()}
	go func() {
		if err := metricsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	logger.Info("voicebot listening", "audiosocket", cfg.AudioSocketHost+":"+cfg.AudioSocketPort, "metrics", cfg.MetricsAddr)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("admission server stopped", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsHTTP.Shutdown(shutdownCtx)
	_ = m.Shutdown(shutdownCtx)
}

// businessOpen adapts config.Schedule (keyed Monday=0..Sunday=6, §6) to the
// callsession.Settings.BusinessOpen predicate, which is handed a wall-clock
// time.Time (time.Weekday is Sunday=0..Saturday=6, so it needs remapping).
func businessOpen(cfg config.Config) func(time.Time) bool {
	return func(t time.Time) bool {
		weekday := (int(t.Weekday()) + 6) % 7
		return cfg.BusinessSchedule.OpenAt(weekday, t.Hour())
	}
}

func runMigrations(cfg config.Config) error {
	clientsDB, err := sql.Open("pgx", cfg.DBClientsDSN)
	if err != nil {
		return fmt.Errorf("open clients db: %w", err)
	}
	defer clientsDB.Close()
	if err := migrations.RunClients(clientsDB); err != nil {
		return err
	}

	ticketsDB, err := sql.Open("pgx", cfg.DBTicketsDSN)
	if err != nil {
		return fmt.Errorf("open tickets db: %w", err)
	}
	defer ticketsDB.Close()
	return migrations.RunTickets(ticketsDB)
}

// logAdapter satisfies every narrow Logger interface in this module
// (callsession.Logger, server.Logger, phrasecache.Logger) over one
// charmbracelet/log.Logger, whose own methods take msg as interface{}
// rather than string.
type logAdapter struct {
	l *charmlog.Logger
}

func (a logAdapter) Debug(msg string, args ...interface{}) { a.l.Debug(msg, args...) }
func (a logAdapter) Info(msg string, args ...interface{})  { a.l.Info(msg, args...) }
func (a logAdapter) Warn(msg string, args ...interface{})  { a.l.Warn(msg, args...) }
func (a logAdapter) Error(msg string, args ...interface{}) { a.l.Error(msg, args...) }
