package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"
	"github.com/spf13/viper"

	"github.com/airenas/rt-caption-assistant/internal/assist"
	"github.com/airenas/rt-caption-assistant/internal/db"
	"github.com/airenas/rt-caption-assistant/internal/handlers"
	"github.com/airenas/rt-caption-assistant/internal/llm"
	"github.com/airenas/rt-caption-assistant/internal/norm"
	"github.com/airenas/rt-caption-assistant/internal/reconcile"
	"github.com/airenas/rt-caption-assistant/internal/service"
	"github.com/airenas/rt-caption-assistant/internal/transcript"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	setDefaults(cfg)

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	policy := norm.DefaultPolicy()
	if f := cfg.GetString("policy.file"); f != "" {
		var err error
		if policy, err = norm.LoadPolicy(f); err != nil {
			goapp.Log.Fatal().Err(err).Msg("can't load policy")
		}
	}

	hList, err := handlers.NewListHandler()
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init list handler")
	}
	hList.Add(handlers.NewCleaner(policy))
	hList.Add(handlers.NewCollapser())

	flags, err := transcript.NewLedger(cfg.GetInt("flags.max"), nil)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init flag ledger")
	}
	store := transcript.NewStore(cfg.GetInt("transcript.max_chars"), flags, policy)
	engine, err := reconcile.NewEngine(engineConfig(cfg), store, flags,
		reconcile.WithPolicy(policy), reconcile.WithMiddleware(hList))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init engine")
	}

	storage, err := initStorage(cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init storage")
	}
	sessionID := cfg.GetString("session.id")

	rewriter, replier, err := initLLM(cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init llm")
	}

	hub := service.NewHub(0)
	assistant, err := assist.NewAssistant(assist.Deps{Transcript: engine, Rewriter: rewriter, Replier: replier,
		Publisher: hub, Policy: policy}, assistConfig(cfg))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init assistant")
	}
	engine.AddListener(assistant)

	if s, err := storage.GetSettings(ctx, sessionID); err != nil {
		goapp.Log.Warn().Err(err).Msg("can't load settings")
	} else if s != nil {
		assistant.ApplySettings(*s)
	}

	flusher, err := db.NewFlusher(engine, storage, sessionID, cfg.GetString("flush.schedule"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init flusher")
	}
	if ok, err := flusher.Restore(ctx, engine); err != nil {
		goapp.Log.Warn().Err(err).Msg("can't restore transcript")
	} else if ok {
		goapp.Log.Info().Str("session", sessionID).Msg("transcript restored")
	}
	if err := flusher.Start(); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start flusher")
	}

	data := &service.Data{
		Ctx:         ctx,
		Port:        cfg.GetInt("port"),
		SessionID:   sessionID,
		Transcriber: engine,
		Assistant:   assistant,
		Settings:    storage,
		Hub:         hub,
	}
	doneCh, err := service.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}

	/////////////////////// Waiting for terminate
	waitCh := make(chan os.Signal, 2)
	signal.Notify(waitCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-waitCh:
		goapp.Log.Info().Msg("Got exit signal")
	case <-doneCh:
		goapp.Log.Info().Msg("Service exit")
	}
	cancelFunc()
	assistant.Close()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := flusher.Stop(stopCtx); err != nil {
		goapp.Log.Error().Err(err).Msg("final flush")
	}
	select {
	case <-doneCh:
		goapp.Log.Info().Msg("All code returned. Now exit. Bye")
	case <-time.After(time.Second * 15):
		goapp.Log.Warn().Msg("Timeout gracefull shutdown")
	}
}

func setDefaults(cfg *viper.Viper) {
	ec := reconcile.DefaultConfig()
	ac := assist.DefaultConfig()
	rc := llm.DefaultRetryConfig()
	cfg.SetDefault("port", 8000)
	cfg.SetDefault("session.id", "default")
	cfg.SetDefault("transcript.max_chars", transcript.DefaultMaxChars)
	cfg.SetDefault("merge.window", ec.MergeWindow)
	cfg.SetDefault("merge.short_delta", ec.ShortDelta)
	cfg.SetDefault("merge.open_delta", ec.OpenDelta)
	cfg.SetDefault("dedupe.ttl", ec.DedupeTTL)
	cfg.SetDefault("inference.window", ec.InferenceWindow)
	cfg.SetDefault("flags.max", transcript.DefaultFlagCapacity)
	cfg.SetDefault("auto.enabled", ac.Trigger.Enabled)
	cfg.SetDefault("auto.idle", ac.Trigger.Idle)
	cfg.SetDefault("auto.pause", ac.ManualPause)
	cfg.SetDefault("auto.max_lines", ac.TailLines)
	cfg.SetDefault("auto.correct", ac.AutoCorrect)
	cfg.SetDefault("trigger.final_only_origins", ac.FinalOnlyOrigins)
	cfg.SetDefault("reply.dedupe", ac.Lock.Dedupe)
	cfg.SetDefault("reply.hold", ac.Lock.Hold)
	cfg.SetDefault("reply.bump", ac.Lock.Bump)
	cfg.SetDefault("rewrite.origins", ac.RewriteOrigins)
	cfg.SetDefault("llm.backend", "http")
	cfg.SetDefault("llm.timeout", 30*time.Second)
	cfg.SetDefault("llm.retries", rc.Retries)
	cfg.SetDefault("openai.model", "gpt-4o-mini")
	cfg.SetDefault("correct.timeout", ac.CorrectTimeout)
	cfg.SetDefault("correct.max_segments", ac.CorrectMax)
	cfg.SetDefault("flush.schedule", "@every 2s")
}

func engineConfig(cfg *viper.Viper) reconcile.Config {
	res := reconcile.DefaultConfig()
	res.MergeWindow = cfg.GetDuration("merge.window")
	res.ShortDelta = cfg.GetInt("merge.short_delta")
	res.OpenDelta = cfg.GetInt("merge.open_delta")
	res.DedupeTTL = cfg.GetDuration("dedupe.ttl")
	res.InferenceWindow = cfg.GetDuration("inference.window")
	return res
}

func assistConfig(cfg *viper.Viper) assist.Config {
	res := assist.DefaultConfig()
	res.Trigger.Enabled = cfg.GetBool("auto.enabled")
	res.Trigger.Idle = cfg.GetDuration("auto.idle")
	res.ManualPause = cfg.GetDuration("auto.pause")
	res.TailLines = cfg.GetInt("auto.max_lines")
	res.AutoCorrect = cfg.GetBool("auto.correct")
	res.FinalOnlyOrigins = cfg.GetStringSlice("trigger.final_only_origins")
	res.Lock.Dedupe = cfg.GetDuration("reply.dedupe")
	res.Lock.Hold = cfg.GetDuration("reply.hold")
	res.Lock.Bump = cfg.GetDuration("reply.bump")
	res.RewriteOrigins = cfg.GetStringSlice("rewrite.origins")
	res.CorrectTimeout = cfg.GetDuration("correct.timeout")
	res.CorrectMax = cfg.GetInt("correct.max_segments")
	return res
}

func initStorage(cfg *viper.Viper) (db.SnapshotManager, error) {
	if url := cfg.GetString("redis.url"); url != "" {
		return db.NewRedisDataManager(url, cfg.GetString("redis.key"))
	}
	return db.NewMemoryDataManager(), nil
}

func initLLM(cfg *viper.Viper) (llm.Rewriter, llm.Replier, error) {
	retry := llm.DefaultRetryConfig()
	retry.Retries = cfg.GetInt("llm.retries")
	timeout := cfg.GetDuration("llm.timeout")
	if cfg.GetString("llm.backend") == "openai" {
		c, err := llm.NewOpenAIClient(llm.OpenAIConfig{Key: cfg.GetString("openai.key"), Model: cfg.GetString("openai.model"),
			URL: cfg.GetString("openai.url"), Timeout: timeout, Retry: retry})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
	c, err := llm.NewHTTPClient(llm.HTTPConfig{RewriteURL: cfg.GetString("llm.rewrite_url"),
		RepliesURL: cfg.GetString("llm.replies_url"), Timeout: timeout, Retry: retry})
	if err != nil {
		return nil, nil, err
	}
	return c, c, nil
}

var (
	version = "DEV"
)

func printBanner() {
	banner :=
		`
    CAPTION ASSISTANT v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/airenas/rt-caption-assistant"))
}
