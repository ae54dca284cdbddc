// Package app assembles the pipeline from configuration. Both binaries use it.
package app

import (
	"time"

	"media-transcript-go/internal/config"
	"media-transcript-go/internal/deps"
	"media-transcript-go/internal/fetcher"
	"media-transcript-go/internal/logger"
	"media-transcript-go/internal/media"
	"media-transcript-go/internal/pipeline"
	"media-transcript-go/internal/processor"
	"media-transcript-go/internal/transcription"
	"media-transcript-go/internal/translation"
)

// App holds the wired collaborators behind one session.
type App struct {
	Config       *config.Config
	Deps         []deps.Status
	Orchestrator *processor.Orchestrator
	Translator   *translation.Client
	Fetcher      *fetcher.Fetcher
	Session      *pipeline.Session
}

// Build checks external binaries and wires a session. It fails only when a
// mandatory binary is missing. Without ffprobe the configured chunk duration
// is used as is.
func Build(cfg *config.Config, log *logger.Logger) (*App, error) {
	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	if err := deps.Require(statuses); err != nil {
		return nil, err
	}
	return build(cfg, statuses, media.ExecRunner{}, log), nil
}

func build(cfg *config.Config, statuses []deps.Status, runner media.Runner, log *logger.Logger) *App {
	if log == nil {
		log = logger.New()
	}
	encode := media.EncodeOptions{
		SampleRate: cfg.Media.SampleRate,
		Channels:   cfg.Media.Channels,
		Bitrate:    cfg.Media.Bitrate,
	}
	runner = media.WithTimeout(runner, cfg.ToolTimeout())

	procDeps := processor.Deps{
		Compressor: media.NewCompressor(cfg.Media.FFmpegBinary, runner, encode),
		Chunker:    media.NewChunker(cfg.Media.FFmpegBinary, runner, encode),
		Transcriber: transcription.New(transcription.Options{
			APIKey:        cfg.Transcription.APIKey,
			Endpoint:      cfg.Transcription.BaseURL,
			Model:         cfg.Transcription.Model,
			Language:      cfg.Transcription.Language,
			Timeout:       seconds(cfg.Transcription.TimeoutSeconds),
			RetryAttempts: cfg.Transcription.RetryAttempts,
			Mock:          cfg.Transcription.Mock,
		}, log),
	}
	adaptive := cfg.Media.AdaptiveChunking && deps.Available(statuses, "FFprobe")
	if adaptive {
		procDeps.Prober = media.NewProber(cfg.Media.FFprobeBinary, runner)
	} else if cfg.Media.AdaptiveChunking {
		log.Warn("ffprobe not found; using the configured chunk duration")
	}

	orch := processor.New(processor.Options{
		Limit:         cfg.CapacityLimit(),
		ChunkDuration: cfg.ChunkDuration(),
		Adaptive:      adaptive,
	}, procDeps, log)

	tr := translation.New(translation.Options{
		APIKey:        cfg.Translation.APIKey,
		Endpoint:      cfg.Translation.BaseURL,
		Model:         cfg.Translation.Model,
		Timeout:       seconds(cfg.Translation.TimeoutSeconds),
		RetryAttempts: cfg.Translation.RetryAttempts,
		Mock:          cfg.Translation.Mock,
	}, log)

	a := &App{
		Config:       cfg,
		Deps:         statuses,
		Orchestrator: orch,
		Translator:   tr,
	}

	sessionDeps := pipeline.Deps{Transcriber: orch, Translator: tr}
	if deps.Available(statuses, "yt-dlp") {
		a.Fetcher = fetcher.New(fetcher.Options{
			YTDLPBinary:  cfg.Media.YTDLPBinary,
			FFmpegBinary: cfg.Media.FFmpegBinary,
		}, runner, log)
		sessionDeps.Fetcher = a.Fetcher
	} else {
		log.Warn("yt-dlp not found; URL input disabled")
	}

	a.Session = pipeline.NewSession(pipeline.Options{
		WorkDir:        cfg.Media.WorkDir,
		TargetLanguage: cfg.Translation.TargetLanguage,
	}, sessionDeps, log)
	return a
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
