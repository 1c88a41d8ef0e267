// Command skipsim plays a simulated video against a running VisionMark API
// and skips whatever the active set marks as advertisement.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/StudyingHUYANG/VisionMark/internal/apiclient"
	"github.com/StudyingHUYANG/VisionMark/internal/middleware"
	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/playback"
	"github.com/StudyingHUYANG/VisionMark/pkg/hash"
)

type simConfig struct {
	APIURL   string
	Video    model.VideoKey
	Duration float64
	Speed    float64
	Mode     playback.Mode
	LogLevel string

	// Optional segment submitted before playback starts.
	SubmitStart float64
	SubmitEnd   float64
}

func loadConfig() simConfig {
	v := viper.New()
	v.SetEnvPrefix("SKIPSIM")
	v.AutomaticEnv()
	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("VIDEO_ID", "BV1xx411c7mD")
	v.SetDefault("PART_ID", "1")
	v.SetDefault("DURATION", 120.0)
	v.SetDefault("SPEED", 10.0)
	v.SetDefault("MODE", string(playback.ModeAuto))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SUBMIT_START", 0.0)
	v.SetDefault("SUBMIT_END", 0.0)

	return simConfig{
		APIURL:      v.GetString("API_URL"),
		Video:       model.VideoKey{ContentID: v.GetString("VIDEO_ID"), PartID: v.GetString("PART_ID")},
		Duration:    v.GetFloat64("DURATION"),
		Speed:       v.GetFloat64("SPEED"),
		Mode:        playback.Mode(v.GetString("MODE")),
		LogLevel:    v.GetString("LOG_LEVEL"),
		SubmitStart: v.GetFloat64("SUBMIT_START"),
		SubmitEnd:   v.GetFloat64("SUBMIT_END"),
	}
}

func main() {
	cfg := loadConfig()
	middleware.InitLogger(cfg.LogLevel, "visionmark-skipsim")
	logger := middleware.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userID := hash.HashSubmitterID(uuid.NewString())
	client := apiclient.New(cfg.APIURL, apiclient.WithUserID(userID))

	opts := playback.DefaultOptions()
	opts.Mode = cfg.Mode
	opts.Logger = logger
	session := playback.NewSession(client, opts)
	defer session.Close()

	player := newSimPlayer(cfg.Video, cfg.Duration, cfg.Speed)

	if cfg.SubmitEnd > cfg.SubmitStart {
		session.Track(cfg.Video)
		resp, err := session.Submit(ctx, model.Interval{Start: cfg.SubmitStart, End: cfg.SubmitEnd}, model.CategoryHardAd)
		if err != nil {
			logger.Error().Err(err).Msg("submit failed")
		} else {
			logger.Info().Int64("segment_id", resp.ID).Int("points", resp.PointsEarned).Msg("segment submitted")
		}
	}

	logger.Info().
		Str("api", cfg.APIURL).
		Str("video", cfg.Video.String()).
		Float64("duration", cfg.Duration).
		Float64("speed", cfg.Speed).
		Str("session_id", session.ID()).
		Msg("playback started")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-player.Done()
		cancel()
	}()

	prompt := func(d playback.Decision) {
		if d.SegmentID == 0 {
			logger.Info().Msg("skip prompt withdrawn")
			return
		}
		logger.Info().
			Int64("segment_id", d.SegmentID).
			Str("category", string(d.Category)).
			Float64("target", d.Target).
			Msg("advertisement detected, skip available")
	}
	_ = playback.Run(runCtx, session, player, prompt)

	skipped := player.Skipped()
	logger.Info().
		Int("skips", len(skipped)).
		Float64("seconds_saved", savedSeconds(skipped)).
		Msg("playback finished")
}

func savedSeconds(skips []skipEvent) float64 {
	var total float64
	for _, s := range skips {
		total += s.To - s.From
	}
	return total
}
