package apiclient_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StudyingHUYANG/VisionMark/internal/apiclient"
	"github.com/StudyingHUYANG/VisionMark/internal/handler"
	"github.com/StudyingHUYANG/VisionMark/internal/model"
	"github.com/StudyingHUYANG/VisionMark/internal/playback"
	"github.com/StudyingHUYANG/VisionMark/internal/repository"
	"github.com/StudyingHUYANG/VisionMark/internal/router"
	"github.com/StudyingHUYANG/VisionMark/internal/service"
)

func startServer(t *testing.T) string {
	t.Helper()
	store := repository.NewMemoryStore()
	engine := service.NewSegmentService(store, nil, service.DefaultPolicy(), service.DefaultPointsPerSubmission, zerolog.Nop())

	app := fiber.New()
	router.Setup(app, &router.Handlers{
		Segment: handler.NewSegmentHandler(engine, "test-salt"),
		User:    handler.NewUserHandler(service.NewUserService(store)),
		Stats:   handler.NewStatsHandler(service.NewStatsService(store)),
		Health:  handler.NewHealthHandler(nil, nil),
	}, "*")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String()
}

func TestClientAgainstServer(t *testing.T) {
	baseURL := startServer(t)
	key := model.VideoKey{ContentID: "BV1xx411c7mD", PartID: "2"}
	ctx := context.Background()

	alice := apiclient.New(baseURL, apiclient.WithUserID("alice"))
	bob := apiclient.New(baseURL, apiclient.WithUserID("bob"))

	segs, err := alice.ActiveSegments(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, segs)

	resp, err := alice.Submit(ctx, model.SubmitRequest{
		VideoID: key.ContentID, PartID: key.PartID, StartTime: 10, EndTime: 20, Category: model.CategoryHardAd,
	})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.PointsEarned)

	_, err = alice.Submit(ctx, model.SubmitRequest{
		VideoID: key.ContentID, PartID: key.PartID, StartTime: 20, EndTime: 10, Category: model.CategoryHardAd,
	})
	assert.ErrorIs(t, err, model.ErrInvalidInterval)

	conf, err := bob.Vote(ctx, resp.ID, model.DirectionUp)
	require.NoError(t, err)
	assert.InDelta(t, 0.3424, conf, 1e-3)

	_, err = bob.Vote(ctx, resp.ID+100, model.DirectionUp)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// A session on top of the real API produces the skip and reports it.
	session := playback.NewSession(bob, playback.DefaultOptions())
	defer session.Close()
	session.Track(key)
	select {
	case <-session.Loaded():
	case <-time.After(2 * time.Second):
		t.Fatal("active set never loaded")
	}

	d, ok := session.OnTimeSample(12)
	require.True(t, ok)
	assert.Equal(t, resp.ID, d.SegmentID)
	assert.Equal(t, 20.0, d.Target)

	require.NoError(t, bob.ReportSkip(ctx, d.SegmentID))
}

func TestSessionFallsBackWhenServerIsGone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client := apiclient.New("http://" + addr)
	session := playback.NewSession(client, playback.DefaultOptions())
	defer session.Close()

	session.Track(model.VideoKey{ContentID: "BV1xx411c7mD", PartID: "1"})
	select {
	case <-session.Loaded():
	case <-time.After(5 * time.Second):
		t.Fatal("active set never loaded")
	}
	assert.Empty(t, session.Active())
	assert.Equal(t, playback.StateMatching, session.State())
}
