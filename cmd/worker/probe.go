package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/internal/vision"
)

type objectGetter interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

type eventPublisher interface {
	PublishEvent(ctx context.Context, ev models.RecognitionEvent) error
}

type recognizer interface {
	Recognize(ctx context.Context, img image.Image, filter models.AttributeFilter) (*recognition.MatchResult, error)
}

// processProbe recognizes one queued probe and publishes the decision.
// A probe image that cannot be decoded produces a no_face_detected event and
// a failed recognition produces an error event; neither is retried. Errors
// are returned only when no event could be published, so the message is
// redelivered.
func processProbe(ctx context.Context, task models.ProbeTask, objects objectGetter, matcher recognizer, events eventPublisher) error {
	data, err := objects.GetObject(ctx, task.ImageRef)
	if err != nil {
		return fmt.Errorf("fetch probe %s: %w", task.ProbeID, err)
	}

	var filter models.AttributeFilter
	if task.Room != "" {
		filter = models.AttributeFilter{Key: "room", Value: task.Room}
	}

	var res *recognition.MatchResult
	img, err := vision.DecodeImage(data)
	switch {
	case errors.Is(err, vision.ErrUndecodable):
		slog.Warn("undecodable probe image", "probe", task.ProbeID, "error", err)
		res = &recognition.MatchResult{Outcome: recognition.OutcomeNoFaceDetected}
	case err != nil:
		return err
	default:
		res, err = matcher.Recognize(ctx, img, filter)
		if err != nil {
			return publishFailure(ctx, task, err, events)
		}
	}

	ev := res.Event(task.ProbeID, task.Room, models.SourceWorker)
	if err := events.PublishEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish event for probe %s: %w", task.ProbeID, err)
	}
	slog.Debug("probe processed", "probe", task.ProbeID, "outcome", ev.Outcome, "confidence", ev.Confidence)
	return nil
}

// publishFailure reports a recognition that failed on an extractor or store
// fault to whoever holds the probe id.
func publishFailure(ctx context.Context, task models.ProbeTask, cause error, events eventPublisher) error {
	observability.Recognitions.WithLabelValues(models.OutcomeError).Inc()
	slog.Error("recognize probe", "probe", task.ProbeID, "error", cause)

	ev := models.RecognitionEvent{
		ID:        uuid.New(),
		ProbeID:   task.ProbeID,
		Room:      task.Room,
		Outcome:   models.OutcomeError,
		Source:    models.SourceWorker,
		Error:     cause.Error(),
		CreatedAt: time.Now().UTC(),
	}
	if err := events.PublishEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish failure for probe %s: %w", task.ProbeID, errors.Join(cause, err))
	}
	return nil
}
