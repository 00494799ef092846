package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
	"github.com/your-org/faceid/internal/vision"
	"github.com/your-org/faceid/pkg/dto"
)

type RecognizeHandler struct {
	matcher     Recognizer
	extractor   vision.Extractor
	searcher    Searcher
	objects     ObjectStore
	publisher   Publisher
	searchLimit int
}

// NewRecognizeHandler builds the recognition endpoints. objects and
// publisher may be nil; asynchronous probes are then unavailable and events
// are not published.
func NewRecognizeHandler(matcher Recognizer, extractor vision.Extractor, searcher Searcher, objects ObjectStore, publisher Publisher, searchLimit int) *RecognizeHandler {
	return &RecognizeHandler{
		matcher:     matcher,
		extractor:   extractor,
		searcher:    searcher,
		objects:     objects,
		publisher:   publisher,
		searchLimit: searchLimit,
	}
}

func roomFilter(room string) models.AttributeFilter {
	if room = strings.TrimSpace(room); room == "" {
		return models.AttributeFilter{}
	}
	return models.AttributeFilter{Key: "room", Value: room}
}

// Recognize matches the most confident face of the uploaded image against
// enrolled identities, optionally limited to one room.
func (h *RecognizeHandler) Recognize(c *gin.Context) {
	upload, err := probeImage(c)
	if err != nil {
		if errors.Is(err, errNoImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
			return
		}
		abortWithError(c, err)
		return
	}
	img, err := vision.DecodeImage(upload.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded image"})
		return
	}

	room := strings.TrimSpace(c.PostForm("room"))
	res, err := h.matcher.Recognize(c.Request.Context(), img, roomFilter(room))
	if err != nil {
		slog.Error("recognize", "error", err)
		c.JSON(statusFor(err), gin.H{"error": "Error processing face: " + err.Error()})
		return
	}

	h.publish(c.Request.Context(), res.Event(uuid.New(), room, models.SourceAPI))

	switch res.Outcome {
	case recognition.OutcomeNoFaceDetected:
		c.JSON(http.StatusBadRequest, gin.H{"error": "No face detected in the image", "detected": false})
	case recognition.OutcomeRecognized:
		user := userResponse(res.Identity, false)
		c.JSON(http.StatusOK, dto.RecognizeResponse{
			Recognized:  true,
			Confidence:  res.Confidence,
			Metric:      string(res.Version.Metric),
			Threshold:   res.Threshold,
			User:        &user,
			BoundingBox: probeBox(res),
		})
	default:
		c.JSON(http.StatusNotFound, dto.RecognizeResponse{
			Recognized:  false,
			Confidence:  res.Confidence,
			Metric:      string(res.Version.Metric),
			Threshold:   res.Threshold,
			Message:     "Face detected but no matching user found (threshold not met).",
			BoundingBox: probeBox(res),
		})
	}
}

func probeBox(res *recognition.MatchResult) *[4]int {
	if res.Probe == nil {
		return nil
	}
	box := res.Probe.BoundingBox
	return &box
}

// publish emits the event for the feed; failures only cost the event.
func (h *RecognizeHandler) publish(ctx context.Context, ev models.RecognitionEvent) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishEvent(ctx, ev); err != nil {
		slog.Warn("publish recognition event", "event", ev.ID, "error", err)
	}
}

// Search lists the closest stored faces to the probe without applying the
// decision threshold.
func (h *RecognizeHandler) Search(c *gin.Context) {
	upload, err := probeImage(c)
	if err != nil {
		if errors.Is(err, errNoImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
			return
		}
		abortWithError(c, err)
		return
	}
	img, err := vision.DecodeImage(upload.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded image"})
		return
	}

	limit := h.searchLimit
	if s := c.PostForm("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}

	faces, err := h.extractor.Extract(c.Request.Context(), img)
	if err != nil {
		abortWithError(c, err)
		return
	}
	probe, ok := vision.SelectBest(faces)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No face detected in the image", "detected": false})
		return
	}

	version := h.extractor.Version()
	hits, err := h.searcher.SearchNearest(c.Request.Context(), version, probe.Embedding, roomFilter(c.PostForm("room")), limit)
	if err != nil {
		abortWithStoreError(c, err)
		return
	}

	results := make([]dto.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, dto.SearchResult{
			UserID:    hit.IdentityID,
			FaceID:    hit.FaceID,
			Name:      hit.Profile.Name,
			StudentID: hit.Profile.StudentID,
			Score:     hit.Score,
		})
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Results: results, Total: len(results), Metric: string(version.Metric)})
}

// SubmitProbe stores the image and queues it for a worker. The decision
// arrives later as an event.
func (h *RecognizeHandler) SubmitProbe(c *gin.Context) {
	if h.objects == nil || h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "asynchronous recognition not configured"})
		return
	}

	upload, err := probeImage(c)
	if err != nil {
		if errors.Is(err, errNoImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
			return
		}
		abortWithError(c, err)
		return
	}
	if _, err := vision.DecodeImage(upload.Data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded image"})
		return
	}

	task := models.ProbeTask{
		ProbeID:     uuid.New(),
		Room:        strings.TrimSpace(c.PostForm("room")),
		SubmittedAt: time.Now().UTC(),
	}
	task.ImageRef = "probes/" + task.ProbeID.String()

	contentType := upload.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(upload.Data)
	}
	if err := h.objects.PutObject(c.Request.Context(), task.ImageRef, upload.Data, contentType); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store probe image failed"})
		return
	}
	if err := h.publisher.PublishProbe(c.Request.Context(), task); err != nil {
		if _, rmErr := h.objects.RemoveObjects(c.Request.Context(), []string{task.ImageRef}); rmErr != nil {
			slog.Warn("remove unqueued probe image", "key", task.ImageRef, "error", rmErr)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue probe failed"})
		return
	}

	c.JSON(http.StatusAccepted, dto.ProbeResponse{ProbeID: task.ProbeID, Status: "queued"})
}
