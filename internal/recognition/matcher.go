package recognition

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/vision"
)

// Outcome is the terminal state of a recognition.
type Outcome string

const (
	OutcomeNoFaceDetected Outcome = "no_face_detected"
	OutcomeNotRecognized  Outcome = "not_recognized"
	OutcomeRecognized     Outcome = "recognized"
)

// MatchResult is the decision for one probe.
type MatchResult struct {
	Outcome Outcome
	// Identity and FaceID are set only when Outcome is OutcomeRecognized.
	Identity *models.Identity
	FaceID   uuid.UUID
	// Score is the best raw comparator value; Confidence is Score rounded to
	// four decimals. Both are 0 when nothing comparable was found.
	Score            float64
	Confidence       float64
	Threshold        float64
	Version          embedding.Version
	Probe            *vision.FaceObservation
	CandidatesScored int
}

// Matcher scores a probe against every stored embedding of the extractor's
// version and applies the decision threshold.
type Matcher struct {
	extractor  vision.Extractor
	candidates CandidateSource
	threshold  float64
}

// NewMatcher returns a Matcher. A nil threshold selects the default of the
// extractor's embedding version; any set value, zero included, is used as is.
func NewMatcher(extractor vision.Extractor, candidates CandidateSource, threshold *float64) *Matcher {
	t := extractor.Version().DefaultThreshold
	if threshold != nil {
		t = *threshold
	}
	return &Matcher{extractor: extractor, candidates: candidates, threshold: t}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

func (m *Matcher) Version() embedding.Version {
	return m.extractor.Version()
}

// Recognize extracts the most confident face of img and matches it.
// No face is a normal outcome, not an error. Extractor and store failures
// are returned as errors and never retried.
func (m *Matcher) Recognize(ctx context.Context, img image.Image, filter models.AttributeFilter) (*MatchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	faces, err := m.extractor.Extract(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extract probe: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	probe, ok := vision.SelectBest(faces)
	if !ok {
		observability.Recognitions.WithLabelValues(string(OutcomeNoFaceDetected)).Inc()
		return &MatchResult{
			Outcome:   OutcomeNoFaceDetected,
			Threshold: m.threshold,
			Version:   m.extractor.Version(),
		}, nil
	}

	res, err := m.MatchEmbedding(ctx, probe.Embedding, filter)
	if err != nil {
		return nil, err
	}
	res.Probe = &probe
	return res, nil
}

// MatchEmbedding runs candidate gathering, scoring and the decision for an
// already extracted probe embedding.
func (m *Matcher) MatchEmbedding(ctx context.Context, probe []float32, filter models.AttributeFilter) (*MatchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	version := m.extractor.Version()
	prepared := version.Prepare(probe)

	start := time.Now()
	candidates, err := m.candidates.FindCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: find candidates: %w", ErrStoreUnavailable, err)
	}

	var (
		best      *models.Identity
		bestFace  uuid.UUID
		bestScore float64
		found     bool
		scored    int
	)
	for i := range candidates {
		cand := &candidates[i]
		if !filter.Matches(cand.Profile) {
			continue
		}
		for j := range cand.Faces {
			face := &cand.Faces[j]
			tag := face.EmbeddingVersion
			if tag == "" {
				tag = cand.EmbeddingVersion
			}
			if !version.Compatible(tag, len(face.Embedding)) || len(face.Embedding) != len(prepared) {
				continue
			}

			score := version.Score(prepared, face.Embedding)
			if math.IsNaN(score) {
				continue
			}
			scored++
			if !found || version.Better(score, bestScore) {
				best, bestFace, bestScore, found = cand, face.ID, score, true
			}
		}
	}
	observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	observability.CandidatesScored.Observe(float64(scored))

	res := &MatchResult{
		Outcome:          OutcomeNotRecognized,
		Threshold:        m.threshold,
		Version:          version,
		CandidatesScored: scored,
	}
	if found {
		res.Score = bestScore
		res.Confidence = roundConfidence(bestScore)
		if version.Accepts(bestScore, m.threshold) {
			res.Outcome = OutcomeRecognized
			res.Identity = best
			res.FaceID = bestFace
		}
		observability.MatchScore.WithLabelValues(string(res.Outcome)).Observe(bestScore)
	}
	observability.Recognitions.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

func roundConfidence(score float64) float64 {
	return math.Round(score*1e4) / 1e4
}

// Event records the result as a recognition event.
func (r *MatchResult) Event(probeID uuid.UUID, room, source string) models.RecognitionEvent {
	ev := models.RecognitionEvent{
		ID:               uuid.New(),
		ProbeID:          probeID,
		Room:             room,
		Outcome:          string(r.Outcome),
		Confidence:       r.Confidence,
		EmbeddingVersion: r.Version.Tag,
		Source:           source,
		CreatedAt:        time.Now().UTC(),
	}
	if r.Identity != nil {
		id := r.Identity.ID
		ev.IdentityID = &id
		ev.Name = r.Identity.Profile.Name
	}
	return ev
}
