package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/embedding"
	"github.com/your-org/faceid/internal/models"
)

// ErrEmptyDocument marks an exported user document without any embedding.
var ErrEmptyDocument = errors.New("document has no face embeddings")

// DecodeOptions controls DecodeDocument.
type DecodeOptions struct {
	// LegacyVersion tags documents that carry no embedding_version.
	// Empty means embedding.LegacyUnversioned.
	LegacyVersion string
	Now           time.Time
}

// document is a user record exported from the old document store. Two
// shapes exist: the flat one with top-level profile fields and a single
// face_encoding, and the nested one with profile and faces.
type document struct {
	UserID           string      `json:"user_id"`
	UUID             string      `json:"uuid"`
	Profile          *docProfile `json:"profile"`
	EmbeddingVersion string      `json:"embedding_version"`
	RegisteredAt     docTime     `json:"registered_at"`
	UpdatedAt        docTime     `json:"updated_at"`
	Faces            []docFace   `json:"faces"`

	docProfile
	ImagePath    string    `json:"image_path"`
	FaceEncoding []float32 `json:"face_encoding"`
}

type docProfile struct {
	Name       string `json:"name"`
	StudentID  string `json:"student_id"`
	Class      string `json:"class"`
	Department string `json:"department"`
	Room       string `json:"room"`
}

type docFace struct {
	ImagePath  string       `json:"image_path"`
	Embedding  []float32    `json:"embedding"`
	Confidence float32      `json:"confidence"`
	Landmarks  [][2]float64 `json:"landmarks"`
	AddedAt    docTime      `json:"added_at"`
}

// docTime accepts the timestamp encodings found in exports: ISO strings with
// or without zone, null, and extended JSON {"$date": ...}.
type docTime struct {
	time.Time
}

var docTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *docTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '{' {
		var ext struct {
			Date json.RawMessage `json:"$date"`
		}
		if err := json.Unmarshal(b, &ext); err != nil {
			return err
		}
		if len(ext.Date) == 0 {
			return nil
		}
		return t.UnmarshalJSON(ext.Date)
	}

	if b[0] != '"' {
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("parse timestamp %s: %w", b, err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range docTimeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q: unknown layout", s)
}

// DecodeDocument converts an exported user document into an Identity with
// faces in document order. Faces without an embedding are dropped.
func DecodeDocument(raw []byte, opts DecodeOptions) (*models.Identity, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	idText := doc.UserID
	if idText == "" {
		idText = doc.UUID
	}
	if idText == "" {
		return nil, fmt.Errorf("decode document: missing user_id")
	}
	id, err := uuid.Parse(idText)
	if err != nil {
		return nil, fmt.Errorf("decode document: user_id %q: %w", idText, err)
	}

	p := doc.docProfile
	if doc.Profile != nil {
		p = *doc.Profile
	}

	version := doc.EmbeddingVersion
	if version == "" {
		version = opts.LegacyVersion
	}
	if version == "" {
		version = embedding.LegacyUnversioned
	}

	identity := &models.Identity{
		ID: id,
		Profile: models.Profile{
			Name:       p.Name,
			StudentID:  p.StudentID,
			Department: p.Department,
			Class:      p.Class,
			Room:       p.Room,
		},
		EmbeddingVersion: version,
		RegisteredAt:     doc.RegisteredAt.Time,
		UpdatedAt:        doc.UpdatedAt.Time,
	}

	faces := doc.Faces
	if len(faces) == 0 && len(doc.FaceEncoding) > 0 {
		faces = []docFace{{ImagePath: doc.ImagePath, Embedding: doc.FaceEncoding, Confidence: 1}}
	}
	for _, f := range faces {
		if len(f.Embedding) == 0 {
			continue
		}
		identity.Faces = append(identity.Faces, models.EnrolledFace{
			ID:               uuid.New(),
			SourceRef:        f.ImagePath,
			Embedding:        f.Embedding,
			EmbeddingVersion: version,
			Confidence:       f.Confidence,
			Landmarks:        roundLandmarks(f.Landmarks),
			AddedAt:          f.AddedAt.Time,
		})
	}
	if len(identity.Faces) == 0 {
		return nil, fmt.Errorf("decode document %s: %w", id, ErrEmptyDocument)
	}
	identity.FaceCount = len(identity.Faces)

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	normalizeIdentity(identity, firstAdded(identity.Faces), now)
	for i := range identity.Faces {
		if identity.Faces[i].AddedAt.IsZero() {
			identity.Faces[i].AddedAt = identity.RegisteredAt
		}
	}
	return identity, nil
}

func roundLandmarks(pts [][2]float64) [][2]int {
	if len(pts) == 0 {
		return nil
	}
	out := make([][2]int, len(pts))
	for i, p := range pts {
		out[i] = [2]int{int(math.Round(p[0])), int(math.Round(p[1]))}
	}
	return out
}

// ReadDocuments calls fn for every document in r, which holds either a JSON
// array or one document per line.
func ReadDocuments(r io.Reader, fn func(raw json.RawMessage) error) error {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("read documents: %w", err)
		}
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("read documents: %w", err)
			}
			if err := fn(raw); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read documents: %w", err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
