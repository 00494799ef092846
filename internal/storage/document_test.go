package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/your-org/faceid/internal/embedding"
)

var decodeNow = time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

func TestDecodeDocumentFlat(t *testing.T) {
	raw := `{
		"uuid": "2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10",
		"name": "Lan",
		"student_id": "SV001",
		"class": "K65",
		"department": "CS",
		"room": "A2",
		"image_path": "uploads/lan.jpg",
		"registered_at": null,
		"updated_at": null,
		"face_encoding": [0.1, 0.2, 0.3]
	}`

	id, err := DecodeDocument([]byte(raw), DecodeOptions{Now: decodeNow})
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if id.ID.String() != "2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10" {
		t.Errorf("ID = %s", id.ID)
	}
	if id.Profile.Name != "Lan" || id.Profile.StudentID != "SV001" || id.Profile.Room != "A2" || id.Profile.Class != "K65" {
		t.Errorf("Profile = %+v", id.Profile)
	}
	if id.EmbeddingVersion != embedding.LegacyUnversioned {
		t.Errorf("EmbeddingVersion = %q, want legacy", id.EmbeddingVersion)
	}
	if len(id.Faces) != 1 || id.Faces[0].SourceRef != "uploads/lan.jpg" || len(id.Faces[0].Embedding) != 3 {
		t.Fatalf("Faces = %+v", id.Faces)
	}
	if !id.RegisteredAt.Equal(decodeNow) || !id.UpdatedAt.Equal(decodeNow) {
		t.Errorf("timestamps = %v / %v, want now", id.RegisteredAt, id.UpdatedAt)
	}
	if !id.Faces[0].AddedAt.Equal(decodeNow) {
		t.Errorf("AddedAt = %v, want registration time", id.Faces[0].AddedAt)
	}
}

func TestDecodeDocumentLegacyVersionOption(t *testing.T) {
	raw := `{"uuid": "2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10", "name": "Lan", "face_encoding": [1, 0]}`

	id, err := DecodeDocument([]byte(raw), DecodeOptions{LegacyVersion: embedding.DlibResNet, Now: decodeNow})
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if id.EmbeddingVersion != embedding.DlibResNet || id.Faces[0].EmbeddingVersion != embedding.DlibResNet {
		t.Errorf("versions = %q / %q, want dlib", id.EmbeddingVersion, id.Faces[0].EmbeddingVersion)
	}
}

func TestDecodeDocumentNested(t *testing.T) {
	raw := `{
		"user_id": "7f0c6a2e-5d8b-4d8e-9c44-1d2a3b4c5d6e",
		"profile": {"name": "Minh", "student_id": "SV002", "class": null, "department": "EE", "room": "B1"},
		"embedding_version": "insightface-buffalo_l-v1",
		"faces": [
			{"image_path": "uploads/m1.jpg", "embedding": [0.5, 0.5], "confidence": 0.91,
			 "landmarks": [[10.4, 20.6], [30, 40]], "added_at": "2024-03-01T09:30:00.123456"},
			{"image_path": "uploads/m2.jpg", "embedding": null, "confidence": 0.8},
			{"image_path": "uploads/m3.jpg", "embedding": [0.1, 0.9], "confidence": 0.85,
			 "added_at": {"$date": "2024-03-02T10:00:00Z"}}
		]
	}`

	id, err := DecodeDocument([]byte(raw), DecodeOptions{Now: decodeNow})
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	if id.Profile.Name != "Minh" || id.Profile.Department != "EE" || id.Profile.Class != "" {
		t.Errorf("Profile = %+v", id.Profile)
	}
	if id.EmbeddingVersion != embedding.InsightFaceBuffaloL {
		t.Errorf("EmbeddingVersion = %q", id.EmbeddingVersion)
	}
	if len(id.Faces) != 2 {
		t.Fatalf("faces = %d, want 2 (embedding-less face dropped)", len(id.Faces))
	}
	if id.Faces[0].SourceRef != "uploads/m1.jpg" || id.Faces[1].SourceRef != "uploads/m3.jpg" {
		t.Errorf("refs = %v", id.SourceRefs())
	}
	if got := id.Faces[0].Landmarks; len(got) != 2 || got[0] != [2]int{10, 21} {
		t.Errorf("Landmarks = %v", got)
	}

	firstAdded := time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC)
	if !id.RegisteredAt.Equal(firstAdded) {
		t.Errorf("RegisteredAt = %v, want first face %v", id.RegisteredAt, firstAdded)
	}
	if !id.UpdatedAt.Equal(firstAdded) {
		t.Errorf("UpdatedAt = %v, want %v", id.UpdatedAt, firstAdded)
	}
	if !id.Faces[1].AddedAt.Equal(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("face 1 AddedAt = %v", id.Faces[1].AddedAt)
	}
}

func TestDecodeDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"malformed", `{"uuid":`, "decode document"},
		{"missing id", `{"name": "x", "face_encoding": [1]}`, "missing user_id"},
		{"bad id", `{"uuid": "nope", "face_encoding": [1]}`, "user_id"},
		{"bad timestamp", `{"uuid": "2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10", "registered_at": "yesterday", "face_encoding": [1]}`, "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.raw), DecodeOptions{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}

	_, err := DecodeDocument([]byte(`{"uuid": "2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10", "name": "x"}`), DecodeOptions{})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestReadDocuments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"array", `[{"a": 1}, {"a": 2}, {"a": 3}]`, 3},
		{"lines", "{\"a\": 1}\n{\"a\": 2}\n", 2},
		{"leading space array", "\n  [ {\"a\": 1} ]", 1},
		{"empty", "", 0},
		{"empty array", "[]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 0
			err := ReadDocuments(strings.NewReader(tt.in), func(raw json.RawMessage) error {
				n++
				return nil
			})
			if err != nil {
				t.Fatalf("ReadDocuments: %v", err)
			}
			if n != tt.want {
				t.Errorf("documents = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestReadDocumentsStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	n := 0
	err := ReadDocuments(strings.NewReader(`[{}, {}, {}]`), func(json.RawMessage) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Errorf("err = %v after %d documents, want stop after 1", err, n)
	}
}
