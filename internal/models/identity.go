package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidProfile   = errors.New("invalid profile")
	ErrIdentityNotFound = errors.New("identity not found")
)

// Profile is the descriptive part of an identity. Matching never reads it
// except through AttributeFilter.
type Profile struct {
	Name       string            `json:"name"`
	StudentID  string            `json:"student_id"`
	Department string            `json:"department,omitempty"`
	Class      string            `json:"class,omitempty"`
	Room       string            `json:"room,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Validate checks the fields enrollment requires.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: missing required field: name", ErrInvalidProfile)
	}
	if strings.TrimSpace(p.StudentID) == "" {
		return fmt.Errorf("%w: missing required field: student_id", ErrInvalidProfile)
	}
	return nil
}

// Attribute returns the value of a filterable profile field.
func (p Profile) Attribute(key string) (string, bool) {
	switch key {
	case "name":
		return p.Name, true
	case "student_id":
		return p.StudentID, true
	case "department":
		return p.Department, true
	case "class":
		return p.Class, true
	case "room":
		return p.Room, true
	}
	return "", false
}

// FilterableAttributes are the profile keys AttributeFilter accepts.
var FilterableAttributes = []string{"name", "student_id", "department", "class", "room"}

// AttributeFilter restricts candidates to profiles whose Key equals Value.
// The zero value matches everything.
type AttributeFilter struct {
	Key   string
	Value string
}

func (f AttributeFilter) IsZero() bool {
	return f.Key == ""
}

func (f AttributeFilter) Validate() error {
	if f.IsZero() {
		return nil
	}
	if _, ok := (Profile{}).Attribute(f.Key); !ok {
		return fmt.Errorf("unsupported filter attribute %q", f.Key)
	}
	return nil
}

func (f AttributeFilter) Matches(p Profile) bool {
	if f.IsZero() {
		return true
	}
	v, ok := p.Attribute(f.Key)
	return ok && v == f.Value
}

// EnrolledFace is one stored embedding of an identity.
type EnrolledFace struct {
	ID               uuid.UUID `json:"id"`
	SourceRef        string    `json:"source_ref"`
	Embedding        []float32 `json:"-"`
	EmbeddingVersion string    `json:"embedding_version"`
	Confidence       float32   `json:"confidence"`
	Landmarks        [][2]int  `json:"landmarks,omitempty"`
	AddedAt          time.Time `json:"added_at"`
}

// Identity is one enrolled person. Faces is never empty once persisted.
type Identity struct {
	ID               uuid.UUID      `json:"id"`
	Profile          Profile        `json:"profile"`
	Faces            []EnrolledFace `json:"faces,omitempty"`
	FaceCount        int            `json:"face_count"`
	EmbeddingVersion string         `json:"embedding_version"`
	RegisteredAt     time.Time      `json:"registered_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// SourceRefs returns the object references of all faces, skipping empty ones.
func (i *Identity) SourceRefs() []string {
	refs := make([]string, 0, len(i.Faces))
	for _, f := range i.Faces {
		if f.SourceRef != "" {
			refs = append(refs, f.SourceRef)
		}
	}
	return refs
}
