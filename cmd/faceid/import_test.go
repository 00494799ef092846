package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
)

type memStore struct {
	identities map[uuid.UUID]*models.Identity
	createErr  error
}

func (m *memStore) GetIdentity(_ context.Context, id uuid.UUID) (*models.Identity, error) {
	return m.identities[id], nil
}

func (m *memStore) CreateIdentity(_ context.Context, identity *models.Identity) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.identities[identity.ID] = identity
	return nil
}

const importInput = `
{"uuid": "2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10", "name": "Lan", "student_id": "SV001", "face_encoding": [0.1, 0.2]}
{"uuid": "7f0c6a2e-5d8b-4d8e-9c44-1d2a3b4c5d6e", "name": "Minh", "student_id": "SV002", "face_encoding": [0.3, 0.4]}
{"uuid": "not-a-uuid", "name": "Bad"}
{"uuid": "0d4f6c1a-9b3e-4f52-8a61-2c7e9d0b1a34", "name": "Empty", "face_encoding": []}
`

func TestImportDocuments(t *testing.T) {
	existing := uuid.MustParse("7f0c6a2e-5d8b-4d8e-9c44-1d2a3b4c5d6e")
	store := &memStore{identities: map[uuid.UUID]*models.Identity{existing: {ID: existing}}}

	stats, err := importDocuments(context.Background(), strings.NewReader(importInput), store, storage.DecodeOptions{}, false)
	if err != nil {
		t.Fatalf("importDocuments: %v", err)
	}
	if stats.imported != 1 || stats.existing != 1 || stats.invalid != 2 {
		t.Errorf("stats = %+v, want 1 imported, 1 existing, 2 invalid", stats)
	}
	lan := store.identities[uuid.MustParse("2b1b0f6e-3c64-4a36-9a55-8f2f0c9e2f10")]
	if lan == nil || lan.Profile.Name != "Lan" || len(lan.Faces) != 1 {
		t.Errorf("imported identity = %+v", lan)
	}
	if store.identities[existing].Profile.Name != "" {
		t.Error("existing identity was overwritten")
	}
}

func TestImportDocumentsDryRun(t *testing.T) {
	store := &memStore{identities: map[uuid.UUID]*models.Identity{}}

	stats, err := importDocuments(context.Background(), strings.NewReader(importInput), store, storage.DecodeOptions{}, true)
	if err != nil {
		t.Fatalf("importDocuments: %v", err)
	}
	if stats.imported != 2 {
		t.Errorf("imported = %d, want 2", stats.imported)
	}
	if len(store.identities) != 0 {
		t.Errorf("dry run stored %d identities", len(store.identities))
	}
}

func TestImportDocumentsStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	store := &memStore{identities: map[uuid.UUID]*models.Identity{}, createErr: boom}

	_, err := importDocuments(context.Background(), strings.NewReader(importInput), store, storage.DecodeOptions{}, false)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want store failure", err)
	}
}
