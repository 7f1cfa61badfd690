package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no persisted document exists for an id.
var ErrNotFound = errors.New("store: document not found")

// Document is the persisted form of a collaborative document. Content and
// Version track the last checkpoint, not the live session state.
type Document struct {
	ID        string         `gorm:"primaryKey;size:64" json:"id"`
	Content   string         `gorm:"type:text" json:"content"`
	Version   int            `gorm:"not null;default:0" json:"version"`
	Attrs     datatypes.JSON `json:"attrs,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DocumentStore persists document checkpoints.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore wires a store over an open database handle.
func NewDocumentStore(db *gorm.DB) (*DocumentStore, error) {
	if db == nil {
		return nil, errors.New("store: nil database handle")
	}
	return &DocumentStore{db: db}, nil
}

// AutoMigrate creates or updates the documents table.
func (s *DocumentStore) AutoMigrate() error {
	return s.db.AutoMigrate(&Document{})
}

// Load fetches a persisted document by id.
func (s *DocumentStore) Load(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load document %s: %w", id, err)
	}
	return &doc, nil
}

// LoadContent returns just the checkpointed content for seeding a live
// session. A missing row is not an error: new documents start empty.
func (s *DocumentStore) LoadContent(ctx context.Context, id string) (string, error) {
	doc, err := s.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// Checkpoint upserts the persisted state of a document. A stale checkpoint
// never overwrites a newer one; version only moves forward.
func (s *DocumentStore) Checkpoint(ctx context.Context, id, content string, version int) error {
	doc := Document{ID: id, Content: content, Version: version}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"content":    content,
			"version":    version,
			"updated_at": time.Now(),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Lte{Column: clause.Column{Table: "documents", Name: "version"}, Value: version},
		}},
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("store: checkpoint document %s: %w", id, err)
	}
	return nil
}

// Delete removes a persisted document.
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Document{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("store: delete document %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
