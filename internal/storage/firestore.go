package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"thedump/internal/models"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreDocument is the shape of a status record in the documents
// collection. The Firestore document id is the document identifier.
type firestoreDocument struct {
	Filename      string    `firestore:"originalFilename"`
	ContentType   string    `firestore:"contentType,omitempty"`
	SizeBytes     int64     `firestore:"sizeBytes"`
	Checksum      string    `firestore:"fileHash,omitempty"`
	StorageURI    string    `firestore:"gcsUri"`
	Status        string    `firestore:"status"`
	ExtractedText string    `firestore:"extractedText,omitempty"`
	ErrorDetails  string    `firestore:"errorDetails,omitempty"`
	RetryOf       string    `firestore:"retryOf,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func (f firestoreDocument) toModel(id string) models.Document {
	return models.Document{
		DocumentID:    id,
		Filename:      f.Filename,
		ContentType:   f.ContentType,
		SizeBytes:     f.SizeBytes,
		Checksum:      f.Checksum,
		StorageURI:    f.StorageURI,
		Status:        models.Status(f.Status),
		ExtractedText: f.ExtractedText,
		ErrorMessage:  f.ErrorDetails,
		RetryOf:       f.RetryOf,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// FirestoreStore keeps status records in a Firestore collection and uses
// transactions for compare-and-set transitions.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = "documents"
	}
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) ref(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) Create(ctx context.Context, d models.Document) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	rec := firestoreDocument{
		Filename:    d.Filename,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Checksum:    d.Checksum,
		StorageURI:  d.StorageURI,
		Status:      string(d.Status),
		RetryOf:     d.RetryOf,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.CreatedAt,
	}
	if _, err := s.ref(d.DocumentID).Create(ctx, rec); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: document %s already exists", models.ErrConflict, d.DocumentID)
		}
		return fmt.Errorf("create firestore document: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, documentID string) (models.Document, error) {
	snap, err := s.ref(documentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.Document{}, fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get firestore document: %w", err)
	}
	var rec firestoreDocument
	if err := snap.DataTo(&rec); err != nil {
		return models.Document{}, fmt.Errorf("decode firestore document: %w", err)
	}
	return rec.toModel(snap.Ref.ID), nil
}

func (s *FirestoreStore) GetMany(ctx context.Context, documentIDs []string) (map[string]models.Document, error) {
	out := make(map[string]models.Document, len(documentIDs))
	if len(documentIDs) == 0 {
		return out, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(documentIDs))
	for _, id := range documentIDs {
		refs = append(refs, s.ref(id))
	}
	snaps, err := s.client.GetAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("get firestore documents: %w", err)
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var rec firestoreDocument
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode firestore document %s: %w", snap.Ref.ID, err)
		}
		out[snap.Ref.ID] = rec.toModel(snap.Ref.ID)
	}
	return out, nil
}

func (s *FirestoreStore) Transition(ctx context.Context, documentID string, from, to models.Status, upd models.Update) (models.Document, error) {
	if err := models.CheckTransition(from, to); err != nil {
		return models.Document{}, err
	}
	ref := s.ref(documentID)
	var result models.Document
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: document %s", models.ErrNotFound, documentID)
		}
		if err != nil {
			return err
		}
		var rec firestoreDocument
		if err := snap.DataTo(&rec); err != nil {
			return fmt.Errorf("decode firestore document: %w", err)
		}
		if models.Status(rec.Status) != from {
			return fmt.Errorf("%w: document %s is %s, expected %s", models.ErrConflict, documentID, rec.Status, from)
		}
		now := time.Now().UTC()
		updates := []firestore.Update{
			{Path: "status", Value: string(to)},
			{Path: "errorDetails", Value: upd.ErrorMessage},
			{Path: "updatedAt", Value: now},
		}
		if upd.ExtractedText != nil {
			updates = append(updates, firestore.Update{Path: "extractedText", Value: *upd.ExtractedText})
		}
		result = rec.toModel(documentID)
		applyUpdate(&result, to, upd, now)
		return tx.Update(ref, updates)
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrNotFound) {
			return models.Document{}, err
		}
		return models.Document{}, fmt.Errorf("firestore transition: %w", err)
	}
	return result, nil
}

// ListByStatus needs a composite index on (status, updatedAt).
func (s *FirestoreStore) ListByStatus(ctx context.Context, statuses []models.Status, updatedBefore time.Time, limit int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	it := s.client.Collection(s.collection).
		Where("status", "in", statusStrings(statuses)).
		Where("updatedAt", "<", updatedBefore.UTC()).
		OrderBy("updatedAt", firestore.Asc).
		Limit(limit).
		Documents(ctx)
	defer it.Stop()

	out := make([]models.Document, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query firestore documents: %w", err)
		}
		var rec firestoreDocument
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode firestore document %s: %w", snap.Ref.ID, err)
		}
		out = append(out, rec.toModel(snap.Ref.ID))
	}
	return out, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
