package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"engage-kb-platform/models"
)

// MongoStore is the canonical Store implementation backed by MongoDB.
type MongoStore struct {
	knowledgeBases *mongo.Collection
	documents      *mongo.Collection
	chunks         *mongo.Collection
	faqs           *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		knowledgeBases: db.Collection("knowledge_bases"),
		documents:      db.Collection("documents"),
		chunks:         db.Collection("document_chunks"),
		faqs:           db.Collection("faqs"),
	}
}

// Knowledge bases

func (s *MongoStore) CreateKnowledgeBase(ctx context.Context, kb *models.KnowledgeBase) error {
	_, err := s.knowledgeBases.InsertOne(ctx, kb)
	if err != nil {
		return fmt.Errorf("insert knowledge base: %w", err)
	}
	return nil
}

func (s *MongoStore) GetKnowledgeBase(ctx context.Context, id string) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	err := s.knowledgeBases.FindOne(ctx, bson.M{"_id": id}).Decode(&kb)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (s *MongoStore) ListKnowledgeBases(ctx context.Context, tenantID string) ([]models.KnowledgeBase, error) {
	return s.findKnowledgeBases(ctx, bson.M{"tenant_id": tenantID})
}

func (s *MongoStore) ListAllKnowledgeBases(ctx context.Context) ([]models.KnowledgeBase, error) {
	return s.findKnowledgeBases(ctx, bson.M{})
}

func (s *MongoStore) findKnowledgeBases(ctx context.Context, filter bson.M) ([]models.KnowledgeBase, error) {
	cursor, err := s.knowledgeBases.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	kbs := make([]models.KnowledgeBase, 0)
	if err := cursor.All(ctx, &kbs); err != nil {
		return nil, err
	}
	return kbs, nil
}

func (s *MongoStore) IncrementDocumentCount(ctx context.Context, kbID string, delta int) error {
	_, err := s.knowledgeBases.UpdateOne(ctx, bson.M{"_id": kbID}, bson.M{
		"$inc": bson.M{"document_count": delta},
		"$set": bson.M{"updated_at": time.Now()},
	})
	return err
}

func (s *MongoStore) SetDocumentCount(ctx context.Context, kbID string, count int) error {
	_, err := s.knowledgeBases.UpdateOne(ctx, bson.M{"_id": kbID}, bson.M{
		"$set": bson.M{"document_count": count, "updated_at": time.Now()},
	})
	return err
}

// Documents

func (s *MongoStore) InsertDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *MongoStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) ResetDocumentForReingest(ctx context.Context, id, content string) (*models.Document, error) {
	res := s.documents.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"revision": 1},
			"$set": bson.M{
				"content":       content,
				"status":        models.StatusProcessing,
				"chunk_count":   0,
				"error_message": "",
				"updated_at":    time.Now(),
			},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var doc models.Document
	if err := res.Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *MongoStore) MarkDocumentCompleted(ctx context.Context, id string, revision, chunkCount int) (bool, error) {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "revision": revision, "status": models.StatusProcessing},
		bson.M{"$set": bson.M{
			"status":        models.StatusCompleted,
			"chunk_count":   chunkCount,
			"error_message": "",
			"updated_at":    time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) MarkDocumentFailed(ctx context.Context, id string, revision int, errMsg string) (bool, error) {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "revision": revision, "status": models.StatusProcessing},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, id string) error {
	// Cascade to chunks first so a crash between the two deletes never
	// leaves chunks pointing at a live document.
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": id}); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CountDocuments(ctx context.Context, kbID string) (int, error) {
	n, err := s.documents.CountDocuments(ctx, bson.M{"kb_id": kbID})
	return int(n), err
}

func (s *MongoStore) ListStuckDocuments(ctx context.Context, olderThan time.Time) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{
		"status":     models.StatusProcessing,
		"updated_at": bson.M{"$lt": olderThan},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Chunks

func (s *MongoStore) InsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	_, err := s.chunks.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

func (s *MongoStore) DeleteChunksByAttempt(ctx context.Context, documentID, attemptID string) error {
	_, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID, "attempt_id": attemptID})
	return err
}

func (s *MongoStore) SearchChunks(ctx context.Context, kbID string, keywords []string, limit int) ([]models.DocumentChunk, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	or := make([]bson.M, 0, len(keywords))
	for _, kw := range keywords {
		or = append(or, bson.M{"content": primitive.Regex{
			Pattern: regexp.QuoteMeta(kw),
			Options: "i",
		}})
	}

	cursor, err := s.chunks.Find(ctx,
		bson.M{"kb_id": kbID, "$or": or},
		options.Find().SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.DocumentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *MongoStore) RecentChunks(ctx context.Context, kbID string, limit int) ([]models.DocumentChunk, error) {
	cursor, err := s.chunks.Find(ctx,
		bson.M{"kb_id": kbID},
		options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []models.DocumentChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// FAQs

func (s *MongoStore) InsertFAQ(ctx context.Context, faq *models.FAQ) error {
	_, err := s.faqs.InsertOne(ctx, faq)
	if err != nil {
		return fmt.Errorf("insert faq: %w", err)
	}
	return nil
}

func (s *MongoStore) GetFAQ(ctx context.Context, id string) (*models.FAQ, error) {
	var faq models.FAQ
	err := s.faqs.FindOne(ctx, bson.M{"_id": id}).Decode(&faq)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &faq, nil
}

func (s *MongoStore) UpdateFAQ(ctx context.Context, faq *models.FAQ) error {
	faq.UpdatedAt = time.Now()
	res, err := s.faqs.ReplaceOne(ctx, bson.M{"_id": faq.ID}, faq)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteFAQ(ctx context.Context, id string) error {
	res, err := s.faqs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListFAQs(ctx context.Context, kbID string) ([]models.FAQ, error) {
	return s.findFAQs(ctx, bson.M{"kb_id": kbID})
}

func (s *MongoStore) ListActiveFAQs(ctx context.Context, kbID string) ([]models.FAQ, error) {
	return s.findFAQs(ctx, bson.M{"kb_id": kbID, "active": true})
}

func (s *MongoStore) findFAQs(ctx context.Context, filter bson.M) ([]models.FAQ, error) {
	cursor, err := s.faqs.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	faqs := make([]models.FAQ, 0)
	if err := cursor.All(ctx, &faqs); err != nil {
		return nil, err
	}
	return faqs, nil
}
