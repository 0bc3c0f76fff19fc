package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
	"mailparser_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Email Archive
// =============================================================================

const (
	collectionEmails = "emails"

	// Raw messages larger than this are stored gzip-compressed.
	compressionThreshold = 1024
)

// EmailArchive implements out.EmailArchive using MongoDB.
type EmailArchive struct {
	collection *mongo.Collection
}

func NewEmailArchive(db *mongo.Database) *EmailArchive {
	return &EmailArchive{collection: db.Collection(collectionEmails)}
}

// EnsureIndexes creates the lookup indexes of the collection.
func (a *EmailArchive) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "message_id", Value: 1}}},
		{Keys: bson.D{{Key: "sender_email", Value: 1}}},
		{Keys: bson.D{{Key: "intent", Value: 1}, {Key: "processed_at", Value: -1}}},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// emailDocument keeps the full result as JSON so the stored shape matches
// the API response byte for byte.
type emailDocument struct {
	ID          string    `bson:"_id"`
	MessageID   string    `bson:"message_id,omitempty"`
	Source      string    `bson:"source,omitempty"`
	SourceID    string    `bson:"source_id,omitempty"`
	From        string    `bson:"from"`
	Subject     string    `bson:"subject"`
	SenderEmail string    `bson:"sender_email,omitempty"`
	Intent      string    `bson:"intent,omitempty"`
	Result      []byte    `bson:"result"`
	Raw         []byte    `bson:"raw,omitempty"`
	Compressed  bool      `bson:"raw_compressed"`
	RawSize     int       `bson:"raw_size"`
	ProcessedAt time.Time `bson:"processed_at"`
}

func (a *EmailArchive) Save(ctx context.Context, result *domain.ProcessedEmail, raw []byte) error {
	doc, err := toDocument(result, raw)
	if err != nil {
		return err
	}

	_, err = a.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save email: %w", err)
	}
	return nil
}

func (a *EmailArchive) Get(ctx context.Context, id uuid.UUID) (*domain.ProcessedEmail, error) {
	var doc emailDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("email")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	var result domain.ProcessedEmail
	if err := json.Unmarshal(doc.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &result, nil
}

// Raw returns the original message of a stored result.
func (a *EmailArchive) Raw(ctx context.Context, id uuid.UUID) ([]byte, error) {
	var doc emailDocument
	opts := options.FindOne().SetProjection(bson.M{"raw": 1, "raw_compressed": 1})
	err := a.collection.FindOne(ctx, bson.M{"_id": id.String()}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("email")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw email: %w", err)
	}
	if !doc.Compressed {
		return doc.Raw, nil
	}
	return decompress(doc.Raw)
}

func (a *EmailArchive) ExistsByMessageID(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	n, err := a.collection.CountDocuments(ctx, bson.M{"message_id": messageID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check message id: %w", err)
	}
	return n > 0, nil
}

func toDocument(result *domain.ProcessedEmail, raw []byte) (*emailDocument, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	doc := &emailDocument{
		ID:          result.ID.String(),
		MessageID:   result.Meta.MessageID,
		Source:      string(result.Source),
		SourceID:    result.SourceID,
		From:        result.Meta.From,
		Subject:     result.Meta.Subject,
		Result:      data,
		RawSize:     len(raw),
		ProcessedAt: result.ProcessedAt,
	}
	if result.Extraction != nil {
		doc.SenderEmail = result.Extraction.Data.PrimaryEmail()
	}
	if result.Intention != nil {
		doc.Intent = string(result.Intention.Intent)
	}

	doc.Raw, doc.Compressed, err = maybeCompress(raw)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func maybeCompress(raw []byte) ([]byte, bool, error) {
	if len(raw) <= compressionThreshold {
		return raw, false, nil
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, false, fmt.Errorf("failed to compress raw email: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("failed to compress raw email: %w", err)
	}
	return buf.Bytes(), true, nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed email: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

var _ out.EmailArchive = (*EmailArchive)(nil)
