package mongo

import (
	"context"
	"errors"

	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/shandysiswandi/gostepup/internal/pkg/instrument"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const accountsCollection = "identity_accounts"

// DB stores accounts as documents, one per account keyed by id.
type DB struct {
	accounts *mongo.Collection
	ins      instrument.Instrumentation
}

func NewDB(db *mongo.Database, ins instrument.Instrumentation) *DB {
	return &DB{accounts: db.Collection(accountsCollection), ins: ins}
}

// EnsureIndexes creates the unique email index and the unique index on
// pending link code digests.
func (s *DB) EnsureIndexes(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_uidx").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "link_code.digest", Value: 1}},
			Options: options.Index().
				SetName("link_code_uidx").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"link_code.digest": bson.M{"$exists": true}}),
		},
	})
	return err
}

func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return goerror.ErrNotFound
	}

	if mongo.IsDuplicateKeyError(err) {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("identity.outbound.mongo").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil &&
		!errors.Is(err, goerror.ErrNotFound) &&
		!errors.Is(err, goerror.ErrConflict) &&
		!errors.Is(err, goerror.ErrStale) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
