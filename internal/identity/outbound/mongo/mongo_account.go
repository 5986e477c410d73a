package mongo

import (
	"context"
	"time"

	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"go.mongodb.org/mongo-driver/bson"
)

type linkCodeDocument struct {
	Digest   string    `bson:"digest"`
	IssuedAt time.Time `bson:"issued_at"`
}

type otpDocument struct {
	Digest    string    `bson:"digest"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type accountDocument struct {
	ID           int64             `bson:"_id"`
	Email        string            `bson:"email"`
	PasswordHash string            `bson:"password_hash"`
	ChannelID    string            `bson:"channel_id,omitempty"`
	LinkCode     *linkCodeDocument `bson:"link_code,omitempty"`
	OTP          *otpDocument      `bson:"otp,omitempty"`
	Revision     int64             `bson:"revision"`
	CreatedAt    time.Time         `bson:"created_at"`
	UpdatedAt    time.Time         `bson:"updated_at"`
}

func toDocument(acc entity.Account) accountDocument {
	doc := accountDocument{
		ID:           acc.ID,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		ChannelID:    acc.Binding.ChannelID(),
		Revision:     acc.Revision,
		CreatedAt:    acc.CreatedAt,
		UpdatedAt:    acc.UpdatedAt,
	}
	if lc := acc.Binding.LinkCode(); lc != nil {
		doc.LinkCode = &linkCodeDocument{Digest: lc.Digest, IssuedAt: lc.IssuedAt}
	}
	if otp := acc.Binding.OTP(); otp != nil {
		doc.OTP = &otpDocument{Digest: otp.Digest, ExpiresAt: otp.ExpiresAt}
	}
	return doc
}

func (d accountDocument) toEntity() (*entity.Account, error) {
	var code *entity.LinkCode
	if d.LinkCode != nil {
		code = &entity.LinkCode{Digest: d.LinkCode.Digest, IssuedAt: d.LinkCode.IssuedAt.UTC()}
	}

	var otp *entity.OTP
	if d.OTP != nil {
		otp = &entity.OTP{Digest: d.OTP.Digest, ExpiresAt: d.OTP.ExpiresAt.UTC()}
	}

	b, err := entity.NewBinding(d.ChannelID, code, otp)
	if err != nil {
		return nil, err
	}

	return &entity.Account{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Revision:     d.Revision,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		Binding:      b,
	}, nil
}

func (s *DB) CreateAccount(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAccount")
	defer func() { s.endSpan(span, err) }()

	_, err = s.accounts.InsertOne(ctx, toDocument(acc))
	err = s.mapError(err)
	return err
}

func (s *DB) getAccount(ctx context.Context, name string, filter bson.M) (acc *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, name)
	defer func() { s.endSpan(span, err) }()

	var doc accountDocument
	if err = s.accounts.FindOne(ctx, filter).Decode(&doc); err != nil {
		err = s.mapError(err)
		return nil, err
	}

	acc, err = doc.toEntity()
	return acc, err
}

func (s *DB) GetAccountByID(ctx context.Context, id int64) (*entity.Account, error) {
	return s.getAccount(ctx, "GetAccountByID", bson.M{"_id": id})
}

// GetAccountByEmail expects the normalized email; accounts are stored with it.
func (s *DB) GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return s.getAccount(ctx, "GetAccountByEmail", bson.M{"email": email})
}

func (s *DB) GetAccountByLinkCode(ctx context.Context, digest string) (*entity.Account, error) {
	return s.getAccount(ctx, "GetAccountByLinkCode", bson.M{"link_code.digest": digest})
}

// UpdateAccountBinding replaces the document when its revision is still
// acc.Revision. The stored revision becomes acc.Revision+1.
func (s *DB) UpdateAccountBinding(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateAccountBinding")
	defer func() { s.endSpan(span, err) }()

	doc := toDocument(acc)
	doc.Revision = acc.Revision + 1

	res, err := s.accounts.ReplaceOne(ctx, bson.M{"_id": acc.ID, "revision": acc.Revision}, doc)
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	n, err := s.accounts.CountDocuments(ctx, bson.M{"_id": acc.ID})
	if err != nil {
		err = s.mapError(err)
		return err
	}
	if n == 0 {
		err = goerror.ErrNotFound
		return err
	}

	err = goerror.ErrStale
	return err
}
