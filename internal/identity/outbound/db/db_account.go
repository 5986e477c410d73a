package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shandysiswandi/gostepup/internal/identity/entity"
	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
)

const accountColumns = `id, email, password_hash, channel_id, link_code_digest, link_code_issued_at,
	otp_digest, otp_expires_at, revision, created_at, updated_at`

func scanAccount(row pgx.Row) (*entity.Account, error) {
	var (
		acc                         entity.Account
		channelID, codeDigest, otpD *string
		codeIssuedAt, otpExpiresAt  *time.Time
	)

	if err := row.Scan(
		&acc.ID, &acc.Email, &acc.PasswordHash,
		&channelID, &codeDigest, &codeIssuedAt,
		&otpD, &otpExpiresAt,
		&acc.Revision, &acc.CreatedAt, &acc.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var code *entity.LinkCode
	if codeDigest != nil {
		code = &entity.LinkCode{Digest: *codeDigest, IssuedAt: lo.FromPtr(codeIssuedAt).UTC()}
	}

	var otp *entity.OTP
	if otpD != nil {
		otp = &entity.OTP{Digest: *otpD, ExpiresAt: lo.FromPtr(otpExpiresAt).UTC()}
	}

	b, err := entity.NewBinding(lo.FromPtr(channelID), code, otp)
	if err != nil {
		return nil, err
	}

	acc.Binding = b
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return &acc, nil
}

func (s *DB) CreateAccount(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAccount")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO identity_accounts (id, email, password_hash, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		acc.ID, acc.Email, acc.PasswordHash, acc.Revision, acc.CreatedAt, acc.UpdatedAt,
	)

	err = s.mapError(err)
	return err
}

func (s *DB) getAccount(ctx context.Context, name, where string, arg any) (acc *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, name)
	defer func() { s.endSpan(span, err) }()

	acc, err = scanAccount(s.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM identity_accounts WHERE `+where, arg))
	err = s.mapError(err)
	return acc, err
}

func (s *DB) GetAccountByID(ctx context.Context, id int64) (*entity.Account, error) {
	return s.getAccount(ctx, "GetAccountByID", `id = $1`, id)
}

func (s *DB) GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return s.getAccount(ctx, "GetAccountByEmail", `lower(email) = lower($1)`, email)
}

func (s *DB) GetAccountByLinkCode(ctx context.Context, digest string) (*entity.Account, error) {
	return s.getAccount(ctx, "GetAccountByLinkCode", `link_code_digest = $1`, digest)
}

// UpdateAccountBinding writes the binding columns when the stored revision is
// still acc.Revision, bumping it by one.
func (s *DB) UpdateAccountBinding(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateAccountBinding")
	defer func() { s.endSpan(span, err) }()

	var codeDigest *string
	var codeIssuedAt *time.Time
	if lc := acc.Binding.LinkCode(); lc != nil {
		codeDigest, codeIssuedAt = &lc.Digest, &lc.IssuedAt
	}

	var otpDigest *string
	var otpExpiresAt *time.Time
	if otp := acc.Binding.OTP(); otp != nil {
		otpDigest, otpExpiresAt = &otp.Digest, &otp.ExpiresAt
	}

	tag, err := s.conn.Exec(ctx, `
		UPDATE identity_accounts
		SET channel_id = $3,
			link_code_digest = $4,
			link_code_issued_at = $5,
			otp_digest = $6,
			otp_expires_at = $7,
			updated_at = $8,
			revision = revision + 1
		WHERE id = $1 AND revision = $2`,
		acc.ID, acc.Revision,
		lo.EmptyableToPtr(acc.Binding.ChannelID()),
		codeDigest, codeIssuedAt,
		otpDigest, otpExpiresAt,
		acc.UpdatedAt,
	)
	if err != nil {
		err = s.mapError(err)
		return err
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err = s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identity_accounts WHERE id = $1)`, acc.ID).Scan(&exists); err != nil {
		err = s.mapError(err)
		return err
	}
	if !exists {
		err = goerror.ErrNotFound
		return err
	}

	err = goerror.ErrStale
	return err
}
