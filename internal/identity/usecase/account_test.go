package usecase

import (
	"context"
	"net/http"
	"testing"

	"github.com/shandysiswandi/gostepup/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var ge *goerror.Error
	require.ErrorAs(t, err, &ge)
	return ge.StatusCode()
}

func TestUsecase_Signup(t *testing.T) {
	t.Parallel()

	t.Run("creates account and token", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)

		out, err := env.uc.Signup(context.Background(), SignupInput{Email: "  Ana@Example.com ", Password: "correct-horse"})

		require.NoError(t, err)
		assert.Equal(t, "token-1", out.AccessToken)
		assert.Equal(t, "ana@example.com", out.Email)
		assert.False(t, out.ChannelBound)
		stored := env.repo.get(t, out.AccountID)
		assert.Equal(t, "ana@example.com", stored.Email)
		assert.NotEqual(t, "correct-horse", stored.PasswordHash)
		assert.False(t, stored.Binding.Bound())
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.seed(t, 99, "ana@example.com", "correct-horse", "")

		_, err := env.uc.Signup(context.Background(), SignupInput{Email: "ANA@example.com", Password: "correct-horse"})

		assert.Equal(t, http.StatusConflict, statusOf(t, err))
	})

	t.Run("weak password", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)

		_, err := env.uc.Signup(context.Background(), SignupInput{Email: "ana@example.com", Password: "short"})

		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})
}

func TestUsecase_Login(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.seed(t, 5, "ana@example.com", "correct-horse", "chan-77")

		out, err := env.uc.Login(context.Background(), LoginInput{Email: "Ana@example.com", Password: "correct-horse"})

		require.NoError(t, err)
		assert.Equal(t, "token-5", out.AccessToken)
		assert.Equal(t, "ana@example.com", out.Email)
		assert.True(t, out.ChannelBound)
		require.NoError(t, env.goroutine.Wait())
		assert.Empty(t, env.messaging.published())
	})

	t.Run("unbound account reports no channel", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.seed(t, 6, "bo@example.com", "correct-horse", "")

		out, err := env.uc.Login(context.Background(), LoginInput{Email: "bo@example.com", Password: "correct-horse"})

		require.NoError(t, err)
		assert.False(t, out.ChannelBound)
	})

	t.Run("malformed email is an invalid credential", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)

		_, err := env.uc.Login(context.Background(), LoginInput{Email: "not-an-email", Password: "whatever1"})

		var ge *goerror.Error
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, http.StatusUnauthorized, ge.StatusCode())
		assert.Equal(t, "invalid email or password", ge.Msg())
		assert.Empty(t, ge.Fields())
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)

		_, err := env.uc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "whatever1"})

		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		require.NoError(t, env.goroutine.Wait())
		assert.Empty(t, env.messaging.published())
	})

	t.Run("wrong password on bound account alerts", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.seed(t, 5, "ana@example.com", "correct-horse", "chan-77")

		_, err := env.uc.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "wrong-horse"})

		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		require.NoError(t, env.goroutine.Wait())
		assert.Equal(t, []SecurityAlertEvent{{
			AccountID:  5,
			ChannelID:  "chan-77",
			Email:      "ana@example.com",
			OccurredAt: testStart,
		}}, env.messaging.published())
	})

	t.Run("wrong password on unbound account stays silent", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.seed(t, 5, "ana@example.com", "correct-horse", "")

		_, err := env.uc.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "wrong-horse"})

		assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		require.NoError(t, env.goroutine.Wait())
		assert.Empty(t, env.messaging.published())
	})

	t.Run("repository failure", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.repo.getErr = errBoom

		_, err := env.uc.Login(context.Background(), LoginInput{Email: "ana@example.com", Password: "correct-horse"})

		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})
}

func TestUsecase_OnAuthFailure(t *testing.T) {
	t.Parallel()

	t.Run("unknown account is a no-op", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)

		err := env.uc.OnAuthFailure(context.Background(), OnAuthFailureInput{AccountID: 404, OccurredAt: testStart})

		require.NoError(t, err)
		assert.Empty(t, env.messaging.published())
	})

	t.Run("publish failure is a server error", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)
		env.seed(t, 5, "ana@example.com", "correct-horse", "chan-77")
		env.messaging.err = errBoom

		err := env.uc.OnAuthFailure(context.Background(), OnAuthFailureInput{AccountID: 5, OccurredAt: testStart})

		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, nil)

		err := env.uc.OnAuthFailure(context.Background(), OnAuthFailureInput{})

		assert.Equal(t, http.StatusUnprocessableEntity, statusOf(t, err))
	})
}
