// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techiekraft/identity/internal/auth"
)

func testSession(t *testing.T) *auth.Session {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &auth.Session{
		ID:        ulid.Make(),
		TokenHash: "a1b2c3d4e5f6",
		Identity: auth.Identity{
			ID:        7,
			Username:  "jsmith",
			Email:     "jsmith@example.com",
			Role:      auth.RoleTeacher,
			FirstName: "Jordan",
			LastName:  "Smith",
		},
		ExpiresAt:  now.Add(time.Hour),
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

func sessionRows(t *testing.T, s *auth.Session) *pgxmock.Rows {
	t.Helper()
	payload, err := json.Marshal(s.Identity)
	require.NoError(t, err)
	return pgxmock.NewRows([]string{
		"id", "token_hash", "identity", "expires_at", "created_at", "last_seen_at",
	}).AddRow(s.ID.String(), s.TokenHash, payload, s.ExpiresAt, s.CreatedAt, s.LastSeenAt)
}

func TestSessionRepository_EnsureSchema(t *testing.T) {
	t.Run("creates table", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS web_sessions`).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.EnsureSchema(context.Background()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS web_sessions`).
			WillReturnError(errors.New("permission denied"))

		repo := NewSessionRepository(mock)
		err = repo.EnsureSchema(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})
}

func TestSessionRepository_Create(t *testing.T) {
	t.Run("inserts session row", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		session := testSession(t)
		payload, err := json.Marshal(session.Identity)
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO web_sessions`).
			WithArgs(
				session.ID.String(), session.TokenHash, payload,
				session.ExpiresAt, session.CreatedAt, session.LastSeenAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.Create(context.Background(), session))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps insert failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		session := testSession(t)
		payload, err := json.Marshal(session.Identity)
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO web_sessions`).
			WithArgs(
				session.ID.String(), session.TokenHash, payload,
				session.ExpiresAt, session.CreatedAt, session.LastSeenAt,
			).
			WillReturnError(errors.New("connection refused"))

		repo := NewSessionRepository(mock)
		err = repo.Create(context.Background(), session)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface, s *auth.Session)
		wantErr   error
	}{
		{
			name: "returns session with identity payload",
			setupMock: func(mock pgxmock.PgxPoolIface, s *auth.Session) {
				mock.ExpectQuery(`SELECT .+ FROM web_sessions`).
					WithArgs(s.TokenHash).
					WillReturnRows(sessionRows(t, s))
			},
		},
		{
			name: "missing row maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface, s *auth.Session) {
				mock.ExpectQuery(`SELECT .+ FROM web_sessions`).
					WithArgs(s.TokenHash).
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: auth.ErrNotFound,
		},
		{
			name: "undecodable payload maps to ErrMalformedSession",
			setupMock: func(mock pgxmock.PgxPoolIface, s *auth.Session) {
				rows := pgxmock.NewRows([]string{
					"id", "token_hash", "identity", "expires_at", "created_at", "last_seen_at",
				}).AddRow(s.ID.String(), s.TokenHash, []byte(`{"id":`), s.ExpiresAt, s.CreatedAt, s.LastSeenAt)
				mock.ExpectQuery(`SELECT .+ FROM web_sessions`).
					WithArgs(s.TokenHash).
					WillReturnRows(rows)
			},
			wantErr: auth.ErrMalformedSession,
		},
		{
			name: "database error propagates",
			setupMock: func(mock pgxmock.PgxPoolIface, s *auth.Session) {
				mock.ExpectQuery(`SELECT .+ FROM web_sessions`).
					WithArgs(s.TokenHash).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			session := testSession(t)
			tt.setupMock(mock, session)

			repo := NewSessionRepository(mock)
			got, err := repo.GetByTokenHash(context.Background(), session.TokenHash)

			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, session.ID, got.ID)
				assert.Equal(t, session.Identity, got.Identity)
				assert.Equal(t, session.ExpiresAt, got.ExpiresAt)
			case errors.Is(tt.wantErr, auth.ErrNotFound):
				assert.ErrorIs(t, err, auth.ErrNotFound)
			case errors.Is(tt.wantErr, auth.ErrMalformedSession):
				assert.ErrorIs(t, err, auth.ErrMalformedSession)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestSessionRepository_UpdateLastSeen(t *testing.T) {
	t.Run("updates timestamp", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		seen := time.Now().UTC()
		mock.ExpectExec(`UPDATE web_sessions SET last_seen_at`).
			WithArgs(id.String(), seen).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.UpdateLastSeen(context.Background(), id, seen))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing session maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := ulid.Make()
		seen := time.Now().UTC()
		mock.ExpectExec(`UPDATE web_sessions SET last_seen_at`).
			WithArgs(id.String(), seen).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewSessionRepository(mock)
		err = repo.UpdateLastSeen(context.Background(), id, seen)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_DeleteByTokenHash(t *testing.T) {
	t.Run("deletes session", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE token_hash`).
			WithArgs("somehash").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.DeleteByTokenHash(context.Background(), "somehash"))
	})

	t.Run("absent session is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE token_hash`).
			WithArgs("gone").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewSessionRepository(mock)
		assert.NoError(t, repo.DeleteByTokenHash(context.Background(), "gone"))
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	t.Run("returns deleted count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		repo := NewSessionRepository(mock)
		count, err := repo.DeleteExpired(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("wraps database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		repo := NewSessionRepository(mock)
		_, err = repo.DeleteExpired(context.Background())
		require.Error(t, err)
	})
}
