// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yoshisuproject/simpleauth/internal/auth"
	"github.com/yoshisuproject/simpleauth/internal/auth/mocks"
	"github.com/yoshisuproject/simpleauth/pkg/errutil"
)

func newService(t *testing.T) (*auth.Service, *mocks.MockUserRepository, *mocks.MockSessionRepository, *mocks.MockPasswordHasher) {
	t.Helper()
	users := mocks.NewMockUserRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	svc, err := auth.NewService(users, sessions, hasher)
	require.NoError(t, err)
	return svc, users, sessions, hasher
}

func TestNewService_NilDependencies(t *testing.T) {
	users := mocks.NewMockUserRepository(t)
	sessions := mocks.NewMockSessionRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)

	_, err := auth.NewService(nil, sessions, hasher)
	require.Error(t, err)

	_, err = auth.NewService(users, nil, hasher)
	require.Error(t, err)

	_, err = auth.NewService(users, sessions, nil)
	require.Error(t, err)

	_, err = auth.NewServiceWithLogger(users, sessions, hasher, nil)
	require.Error(t, err)
}

func TestAuthenticateUser_Success(t *testing.T) {
	svc, users, _, hasher := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com", PasswordHash: "stored-hash"}

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	hasher.On("Verify", "secret", "stored-hash").Return(true)

	got, err := svc.AuthenticateUser(context.Background(), "user@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestAuthenticateUser_WrongPassword(t *testing.T) {
	svc, users, _, hasher := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com", PasswordHash: "stored-hash"}

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	hasher.On("Verify", "wrong", "stored-hash").Return(false)

	_, err := svc.AuthenticateUser(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
}

func TestAuthenticateUser_UnknownUserStillVerifies(t *testing.T) {
	svc, users, _, hasher := newService(t)

	users.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound))
	// The dummy hash is verified so unknown-user timing matches wrong-password
	// timing.
	hasher.On("Verify", "secret", mock.MatchedBy(func(hash string) bool {
		return hash != ""
	})).Return(false)

	_, err := svc.AuthenticateUser(context.Background(), "ghost@example.com", "secret")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	hasher.AssertNumberOfCalls(t, "Verify", 1)
}

func TestAuthenticateUser_SameErrorForBothFailures(t *testing.T) {
	svc, users, _, hasher := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com", PasswordHash: "stored-hash"}

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	users.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound))
	hasher.On("Verify", mock.Anything, mock.Anything).Return(false)

	_, errWrongPassword := svc.AuthenticateUser(context.Background(), "user@example.com", "x")
	_, errUnknownUser := svc.AuthenticateUser(context.Background(), "ghost@example.com", "x")

	require.Error(t, errWrongPassword)
	require.Error(t, errUnknownUser)
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestAuthenticateUser_LookupFailure(t *testing.T) {
	svc, users, _, _ := newService(t)

	users.On("GetByEmail", mock.Anything, "user@example.com").
		Return(nil, errors.New("connection refused"))

	_, err := svc.AuthenticateUser(context.Background(), "user@example.com", "secret")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_LOOKUP_FAILED")
}

func TestStartSession_Success(t *testing.T) {
	svc, _, sessions, _ := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com"}

	sessions.On("Create", mock.Anything, mock.MatchedBy(func(s *auth.Session) bool {
		return s.UserID == user.ID && s.Token != "" && s.IPAddress == "203.0.113.7"
	})).Return(nil)

	session, err := svc.StartSession(context.Background(), user, "203.0.113.7", "agent")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.NotEmpty(t, session.Token)
}

func TestStartSession_NilUser(t *testing.T) {
	svc, _, _, _ := newService(t)

	_, err := svc.StartSession(context.Background(), nil, "", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
}

func TestStartSession_RetriesOnTokenCollision(t *testing.T) {
	svc, _, sessions, _ := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com"}

	dup := oops.Code("SESSION_DUPLICATE_TOKEN").Wrap(auth.ErrDuplicate)
	sessions.On("Create", mock.Anything, mock.Anything).Return(dup).Once()
	sessions.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	session, err := svc.StartSession(context.Background(), user, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	sessions.AssertNumberOfCalls(t, "Create", 2)
}

func TestStartSession_GivesUpAfterRepeatedCollisions(t *testing.T) {
	svc, _, sessions, _ := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com"}

	dup := oops.Code("SESSION_DUPLICATE_TOKEN").Wrap(auth.ErrDuplicate)
	sessions.On("Create", mock.Anything, mock.Anything).Return(dup)

	_, err := svc.StartSession(context.Background(), user, "", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
}

func TestStartSession_NonRetryableFailure(t *testing.T) {
	svc, _, sessions, _ := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com"}

	sessions.On("Create", mock.Anything, mock.Anything).
		Return(errors.New("connection refused")).Once()

	_, err := svc.StartSession(context.Background(), user, "", "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
	sessions.AssertNumberOfCalls(t, "Create", 1)
}

func TestResumeSession_Success(t *testing.T) {
	svc, users, sessions, _ := newService(t)
	user := &auth.User{ID: ulid.Make(), Email: "user@example.com"}
	stored := &auth.Session{ID: ulid.Make(), UserID: user.ID, Token: "tok"}

	sessions.On("GetByToken", mock.Anything, "tok").Return(stored, nil)
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	session, gotUser, err := svc.ResumeSession(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, stored, session)
	assert.Equal(t, user, gotUser)
}

func TestResumeSession_EmptyToken(t *testing.T) {
	svc, _, _, _ := newService(t)

	session, user, err := svc.ResumeSession(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Nil(t, user)
}

func TestResumeSession_UnknownToken(t *testing.T) {
	svc, _, sessions, _ := newService(t)

	sessions.On("GetByToken", mock.Anything, "stale").
		Return(nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound))

	session, user, err := svc.ResumeSession(context.Background(), "stale")
	require.NoError(t, err, "unknown token is unauthenticated, not an error")
	assert.Nil(t, session)
	assert.Nil(t, user)
}

func TestResumeSession_DanglingUser(t *testing.T) {
	svc, users, sessions, _ := newService(t)
	stored := &auth.Session{ID: ulid.Make(), UserID: ulid.Make(), Token: "tok"}

	sessions.On("GetByToken", mock.Anything, "tok").Return(stored, nil)
	users.On("GetByID", mock.Anything, stored.UserID).
		Return(nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound))

	session, user, err := svc.ResumeSession(context.Background(), "tok")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Nil(t, user)
}

func TestResumeSession_StorageFailure(t *testing.T) {
	svc, _, sessions, _ := newService(t)

	sessions.On("GetByToken", mock.Anything, "tok").
		Return(nil, errors.New("connection refused"))

	_, _, err := svc.ResumeSession(context.Background(), "tok")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_RESUME_FAILED")
}

func TestTerminateSession(t *testing.T) {
	svc, _, sessions, _ := newService(t)
	session := &auth.Session{ID: ulid.Make(), UserID: ulid.Make()}

	sessions.On("Delete", mock.Anything, session.ID).Return(nil)

	require.NoError(t, svc.TerminateSession(context.Background(), session))
}

func TestTerminateSession_NilSession(t *testing.T) {
	svc, _, _, _ := newService(t)
	require.NoError(t, svc.TerminateSession(context.Background(), nil))
}

func TestTerminateSession_AlreadyDeleted(t *testing.T) {
	svc, _, sessions, _ := newService(t)
	session := &auth.Session{ID: ulid.Make(), UserID: ulid.Make()}

	sessions.On("Delete", mock.Anything, session.ID).
		Return(oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound))

	require.NoError(t, svc.TerminateSession(context.Background(), session), "double logout is a no-op")
}
