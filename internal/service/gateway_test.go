package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *repository.CodeRepo) {
	t.Helper()
	s := store.NewMemoryStore()
	codes := repository.NewCodeRepo(s, "BS")
	return NewGateway(codes, repository.NewSessionLockRepo(s), 90*time.Second), codes
}

func TestGatewayScenario(t *testing.T) {
	ctx := context.Background()
	gw, codes := newTestGateway(t)

	issued, err := codes.Issue(ctx, "sess_1", true, repository.IssueMetadata{})
	require.NoError(t, err)
	again, err := codes.Issue(ctx, "sess_1", true, repository.IssueMetadata{})
	require.NoError(t, err)
	assert.Equal(t, issued.Code, again.Code)
	assert.False(t, again.IsNew)

	res, err := gw.Validate(ctx, "BS-WRONG-CODE1", "dev-A")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonInvalidCode, res.Reason)

	res, err = gw.Validate(ctx, issued.Code, "dev-A")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, ReasonSessionAcquired, res.Reason)
	assert.Equal(t, 90*time.Second, res.ExpiresIn)

	res, err = gw.Validate(ctx, issued.Code, "dev-B")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonActiveElsewhere, res.Reason)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	res, err = gw.Validate(ctx, issued.Code, "dev-A")
	require.NoError(t, err)
	assert.Equal(t, ReasonSessionRefreshed, res.Reason)

	released, err := gw.Release(ctx, issued.Code, "dev-B")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = gw.Release(ctx, issued.Code, "dev-A")
	require.NoError(t, err)
	assert.True(t, released)

	res, err = gw.Validate(ctx, issued.Code, "dev-B")
	require.NoError(t, err)
	assert.Equal(t, ReasonSessionAcquired, res.Reason)
}

func TestGatewayInvalidCodeWinsOverMissingClient(t *testing.T) {
	gw, _ := newTestGateway(t)
	res, err := gw.Validate(context.Background(), "BS-AAAAA-AAAAA", "")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidCode, res.Reason)
}

func TestGatewayMissingClientID(t *testing.T) {
	ctx := context.Background()
	gw, codes := newTestGateway(t)
	issued, err := codes.Issue(ctx, "sess_1", true, repository.IssueMetadata{})
	require.NoError(t, err)

	_, err = gw.Validate(ctx, issued.Code, "   ")
	assert.True(t, errors.Is(err, ErrMissingClientID))
}

func TestGatewayCheckExistsNormalizes(t *testing.T) {
	ctx := context.Background()
	gw, codes := newTestGateway(t)
	issued, err := codes.Issue(ctx, "sess_1", true, repository.IssueMetadata{})
	require.NoError(t, err)

	ok, err := gw.CheckExists(ctx, "  "+issued.Code+"\n")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gw.CheckExists(ctx, "BS-NOPE0-NOPE0")
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingRegistry struct{}

func (failingRegistry) Exists(context.Context, string) (bool, error) {
	return false, store.ErrUnavailable
}

func TestGatewayPropagatesStoreFailure(t *testing.T) {
	gw := NewGateway(failingRegistry{}, repository.NewSessionLockRepo(store.NewMemoryStore()), time.Minute)
	_, err := gw.Validate(context.Background(), "BS-AAAAA-AAAAA", "dev-A")
	assert.True(t, errors.Is(err, store.ErrUnavailable))
}
