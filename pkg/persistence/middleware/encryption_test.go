package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"testing"

	"github.com/afo-kingdom/chancellor/pkg/adapters/memory"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	"github.com/afo-kingdom/chancellor/pkg/persistence/middleware"
	contract "github.com/afo-kingdom/chancellor/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	contract.RunCheckpointStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	ctx := context.Background()

	state := domain.NewGraphState(map[string]any{"trace_id": "enc", "text": "my-secret-sauce"})
	state.Step = domain.StepMerge
	require.NoError(t, secure.Save(ctx, "enc", domain.StepMerge, state))

	stored, err := underlying.Load(ctx, "enc", domain.StepMerge)
	require.NoError(t, err)
	assert.Empty(t, stored.Input, "input must not be stored in clear")
	assert.Contains(t, stored.Meta, middleware.EnvelopeKey)
	assert.Equal(t, domain.StepMerge, stored.Step)

	loaded, err := secure.Load(ctx, "enc", domain.StepMerge)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Input["text"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	old := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, old.Save(ctx, "rot", domain.StepCmd, domain.NewGraphState(map[string]any{"text": "old"})))

	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)
	loaded, err := rotated.Latest(ctx, "rot")
	require.NoError(t, err)
	assert.Equal(t, "old", loaded.Input["text"])

	wrong := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})(underlying)
	_, err = wrong.Load(ctx, "rot", domain.StepCmd)
	assert.Error(t, err)
}

func TestEncryptionMiddleware_FailsClosedOnPlainData(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, "plain", domain.StepCmd, domain.NewGraphState(nil)))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(ctx, "plain", domain.StepCmd)
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	got, err := middleware.ParseKey(hex.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("too-short")
	assert.Error(t, err)
}
