package roundtrip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
	"github.com/ajitpratap0/chunkbench/pkg/superchunk"
	"github.com/ajitpratap0/chunkbench/pkg/testutil"
)

func TestSessionLifecycle(t *testing.T) {
	backend := &memBackend{}
	s := NewSession(backend)
	assert.Equal(t, StateCreated, s.State())
	assert.Nil(t, s.Container())

	require.NoError(t, s.Configure(superchunk.DefaultConfig()))
	assert.Equal(t, StateConfigured, s.State())
	assert.Equal(t, 1, backend.created)

	require.NoError(t, s.AppendChunk([]byte("abcdefgh")))
	require.NoError(t, s.AppendChunk([]byte("ijklmnop")))
	assert.Equal(t, StateAppending, s.State())
	assert.Equal(t, 2, s.Chunks())
	assert.Equal(t, int64(16), s.Container().NBytes())
	assert.GreaterOrEqual(t, s.CompressTime().Nanoseconds(), int64(0))

	require.NoError(t, s.Seal())
	assert.Equal(t, StateSealed, s.State())
	assert.True(t, s.Container().(*memContainer).sealed)

	c := s.Container().(*memContainer)
	require.NoError(t, s.Close())
	assert.True(t, c.closed)
	assert.NoError(t, s.Close())
}

func TestSessionStateErrors(t *testing.T) {
	s := NewSession(&memBackend{})

	err := s.AppendChunk([]byte("x"))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
	assert.True(t, bencherrors.IsType(s.Seal(), bencherrors.ErrorTypeInvalidState))

	require.NoError(t, s.Configure(superchunk.DefaultConfig()))
	err = s.Configure(superchunk.DefaultConfig())
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))

	require.NoError(t, s.Seal())
	err = s.AppendChunk([]byte("x"))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeInvalidState))
	assert.True(t, bencherrors.IsType(s.Seal(), bencherrors.ErrorTypeInvalidState))
}

func TestSessionConfigureRejectsInvalidConfig(t *testing.T) {
	backend := &memBackend{}
	s := NewSession(backend)
	cfg := superchunk.DefaultConfig()
	cfg.TypeSize = 0

	err := s.Configure(cfg)
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeConfig))
	assert.Equal(t, StateCreated, s.State())
	assert.Zero(t, backend.created)
}

func TestSessionDetectsOutOfSequenceIndex(t *testing.T) {
	s := NewSession(&memBackend{indexSkew: 1})
	require.NoError(t, s.Configure(superchunk.DefaultConfig()))

	err := s.AppendChunk([]byte("abcdefgh"))
	require.Error(t, err)
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeAppend))
	details := bencherrors.DetailsOf(err)
	assert.Equal(t, 0, details["expected"])
	assert.Equal(t, 1, details["got"])
	assert.Zero(t, s.Chunks())
}

func TestSessionWrapsBackendError(t *testing.T) {
	cause := bencherrors.New(bencherrors.ErrorTypeCodec, "encoder exploded")
	s := NewSession(&memBackend{failAppend: cause})
	require.NoError(t, s.Configure(superchunk.DefaultConfig()))

	err := s.AppendChunk([]byte("abcdefgh"))
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeCodec))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, 0, bencherrors.DetailsOf(err)["chunk"])
}

func TestSessionWithEngine(t *testing.T) {
	s := NewSession(superchunk.NewEngine(nil))
	require.NoError(t, s.Configure(superchunk.DefaultConfig()))

	data := testutil.Repeated('A', 4096)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.AppendChunk(data[i*1024:(i+1)*1024]))
	}
	require.NoError(t, s.Seal())
	assert.Equal(t, int64(4096), s.Container().NBytes())
	assert.Less(t, s.Container().CBytes(), int64(4096))
	require.NoError(t, s.Close())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "sealed", StateSealed.String())
	assert.Equal(t, "unknown", State(42).String())
}
