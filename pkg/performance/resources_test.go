package performance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

func fixedAvailable(n uint64) AvailableFunc {
	return func(context.Context) (uint64, error) { return n, nil }
}

func TestMemoryGuardAdmit(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(64<<20, fixedAvailable(1<<30))

	assert.NoError(t, g.Admit(ctx, 512<<20))
	assert.NoError(t, g.Admit(ctx, 1<<30-64<<20))

	err := g.Admit(ctx, 1<<30)
	require.Error(t, err)
	assert.True(t, bencherrors.IsType(err, bencherrors.ErrorTypeFileLoad))
	assert.Contains(t, err.Error(), "960 MiB")
}

func TestMemoryGuardHeadroomAboveAvailable(t *testing.T) {
	g := NewMemoryGuard(2<<30, fixedAvailable(1<<30))
	assert.Error(t, g.Admit(context.Background(), 1))
	assert.NoError(t, g.Admit(context.Background(), 0))
}

func TestMemoryGuardFailsOpen(t *testing.T) {
	g := NewMemoryGuard(0, func(context.Context) (uint64, error) {
		return 0, errors.New("no /proc")
	})
	assert.NoError(t, g.Admit(context.Background(), 1<<40))

	var nilGuard *MemoryGuard
	assert.NoError(t, nilGuard.Admit(context.Background(), 1<<40))
}

func TestResourceMonitor(t *testing.T) {
	ctx := context.Background()
	rm, err := NewResourceMonitor(ctx)
	require.NoError(t, err)

	usage := rm.GetResourceUsage(ctx)
	assert.Positive(t, usage.GoroutineCount)

	rss := rm.Sample(ctx)
	assert.GreaterOrEqual(t, rm.PeakRSS(), rss)
}
