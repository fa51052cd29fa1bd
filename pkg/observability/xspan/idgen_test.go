package xspan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/evplanner/pkg/util/xid"
)

func TestIDGenerator_Random(t *testing.T) {
	g := NewIDGenerator(nil)

	tid, sid := g.NewIDs(context.Background())
	assert.True(t, tid.IsValid())
	assert.True(t, sid.IsValid())
	assert.True(t, g.NewSpanID(context.Background(), tid).IsValid())
	assert.Zero(t, g.FallbackCount())
}

func TestIDGenerator_EntropyFailure(t *testing.T) {
	g := NewIDGenerator(xid.NewGenerator(xid.WithMachineID(func() (uint16, error) { return 7, nil })))
	g.read = func([]byte) (int, error) { return 0, errors.New("no entropy") }

	seen := make(map[trace.SpanID]struct{})
	for range 100 {
		tid, sid := g.NewIDs(context.Background())
		assert.True(t, tid.IsValid(), "回退路径的 trace-id 也不能全零")
		assert.True(t, sid.IsValid())
		_, dup := seen[sid]
		assert.False(t, dup)
		seen[sid] = struct{}{}
	}
	assert.Equal(t, uint64(200), g.FallbackCount())
}

func TestIDGenerator_AllZeroRandom(t *testing.T) {
	g := NewIDGenerator(nil)
	g.read = func(b []byte) (int, error) {
		clear(b)
		return len(b), nil
	}

	sid := g.NewSpanID(context.Background(), trace.TraceID{1})
	assert.True(t, sid.IsValid())
	assert.Equal(t, uint64(1), g.FallbackCount())
}
