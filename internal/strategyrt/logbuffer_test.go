package strategyrt

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferAppendAndSnapshot(t *testing.T) {
	b := NewLogBuffer()
	now := time.Unix(0, 0)
	b.Append(LogInfo, "started", now)
	b.Append(LogTrade, "bought 1 ETH", now)

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "started", snap[0].Message)
	assert.Equal(t, LogTrade, snap[1].Level)
}

func TestLogBufferEvictsOldestBeyondCapacity(t *testing.T) {
	b := NewLogBuffer()
	now := time.Unix(0, 0)
	for i := 0; i < logBufferCapacity+10; i++ {
		b.Append(LogInfo, fmt.Sprintf("line-%d", i), now)
	}
	snap := b.Snapshot()
	require.Len(t, snap, logBufferCapacity)
	assert.Equal(t, "line-10", snap[0].Message)
	assert.Equal(t, fmt.Sprintf("line-%d", logBufferCapacity+9), snap[len(snap)-1].Message)
}

func TestLogBufferSnapshotIsACopy(t *testing.T) {
	b := NewLogBuffer()
	b.Append(LogInfo, "first", time.Unix(0, 0))
	snap := b.Snapshot()
	snap[0].Message = "mutated"
	assert.Equal(t, "first", b.Snapshot()[0].Message)
}
