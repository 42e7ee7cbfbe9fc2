package audit

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_WriteAppendsOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs.jsonl")

	s, err := NewFileSink(path, 1)
	require.NoError(t, err)

	require.NoError(t, s.Write(DomainEvent{Type: EventBarProcessed, BarIndex: 0}))
	require.NoError(t, s.Write(DomainEvent{Type: EventBarProcessed, BarIndex: 1}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			lines++
		}
	}
	assert.Equal(t, 2, lines)
}

func TestSequencer_AssignsMonotonicSeq(t *testing.T) {
	var s Sequencer
	a := s.Next(DomainEvent{Type: EventBarProcessed})
	b := s.Next(DomainEvent{Type: EventBarProcessed})
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
}
