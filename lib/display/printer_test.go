package display

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
)

func TestPrinter_JSONLines(t *testing.T) {
	events := make(chan dispatch.Event, 2)
	snapshots := make(chan status.Snapshot, 1)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	events <- dispatch.Event{Kind: dispatch.EventCracked, At: at, DeviceID: 1, Hash: "abc", Plain: []byte("a:b")}
	events <- dispatch.Event{Kind: dispatch.EventDeviceSkipped, DeviceID: 2, Err: errors.New("gone")}
	snapshots <- status.Snapshot{Session: "s", Progress: []uint64{5, 10}, RecoveredHashes: []int{1, 2}}

	close(events)
	close(snapshots)

	var out bytes.Buffer

	p := &Printer{Out: &out, JSON: true, Events: events, Snapshots: snapshots}
	require.NoError(t, p.Run(context.Background()))

	types := map[string]map[string]any{}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))

		kind, ok := m["type"].(string)
		require.True(t, ok)

		types[kind] = m
	}

	require.Len(t, types, 2, "device skips go to the log, not the stream")
	assert.Equal(t, "abc", types["cracked"]["hash"])
	assert.Equal(t, "$HEX[613a62]", types["cracked"]["plain"])
	assert.Equal(t, "s", types["status"]["session"])
}

func TestPrinter_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Printer{Out: &bytes.Buffer{}, Events: make(chan dispatch.Event), Snapshots: make(chan status.Snapshot)}
	assert.NoError(t, p.Run(ctx))
}

func TestPrinter_Bar(t *testing.T) {
	snapshots := make(chan status.Snapshot, 2)
	snapshots <- status.Snapshot{StatusText: "Running", Progress: []uint64{1, 4}, Speed: 2000}
	snapshots <- status.Snapshot{StatusText: "Exhausted", Progress: []uint64{4, 4}}
	close(snapshots)

	var out bytes.Buffer

	p := &Printer{Out: &out, Bar: true, Snapshots: snapshots}
	require.NoError(t, p.Run(context.Background()))

	assert.Nil(t, p.bar)
	assert.Contains(t, out.String(), "100.00%")
}
