package sv

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderMetrics(t *testing.T) {
	d := NewDecoder()

	good := buildPayload(0x4000, 2, testASDU("A", 1), testASDU("B", 2))
	_, err := d.Decode(good)
	require.NoError(t, err)

	_, err = d.Decode(buildPayload(0x4000, 1, concat(tlv(TagSvID, bytes.Repeat([]byte{'x'}, MaxSvIDLength+1)...))))
	require.ErrorIs(t, err, ErrBadFormat)

	_, err = d.Decode([]byte{0x40})
	require.ErrorIs(t, err, ErrBadFormat)

	_, _, err = d.DecodeFrame(concat(make([]byte, 12), []byte{0x08, 0x00}))
	require.ErrorIs(t, err, ErrNotSampledValues)

	snap := d.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.PayloadsDecoded)
	assert.Equal(t, int64(2), snap.PayloadsFailed)
	assert.Equal(t, int64(2), snap.ASDUsDecoded)
	assert.Equal(t, int64(len(good)), snap.BytesDecoded)
	assert.Equal(t, int64(1), snap.FramesSkipped)
	assert.Equal(t, int64(1), snap.Failures[ReasonCapacityExceeded])
	assert.Equal(t, int64(1), snap.Failures[ReasonShortHeader])
	assert.Equal(t, int64(0), snap.Failures[ReasonUnknownTag])
	assert.Equal(t, int64(3), snap.LatencyStats.Count)

	d.Metrics().Reset()
	assert.Equal(t, int64(0), d.Metrics().Snapshot().PayloadsDecoded)
}

func TestDecoderStrictLength(t *testing.T) {
	exact := buildPayload(0x4000, 1, testASDU("SV", 1))

	// noASDU TLV straddles the declared end
	overrun := append([]byte(nil), exact...)
	overrun[3] = HeaderSize + 3

	tt := []struct {
		desc    string
		data    []byte
		invalid bool
	}{
		{desc: "exact", data: exact},
		{desc: "ethernet padding", data: concat(exact, make([]byte, 6))},
		{desc: "overrun", data: overrun, invalid: true},
		{desc: "length below header", data: []byte{0, 1, 0, 4, 0, 0, 0, 0}, invalid: true},
	}
	for _, tc := range tt {
		t.Run(tc.desc, func(t *testing.T) {
			lenient := NewDecoder()
			_, err := lenient.Decode(tc.data)
			require.NoError(t, err)

			strict := NewDecoder(WithStrictLength())
			assert.True(t, strict.Strict())
			_, err = strict.Decode(tc.data)
			if tc.invalid {
				require.ErrorIs(t, err, ErrBadFormat)
				reason, _ := ReasonOf(err)
				assert.Equal(t, ReasonLengthMismatch, reason)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDecoderConcurrent(t *testing.T) {
	d := NewDecoder()
	inputs := [][]byte{
		buildPayload(1, 1, testASDU("A", 1)),
		buildPayload(2, 2, testASDU("B", 1), testASDU("C", 2)),
		buildPayload(3, 1, tlv(0x99)),
	}

	const workers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var p Payload
			for i := 0; i < rounds; i++ {
				for _, in := range inputs {
					_ = d.DecodeInto(in, &p)
				}
			}
		}()
	}
	wg.Wait()

	snap := d.Metrics().Snapshot()
	assert.Equal(t, int64(workers*rounds*2), snap.PayloadsDecoded)
	assert.Equal(t, int64(workers*rounds), snap.PayloadsFailed)
	assert.Equal(t, int64(workers*rounds*3), snap.ASDUsDecoded)
}

func TestDecoderLogsRejections(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := NewDecoder(WithLogger(logger))

	_, err := d.Decode(buildPayload(1, 1, tlv(0x99)))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "payload rejected")
	assert.Contains(t, buf.String(), "reason=unknown-tag")
}

func TestDecoderSharedMetrics(t *testing.T) {
	m := NewMetrics()
	a := NewDecoder(WithMetrics(m))
	b := NewDecoder(WithMetrics(m))

	_, err := a.Decode(buildPayload(1, 0))
	require.NoError(t, err)
	_, err = b.Decode(buildPayload(1, 0))
	require.NoError(t, err)

	assert.Same(t, m, a.Metrics())
	assert.Equal(t, int64(2), m.PayloadsDecoded.Value())
}

func TestLatencyHistogram(t *testing.T) {
	h := NewLatencyHistogram()
	h.Record(0)
	h.Record(LatencyBuckets[len(LatencyBuckets)-1] * 2)

	stats := h.Stats()
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(1), stats.Buckets[0])
	assert.Equal(t, int64(1), stats.Buckets[len(stats.Buckets)-1])
	assert.Equal(t, LatencyBuckets[len(LatencyBuckets)-1]*2, stats.Max)
}

func TestMetricsResetWhileReading(t *testing.T) {
	m := NewMetrics()
	time.Sleep(5 * time.Millisecond)
	require.GreaterOrEqual(t, m.Uptime(), 5*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Snapshot()
				_ = m.LastActivity()
			}
		}()
	}
	for j := 0; j < 100; j++ {
		m.Reset()
	}
	wg.Wait()

	assert.Less(t, m.Uptime(), time.Second)
	assert.False(t, m.LastActivity().IsZero())
	assert.WithinDuration(t, time.Now(), m.LastActivity(), time.Second)
}
