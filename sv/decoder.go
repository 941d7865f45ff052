package sv

import (
	"errors"
	"log/slog"
	"time"
)

// Decoder decodes payloads with a fixed policy and records metrics.
// It is safe for concurrent use; destination payloads are not.
type Decoder struct {
	opts    *decoderOptions
	metrics *Metrics
	logger  *slog.Logger
}

// NewDecoder creates a new decoder
func NewDecoder(opts ...Option) *Decoder {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	metrics := options.metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Decoder{
		opts:    options,
		metrics: metrics,
		logger:  logger,
	}
}

// Metrics returns the decoder metrics
func (d *Decoder) Metrics() *Metrics {
	return d.metrics
}

// Strict reports whether the decoder rejects trailing slack
func (d *Decoder) Strict() bool {
	return d.opts.strictLength
}

// Decode decodes a payload into a freshly allocated record
func (d *Decoder) Decode(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := d.DecodeInto(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeInto decodes into a caller-owned payload. On error the contents of
// p are undefined and must be discarded.
func (d *Decoder) DecodeInto(data []byte, p *Payload) error {
	start := time.Now()
	p.Reset()
	err := decodePayload(data, p, d.opts.strictLength)
	d.metrics.DecodeLatency.Record(time.Since(start))
	d.metrics.RecordActivity()

	if err != nil {
		d.metrics.PayloadsFailed.Inc()
		var fe *FormatError
		if errors.As(err, &fe) {
			if c := d.metrics.Failures(fe.Reason); c != nil {
				c.Inc()
			}
			d.logger.Debug("payload rejected",
				slog.String("level", fe.Level.String()),
				slog.String("reason", fe.Reason.String()),
				slog.Int("tag", int(fe.Tag)),
				slog.Int("offset", fe.Offset),
				slog.Int("size", len(data)),
			)
		}
		return err
	}

	d.metrics.PayloadsDecoded.Inc()
	d.metrics.ASDUsDecoded.Add(int64(p.count))
	d.metrics.BytesDecoded.Add(int64(len(data)))

	if p.count != int(p.NoASDU) {
		d.logger.Debug("ASDU count differs from noASDU",
			slog.Int("appid", int(p.APPID)),
			slog.Int("declared", int(p.NoASDU)),
			slog.Int("decoded", p.count),
		)
	}
	return nil
}

// DecodeFrame extracts the payload from an Ethernet frame and decodes it.
// Frames that do not carry Sampled Values are counted as skipped.
func (d *Decoder) DecodeFrame(data []byte) (*Frame, *Payload, error) {
	frame, err := ParseFrame(data)
	if err != nil {
		d.metrics.FramesSkipped.Inc()
		return nil, nil, err
	}
	p, err := d.Decode(frame.Payload)
	if err != nil {
		return frame, nil, err
	}
	return frame, p, nil
}
