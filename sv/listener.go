package sv

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/edgeo/drivers/sv/sv/internal/transport"
)

// ListenerState represents the listener state
type ListenerState int32

const (
	StateStopped ListenerState = iota
	StateStarting
	StateListening
)

func (s ListenerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	default:
		return "unknown"
	}
}

// Message is one payload received by a Listener
type Message struct {
	From    *net.UDPAddr
	Frame   *Frame // nil unless the listener is framed
	Payload *Payload
}

// Handler is called from the listener goroutine for every decoded payload
type Handler func(msg *Message)

// Listener receives Sampled Values over UDP and decodes every datagram,
// either as a bare payload or, with WithFramed, as an Ethernet frame
type Listener struct {
	opts      *decoderOptions
	decoder   *Decoder
	transport *transport.UDPTransport
	handler   Handler

	state atomic.Int32

	metrics *Metrics
	logger  *slog.Logger

	receiverCtx    context.Context
	receiverCancel context.CancelFunc
	receiverDone   chan struct{}
}

// NewListener creates a listener bound to addr once started
func NewListener(addr string, handler Handler, opts ...Option) *Listener {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.metrics == nil {
		options.metrics = NewMetrics()
	}

	l := &Listener{
		opts:    options,
		handler: handler,
		metrics: options.metrics,
		logger:  options.logger,
	}
	l.decoder = NewDecoder(opts...)
	l.decoder.metrics = options.metrics

	l.transport = transport.NewUDPTransport(addr, options.bufferSize)
	l.transport.SetReadTimeout(options.readTimeout)

	return l
}

// Start opens the socket and starts the receiver goroutine
func (l *Listener) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyListening
	}

	if err := l.transport.Open(ctx); err != nil {
		l.state.Store(int32(StateStopped))
		return fmt.Errorf("open transport: %w", err)
	}

	l.receiverCtx, l.receiverCancel = context.WithCancel(context.Background())
	l.receiverDone = make(chan struct{})
	go l.receiver()

	l.state.Store(int32(StateListening))

	l.logger.Info("listening",
		slog.String("local_addr", l.transport.LocalAddr().String()),
		slog.Bool("framed", l.opts.framed),
	)
	return nil
}

// Close stops the receiver and closes the socket
func (l *Listener) Close() error {
	if l.state.Load() == int32(StateStopped) {
		return nil
	}
	l.state.Store(int32(StateStopped))

	if l.receiverCancel != nil {
		l.receiverCancel()
		<-l.receiverDone
	}

	if err := l.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}

	l.logger.Info("listener stopped")
	return nil
}

// Wait blocks until the listener is closed or ctx is done
func (l *Listener) Wait(ctx context.Context) error {
	if l.State() != StateListening {
		return ErrListenerClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.receiverDone:
		return nil
	}
}

// State returns the current listener state
func (l *Listener) State() ListenerState {
	return ListenerState(l.state.Load())
}

// Metrics returns the listener metrics
func (l *Listener) Metrics() *Metrics {
	return l.metrics
}

// LocalAddr returns the bound address, nil before Start
func (l *Listener) LocalAddr() net.Addr {
	return l.transport.LocalAddr()
}

func (l *Listener) receiver() {
	defer close(l.receiverDone)

	for {
		select {
		case <-l.receiverCtx.Done():
			return
		default:
		}

		data, addr, err := l.transport.ReceiveWithTimeout(l.opts.readTimeout)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if l.transport.IsClosed() {
				return
			}
			l.logger.Debug("receive error", slog.String("error", err.Error()))
			continue
		}

		l.metrics.DatagramsReceived.Inc()
		l.handleDatagram(data, addr)
	}
}

func (l *Listener) handleDatagram(data []byte, addr *net.UDPAddr) {
	msg := &Message{From: addr}

	var err error
	if l.opts.framed {
		msg.Frame, msg.Payload, err = l.decoder.DecodeFrame(data)
	} else {
		msg.Payload, err = l.decoder.Decode(data)
	}
	if err != nil {
		l.logger.Debug("dropping datagram",
			slog.String("from", addr.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if l.handler != nil {
		l.handler(msg)
	}
}
