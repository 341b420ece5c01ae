// Package config holds the plain configuration structs ZMesh's Node and
// MessageBox constructors take, following the engine's ServerConfig /
// NetworkConfig "struct + Default* constructor" idiom rather than a
// functional-options API.
package config

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/minx-zmesh/zmesh/zmetrics"
)

// ErrInvalidArgument is returned for out-of-range configuration, such as a
// non-positive RequestOptions.MaxRetries.
var ErrInvalidArgument = errors.New("config: invalid argument")

// RequestOptions controls an Ask call's retry/timeout behavior.
type RequestOptions struct {
	// Timeout bounds a single retry attempt's wait for an Answer.
	Timeout time.Duration
	// MaxRetries is the number of attempts (including the first), must be >= 1.
	MaxRetries int
}

// DefaultRequestOptions returns the spec-mandated defaults: 3s timeout, 3 retries.
func DefaultRequestOptions() RequestOptions {
	return RequestOptions{Timeout: 3 * time.Second, MaxRetries: 3}
}

// Validate checks that MaxRetries and Timeout are both positive.
func (o RequestOptions) Validate() error {
	if o.MaxRetries <= 0 {
		return ErrInvalidArgument
	}
	if o.Timeout <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

// BoxConfig configures a single MessageBox.
type BoxConfig struct {
	// QueueSize bounds the outbound send queue; Tell/Ask fail with ErrBusy
	// once it is full.
	QueueSize int
	// CompressionThreshold is the minimum encoded payload length (bytes)
	// before the codec zstd-compresses a frame. Zero disables compression.
	CompressionThreshold int
	// CacheTTL is how long an answered Question's CachedAnswer survives,
	// suppressing duplicate handler invocation on retry.
	CacheTTL time.Duration
	// Logger receives structured diagnostics; nil defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics receives instrumentation; nil disables it.
	Metrics *zmetrics.Metrics
}

// DefaultBoxConfig returns the spec-mandated defaults: unbounded compression
// off, 60s answer cache TTL, 1024-deep outbound queue.
func DefaultBoxConfig() BoxConfig {
	return BoxConfig{
		QueueSize:            1024,
		CompressionThreshold: 0,
		CacheTTL:             60 * time.Second,
		Logger:               zap.NewNop(),
	}
}

func (c BoxConfig) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// ResolvedLogger returns c.Logger, defaulting to a no-op logger when unset.
func (c BoxConfig) ResolvedLogger() *zap.Logger { return c.logger() }

// NodeConfig configures a Node.
type NodeConfig struct {
	// Logger receives structured diagnostics; nil defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics receives instrumentation; nil disables it.
	Metrics *zmetrics.Metrics
	// Box is applied to every MessageBox the Node creates via At.
	Box BoxConfig
}

// DefaultNodeConfig returns a NodeConfig with DefaultBoxConfig applied to
// every box the Node creates.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{Logger: zap.NewNop(), Box: DefaultBoxConfig()}
}

// ResolvedLogger returns c.Logger, defaulting to a no-op logger when unset.
func (c NodeConfig) ResolvedLogger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// BoxConfigFor returns the BoxConfig a Node hands to a newly created box,
// threading through the node's logger/metrics when the box config didn't
// set its own.
func (c NodeConfig) BoxConfigFor() BoxConfig {
	bc := c.Box
	if bc.QueueSize == 0 {
		bc.QueueSize = DefaultBoxConfig().QueueSize
	}
	if bc.CacheTTL == 0 {
		bc.CacheTTL = DefaultBoxConfig().CacheTTL
	}
	if bc.Logger == nil {
		bc.Logger = c.ResolvedLogger()
	}
	if bc.Metrics == nil {
		bc.Metrics = c.Metrics
	}
	return bc
}
