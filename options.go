package searchtype

import (
	"runtime"
)

// Option configures resolution.
type Option func(*Options)

// Options holds configuration shared by the resolver, the catalog and the
// batch worker pool.
type Options struct {
	// FHIRVersion selects the core package loaded by the CLI.
	FHIRVersion FHIRVersion

	// CacheSize bounds the number of class mappings kept by the catalog.
	CacheSize int

	// ExpressionCacheSize bounds the number of compiled expressions kept by expr.Compile.
	ExpressionCacheSize int

	// WorkerCount is the number of goroutines used for batch resolution.
	WorkerCount int

	// StrictSyntax checks every expression with the FHIRPath compiler
	// before it is parsed into a resolvable tree.
	StrictSyntax bool

	// LogSink receives resolved path strings. Nil means the package logger
	// at debug level.
	LogSink func(string)
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		FHIRVersion:         R4,
		CacheSize:           2000,
		ExpressionCacheSize: 2000,
		WorkerCount:         runtime.NumCPU(),
		StrictSyntax:        false,
	}
}

// Apply applies opts on top of the receiver and returns it.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFHIRVersion sets the FHIR version.
func WithFHIRVersion(v FHIRVersion) Option {
	return func(o *Options) {
		o.FHIRVersion = v
	}
}

// WithCacheSize sets the class mapping cache size.
func WithCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.CacheSize = size
		}
	}
}

// WithExpressionCacheSize sets the compiled expression cache size.
func WithExpressionCacheSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ExpressionCacheSize = size
		}
	}
}

// WithWorkerCount sets the number of batch workers.
// Values <= 0 fall back to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count <= 0 {
			count = runtime.NumCPU()
		}
		o.WorkerCount = count
	}
}

// WithStrictSyntax enables the FHIRPath compiler syntax check.
func WithStrictSyntax(enable bool) Option {
	return func(o *Options) {
		o.StrictSyntax = enable
	}
}

// WithLogSink sets the diagnostic sink for resolved paths.
func WithLogSink(sink func(string)) Option {
	return func(o *Options) {
		o.LogSink = sink
	}
}
