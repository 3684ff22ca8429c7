package slackify

// FormatOptions holds options for content formatting.
type FormatOptions struct {
	ChunkSize      int
	DiagramPreview bool
	Config         *RenderConfig
}

// Option is a function that configures FormatOptions.
type Option func(*FormatOptions)

// WithChunkSize overrides the prose chunk bound.
func WithChunkSize(size int) Option {
	return func(opts *FormatOptions) {
		opts.ChunkSize = size
	}
}

// WithDiagramPreview sets whether diagrams get a rendered image block.
func WithDiagramPreview(enable bool) Option {
	return func(opts *FormatOptions) {
		opts.DiagramPreview = enable
	}
}

// WithConfig sets a custom RenderConfig.
func WithConfig(config *RenderConfig) Option {
	return func(opts *FormatOptions) {
		opts.Config = config
	}
}

// defaultFormatOptions returns the default formatting options.
func defaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Config: DefaultConfig(),
	}
}

// applyOptions applies the given options and resolves them into a
// RenderConfig. The shared default config is copied, never modified.
func applyOptions(opts ...Option) *RenderConfig {
	options := defaultFormatOptions()
	for _, opt := range opts {
		opt(options)
	}

	base := options.Config
	if base == nil {
		base = DefaultConfig()
	}
	config := *base
	if config.Labels == nil {
		config.Labels = DefaultConfig().Labels
	}
	if options.ChunkSize > 0 {
		config.ChunkSize = options.ChunkSize
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if options.DiagramPreview {
		config.DiagramPreview = true
	}
	return &config
}
