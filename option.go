package radio

// RadioOption is implemented by radios that accept configuration options.
type RadioOption interface {
	SetBufferSizes(BufferSizes) error
	SetReceiveSlack(DeltaTime) error
	SetConnectionRetries(int) error
	SetLogger(Logger) error
	SetErrorHandler(handler func(error)) error
}

// An Option is a configuration function, which configures the radio.
type Option func(RadioOption) error

// OptBufferSizes sets the transmit and receive capacity of the packet buffer.
func OptBufferSizes(s BufferSizes) Option {
	return func(opt RadioOption) error {
		return opt.SetBufferSizes(s)
	}
}

// OptReceiveSlack sets how early the receiver is switched on before, and how
// long it stays on after, the expected start of a response.
func OptReceiveSlack(d DeltaTime) Option {
	return func(opt RadioOption) error {
		return opt.SetReceiveSlack(d)
	}
}

// OptConnectionRetries sets how many further connection intervals a connection
// event is retried before ConnectionTimeout is reported. The default is 0.
func OptConnectionRetries(n int) Option {
	return func(opt RadioOption) error {
		return opt.SetConnectionRetries(n)
	}
}

// OptLogger overrides the logger.
func OptLogger(l Logger) Option {
	return func(opt RadioOption) error {
		return opt.SetLogger(l)
	}
}

// OptErrorHandler sets a handler for driver errors raised in the completion
// context. Such errors end the pending operation with a timeout outcome.
func OptErrorHandler(handler func(error)) Option {
	return func(opt RadioOption) error {
		return opt.SetErrorHandler(handler)
	}
}
