package radio

// Callbacks is the capability through which a scheduled radio reports the
// outcome of a scheduled operation. Exactly one method is called per scheduled
// operation, always from within Run.
type Callbacks interface {
	// AdvertisingReceived is called when a valid response to an advertising PDU
	// was captured. data aliases the receive buffer given to the scheduling call;
	// a response longer than that buffer is reported as AdvertisingTimeout.
	AdvertisingReceived(data ReadBuffer)

	// AdvertisingTimeout is called when no valid response arrived, when the
	// response failed the CRC check or did not fit the receive buffer, or when
	// no receive window was requested.
	AdvertisingTimeout()

	// ConnectionTimeout is called when no valid PDU was received during a
	// connection event. The anchor is unchanged.
	ConnectionTimeout()

	// ConnectionEventEnd is called when a connection event closed after at least
	// one exchange. The anchor moved to the start of the first PDU received.
	ConnectionEventEnd()
}

// CallbackFuncs adapts plain functions to Callbacks. Nil members are ignored.
type CallbackFuncs struct {
	OnAdvertisingReceived func(ReadBuffer)
	OnAdvertisingTimeout  func()
	OnConnectionTimeout   func()
	OnConnectionEventEnd  func()
}

func (f CallbackFuncs) AdvertisingReceived(data ReadBuffer) {
	if f.OnAdvertisingReceived != nil {
		f.OnAdvertisingReceived(data)
	}
}

func (f CallbackFuncs) AdvertisingTimeout() {
	if f.OnAdvertisingTimeout != nil {
		f.OnAdvertisingTimeout()
	}
}

func (f CallbackFuncs) ConnectionTimeout() {
	if f.OnConnectionTimeout != nil {
		f.OnConnectionTimeout()
	}
}

func (f CallbackFuncs) ConnectionEventEnd() {
	if f.OnConnectionEventEnd != nil {
		f.OnConnectionEventEnd()
	}
}
