package radio

// Outcome identifies which Callbacks method reports a completed operation.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeAdvertisingReceived
	OutcomeAdvertisingTimeout
	OutcomeConnectionTimeout
	OutcomeConnectionEventEnd
)

var outcomeNames = [...]string{
	OutcomeNone:                "none",
	OutcomeAdvertisingReceived: "adv_received",
	OutcomeAdvertisingTimeout:  "adv_timeout",
	OutcomeConnectionTimeout:   "conn_timeout",
	OutcomeConnectionEventEnd:  "conn_end_event",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Deliver calls the Callbacks method matching o.
func (o Outcome) Deliver(cb Callbacks, data ReadBuffer) {
	switch o {
	case OutcomeAdvertisingReceived:
		cb.AdvertisingReceived(data)
	case OutcomeAdvertisingTimeout:
		cb.AdvertisingTimeout()
	case OutcomeConnectionTimeout:
		cb.ConnectionTimeout()
	case OutcomeConnectionEventEnd:
		cb.ConnectionEventEnd()
	}
}
