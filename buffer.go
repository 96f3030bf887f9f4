package radio

// WriteBuffer is transmit data owned by the caller. It must stay valid and
// unmodified from the scheduling call until the corresponding callback fired.
type WriteBuffer []byte

// ReadBuffer is receive space owned by the caller. The radio writes received
// data into it. An empty ReadBuffer means "do not receive".
type ReadBuffer []byte

// Empty reports whether no receive window should be opened.
func (b ReadBuffer) Empty() bool { return len(b) == 0 }
