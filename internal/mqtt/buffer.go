package mqtt

// outMsg is a serialized message held back while the broker is unreachable.
type outMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool

	// key marks snapshot messages: a newer message with the same key
	// replaces the queued one, only the latest status is worth replaying.
	key string
}

// outbox queues messages in publish order while disconnected. When full the
// oldest message is dropped. Not safe for concurrent use; the caller must
// synchronize.
type outbox struct {
	msgs     []outMsg
	capacity int
	dropped  bool
}

func newOutbox(capacity int) *outbox {
	return &outbox{msgs: make([]outMsg, 0, capacity), capacity: capacity}
}

// push queues msg. It reports true on the first drop since the last drain,
// so the caller can warn once per outage.
func (o *outbox) push(msg outMsg) bool {
	if msg.key != "" {
		for i := range o.msgs {
			if o.msgs[i].key == msg.key {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	first := false
	if len(o.msgs) == o.capacity {
		first = !o.dropped
		o.dropped = true
		copy(o.msgs, o.msgs[1:])
		o.msgs = o.msgs[:len(o.msgs)-1]
	}
	o.msgs = append(o.msgs, msg)
	return first
}

// drain returns the queued messages oldest first and empties the outbox.
func (o *outbox) drain() []outMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := make([]outMsg, len(o.msgs))
	copy(out, o.msgs)
	o.msgs = o.msgs[:0]
	o.dropped = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
