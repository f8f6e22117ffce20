package mqtt

import "log"

// pendingMsg is a serialized publish held back while the broker is unreachable.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the most recent messages published while disconnected,
// oldest first. Not safe for concurrent use; RealPublisher guards it.
type ringBuffer struct {
	buf     []pendingMsg
	head    int // next write position
	count   int
	dropped int // overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]pendingMsg, capacity)}
}

// push stores msg, overwriting the oldest entry when full.
func (r *ringBuffer) push(msg pendingMsg) {
	capacity := len(r.buf)
	if r.count == capacity {
		if r.dropped == 0 {
			log.Printf("mqtt: offline buffer full (%d messages), dropping oldest", capacity)
		}
		r.dropped++
	} else {
		r.count++
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % capacity
}

// drain returns all buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drain() []pendingMsg {
	if r.count == 0 {
		return nil
	}

	capacity := len(r.buf)
	start := (r.head - r.count + capacity) % capacity
	out := make([]pendingMsg, r.count)
	for i := range out {
		out[i] = r.buf[(start+i)%capacity]
	}

	r.head, r.count, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
