package mqtt

import "go.uber.org/zap"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	// latestOnly messages replace an older buffered message on the same
	// topic; only the newest health snapshot is worth replaying.
	latestOnly bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	head     int // next write position
	count    int
	dropped  int  // messages dropped since last drain
	overflow bool // true if any message was dropped since last drain
	log      *zap.SugaredLogger
}

func newRingBuffer(capacity int, log *zap.SugaredLogger) *ringBuffer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
		log:      log,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if msg.latestOnly && r.replace(msg) {
		return
	}
	if r.count == r.capacity {
		if !r.overflow {
			r.log.Warnw("mqtt buffer full, dropping oldest", "capacity", r.capacity)
			r.overflow = true
		}
		r.dropped++
		// Overwrite oldest: head is already pointing at it
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
}

// replace overwrites a buffered latestOnly message on the same topic.
func (r *ringBuffer) replace(msg bufferedMsg) bool {
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		idx := (start + i) % r.capacity
		if r.buf[idx].latestOnly && r.buf[idx].topic == msg.topic {
			r.buf[idx] = msg
			return true
		}
	}
	return false
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	result := make([]bufferedMsg, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	if r.dropped > 0 {
		r.log.Warnw("mqtt buffer dropped messages while disconnected", "dropped", r.dropped)
	}
	r.count = 0
	r.head = 0
	r.dropped = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}
