package http

import "github.com/sirupsen/logrus"

// outbox serializes writes to one connection on its own goroutine. Once a write
// fails the outbox runs onFail and stops accepting messages instead of blocking
// the sender.
type outbox struct {
	send chan outboundMessage
	done chan struct{}
}

func newOutbox(write func(any) error, onFail func(), log logrus.FieldLogger) *outbox {
	o := &outbox{
		send: make(chan outboundMessage, 16),
		done: make(chan struct{}),
	}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				if onFail != nil {
					onFail()
				}
				return
			}
		}
	}()
	return o
}

// push queues msg and reports false when the writer has stopped.
func (o *outbox) push(msg outboundMessage) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

func (o *outbox) pushAll(msgs []outboundMessage) bool {
	for _, msg := range msgs {
		if !o.push(msg) {
			return false
		}
	}
	return true
}

// close flushes queued messages and waits for the writer to exit.
// No push may run concurrently with or after close.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}
