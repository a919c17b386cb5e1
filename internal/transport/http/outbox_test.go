package http

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestOutboxDeliversInOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []string
		logs = logrus.New()
	)
	logs.SetOutput(io.Discard)
	out := newOutbox(func(v any) error {
		mu.Lock()
		got = append(got, v.(outboundMessage).Type)
		mu.Unlock()
		return nil
	}, nil, logs)

	if !out.pushAll([]outboundMessage{{Type: "state"}, {Type: "result"}, {Type: "state"}}) {
		t.Fatalf("expected messages accepted")
	}
	out.close()
	if len(got) != 3 || got[0] != "state" || got[1] != "result" || got[2] != "state" {
		t.Fatalf("unexpected delivery %v", got)
	}
}

func TestOutboxStopsAcceptingAfterWriteError(t *testing.T) {
	logs := logrus.New()
	logs.SetOutput(io.Discard)
	failed := make(chan struct{})
	out := newOutbox(func(any) error {
		return errors.New("broken pipe")
	}, func() { close(failed) }, logs)

	out.push(outboundMessage{Type: "state"})
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected failure hook to run")
	}

	// Far more messages than the queue holds: none of them may block.
	done := make(chan bool)
	go func() {
		accepted := true
		for i := 0; i < 100; i++ {
			accepted = out.push(outboundMessage{Type: "tick"})
		}
		done <- accepted
	}()
	select {
	case accepted := <-done:
		if accepted {
			t.Fatalf("expected push to report the stopped writer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("push blocked after the writer stopped")
	}
	out.close()
}
