package notify

import (
	"testing"
	"time"
)

func TestBoard_ShowAndAcknowledge(t *testing.T) {
	b := NewBoard()
	ch := b.AddListener()
	defer b.RemoveListener(ch)

	b.ShowDuplicate(DuplicateWarning{Message: "Face already enrolled for E220150", AdmissionNo: "E220150"})

	w, ok := b.Pending()
	if !ok {
		t.Fatal("expected a pending warning")
	}
	if w.Message != "Face already enrolled for E220150" {
		t.Errorf("expected verbatim message, got %q", w.Message)
	}
	if w.Title() != "Face Already Enrolled!" {
		t.Errorf("unexpected title %q", w.Title())
	}
	if w.RaisedAt.IsZero() {
		t.Error("expected RaisedAt to be stamped")
	}

	select {
	case ev := <-ch:
		if ev.Type != "raised" || ev.Warning == nil {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected raised event")
	}

	if !b.Acknowledge() {
		t.Error("expected Acknowledge to report a pending warning")
	}
	if _, ok := b.Pending(); ok {
		t.Error("expected no pending warning after acknowledge")
	}
	if b.Acknowledge() {
		t.Error("expected second Acknowledge to report nothing pending")
	}

	select {
	case ev := <-ch:
		if ev.Type != "acknowledged" {
			t.Errorf("expected acknowledged event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected acknowledged event")
	}
}

func TestBoard_FullListenerDoesNotBlock(t *testing.T) {
	b := NewBoard()
	ch := b.AddListener()

	for range listenerBuffer * 3 {
		b.ShowDuplicate(DuplicateWarning{Message: "dup"})
	}

	b.RemoveListener(ch)
	if _, open := <-ch; !open {
		t.Fatal("expected buffered events to remain readable")
	}
}

func TestNotifierFunc(t *testing.T) {
	var got string
	var n Notifier = NotifierFunc(func(w DuplicateWarning) { got = w.Message })
	n.ShowDuplicate(DuplicateWarning{Message: "hello"})
	if got != "hello" {
		t.Errorf("expected func to receive warning, got %q", got)
	}
}
