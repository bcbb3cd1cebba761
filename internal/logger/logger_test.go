package logger

import (
	"bytes"
	"fmt"
	"testing"
)

func TestRingKeepsNewestFirst(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Log("info", fmt.Sprintf("msg %d", i))
	}

	all := r.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if all[0].Text != "msg 4" || all[2].Text != "msg 2" {
		t.Fatalf("unexpected order: %+v", all)
	}

	recent := r.GetRecent(1)
	if len(recent) != 1 || recent[0].Text != "msg 4" {
		t.Fatalf("unexpected recent: %+v", recent)
	}
}

func TestLoggerFeedsRing(t *testing.T) {
	var out bytes.Buffer
	log, ring, err := New(Options{Level: "debug", Buffer: 10, Output: &out})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Debug().Msg("not kept")
	log.Warn().Str("address", "ana").Int("count", 2).Msg("profile conflict")

	msgs := ring.GetAll()
	if len(msgs) != 1 {
		t.Fatalf("expected debug lines to stay out of the ring, got %+v", msgs)
	}
	if msgs[0].Level != "warning" {
		t.Fatalf("expected warning level, got %q", msgs[0].Level)
	}
	if msgs[0].Text != "profile conflict address=ana count=2" {
		t.Fatalf("unexpected text %q", msgs[0].Text)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"message":"not kept"`)) {
		t.Fatalf("expected debug line on output, got %s", out.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
