package api

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gpunexus/gpuf/internal/engine"
)

func TestResultStoreSaveGet(t *testing.T) {
	t.Parallel()

	s := NewResultStore(time.Minute)
	defer s.Close()

	res := engine.GenerationResult{ID: uuid.New(), Text: "hi"}
	s.Save(res)
	got, ok := s.Get(res.ID)
	if !ok || got.Text != "hi" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if _, ok := s.Get(uuid.New()); ok {
		t.Fatalf("unknown id found")
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestResultStoreExpires(t *testing.T) {
	t.Parallel()

	s := NewResultStore(time.Millisecond)
	defer s.Close()

	res := engine.GenerationResult{ID: uuid.New()}
	s.Save(res)
	time.Sleep(10 * time.Millisecond)
	if _, ok := s.Get(res.ID); ok {
		t.Fatalf("expired result still returned")
	}
}
