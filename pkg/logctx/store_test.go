package logctx

import (
	"testing"

	"github.com/predatorx7/logtopus/pkg/model"
)

func TestStore_Operations(t *testing.T) {
	s := New()

	s.Set(model.Fields{"app": "web", "env": "dev"})
	s.Add(model.Fields{"env": "prod", "region": "eu"})

	got := s.Get()
	if got["app"] != "web" || got["env"] != "prod" || got["region"] != "eu" {
		t.Errorf("Unexpected context after Set+Add: %v", got)
	}

	s.Remove("app", "missing")
	if _, ok := s.Get()["app"]; ok {
		t.Error("Expected app to be removed")
	}
	if s.Len() != 2 {
		t.Errorf("Expected 2 keys, got %d", s.Len())
	}

	s.Set(model.Fields{"only": true})
	if s.Len() != 1 {
		t.Errorf("Set should replace all keys, got %v", s.Get())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Expected empty store after Clear, got %v", s.Get())
	}
}

func TestStore_GetIsACopy(t *testing.T) {
	s := New()
	s.Add(model.Fields{"a": 1})

	snapshot := s.Get()
	snapshot["a"] = 99
	snapshot["b"] = 2

	got := s.Get()
	if got["a"] != 1 {
		t.Errorf("Store was mutated through Get: %v", got)
	}
	if _, ok := got["b"]; ok {
		t.Error("Store gained a key through Get")
	}
}

func TestDefault(t *testing.T) {
	Reset()
	defer Reset()

	a := Default()
	if Default() != a {
		t.Fatal("Default should return the same store until Reset")
	}
	a.Add(model.Fields{"k": "v"})

	Reset()
	if Default() == a {
		t.Error("Reset should drop the process store")
	}
	if Default().Len() != 0 {
		t.Error("Fresh default store should be empty")
	}
}
