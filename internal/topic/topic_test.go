package topic

import (
	"testing"

	"github.com/shandysiswandi/txmq/internal/serde"
)

type greeting struct {
	Text string
}

func TestBuilderRequiresSerializer(t *testing.T) {
	// Arrange
	b := NewBuilder[greeting](nil).Name("greetings")

	// Act
	_, err := b.Build()

	// Assert
	if err == nil {
		t.Fatalf("expected error when no serializer is configured")
	}
}

func TestBuilderBuildsConfigWithKeyAndHeaders(t *testing.T) {
	// Arrange
	ser := serde.NewJSONSerializer[greeting]("greeting")
	b := NewBuilder[greeting](nil).
		Name("greetings").
		KeyFrom(func(g greeting) *string { return &g.Text }).
		Header("x-schema", func(g greeting) string { return "v1" }).
		Serializer(ser)

	// Act
	cfg, err := b.Build()

	// Assert
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.Name != "greetings" {
		t.Fatalf("unexpected name: %s", cfg.Name)
	}
	if cfg.Serializer() == nil {
		t.Fatalf("expected serializer to be set")
	}
	if len(cfg.StaticHeaderFuncs()) != 1 {
		t.Fatalf("expected 1 header func, got %d", len(cfg.StaticHeaderFuncs()))
	}
	keyFn := cfg.KeyFunc()
	if keyFn == nil {
		t.Fatalf("expected a non-nil KeyFunc when KeyFrom is set")
	}
	if got := keyFn(greeting{Text: "hi"}); got != "hi" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	// Arrange
	r := NewRegistry()
	ser := serde.NewJSONSerializer[greeting]("greeting")
	cfg, err := NewBuilder[greeting](nil).Name("greetings").Serializer(ser).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Act
	Register(r, cfg)
	got, ok := Lookup[greeting](r)

	// Assert
	if !ok {
		t.Fatalf("expected Lookup to find the registered config")
	}
	if got.Name != "greetings" {
		t.Fatalf("unexpected name: %s", got.Name)
	}
}

func TestRegistryLookupMissReportsNotFound(t *testing.T) {
	// Arrange
	r := NewRegistry()

	// Act
	_, ok := Lookup[greeting](r)

	// Assert
	if ok {
		t.Fatalf("expected Lookup miss for an unregistered type")
	}
}
