package extractjson

import (
	"testing"

	"github.com/google/uuid"

	"github.com/ernie/starforge-extract/internal/value"
)

func TestMarshal_Object(t *testing.T) {
	id := uuid.New()
	v := value.Object("SHealthComponentParams", map[string]value.Value{
		"Health": value.Scalarv(float64(1000)),
		"name":   value.String("hull"),
		"owner":  value.Guid(id),
	})

	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	m, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["__type"] != "SHealthComponentParams" {
		t.Errorf("__type = %v, want SHealthComponentParams", m["__type"])
	}
	if m["Health"] != float64(1000) {
		t.Errorf("Health = %v, want 1000", m["Health"])
	}
	if m["owner"] != id.String() {
		t.Errorf("owner = %v, want %v", m["owner"], id.String())
	}
}

func TestMarshal_NullAndArray(t *testing.T) {
	v := value.Array([]value.Value{value.Null, value.Scalarv(float64(1)), value.String("x")})
	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `[null,1,"x"]` {
		t.Errorf("Marshal array = %s, want [null,1,\"x\"]", b)
	}
}

func TestMarshal_SkippedObject(t *testing.T) {
	v := value.SkippedObject("EntityClassDefinition")
	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	m, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["__skipped"] != true {
		t.Errorf("__skipped = %v, want true", m["__skipped"])
	}
}

func TestMarshal_Reference(t *testing.T) {
	id := uuid.New()
	v := value.Ref(id)
	b, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	m, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["__ref"] != id.String() {
		t.Errorf("__ref = %v, want %v", m["__ref"], id.String())
	}
}
