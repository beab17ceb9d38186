package llm

import (
	"errors"
	"testing"
)

func TestDecodeJSONCleanInput(t *testing.T) {
	var facts []string
	if err := DecodeJSON(`["a", "b"]`, &facts); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if len(facts) != 2 || facts[0] != "a" {
		t.Errorf("unexpected facts: %v", facts)
	}
}

func TestDecodeJSONStripsFencesAndProse(t *testing.T) {
	raw := "Here are the facts:\n```json\n{\"facts\": [\"x\"]}\n```\nHope that helps!"
	var out struct {
		Facts []string `json:"facts"`
	}
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if len(out.Facts) != 1 || out.Facts[0] != "x" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestDecodeJSONTrailingComma(t *testing.T) {
	var facts []string
	if err := DecodeJSON(`["a", "b",]`, &facts); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("expected 2 facts, got %v", facts)
	}
}

func TestDecodeJSONTruncatedMidObject(t *testing.T) {
	raw := `[{"fact": "complete one"}, {"fact": "cut off mid`
	var out []struct {
		Fact string `json:"fact"`
	}
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if len(out) != 1 || out[0].Fact != "complete one" {
		t.Errorf("expected the complete object only, got %v", out)
	}
}

func TestDecodeJSONTruncatedStringArrayDropsPartial(t *testing.T) {
	raw := `["fact one", "fact two", "cut off mid`
	var facts []string
	if err := DecodeJSON(raw, &facts); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if len(facts) != 2 || facts[0] != "fact one" || facts[1] != "fact two" {
		t.Errorf("expected the two complete facts, got %v", facts)
	}
}

func TestDecodeJSONUnterminatedStringLastElement(t *testing.T) {
	raw := `{"overview": "the service stores memories`
	var out struct {
		Overview string `json:"overview"`
	}
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if out.Overview == "" {
		t.Error("expected recovered overview text")
	}
}

func TestDecodeJSONUnrecoverable(t *testing.T) {
	var out map[string]any
	err := DecodeJSON("no json here at all", &out)
	if !errors.Is(err, ErrUnrecoverable) {
		t.Errorf("expected ErrUnrecoverable, got %v", err)
	}
}
