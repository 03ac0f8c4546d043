package structtag

import (
	"testing"
)

type widget struct {
	Name  string `tson:"name"`
	Count int    `tson:"count"`
}

func TestNewEntryFoldUnfoldRoundTrip(t *testing.T) {
	entry := NewEntry("Widget", widget{})

	if !entry.Test(widget{Name: "a", Count: 1}) {
		t.Fatal("Test() should match a widget value")
	}
	if entry.Test("not a widget") {
		t.Fatal("Test() should not match an unrelated type")
	}

	folded, err := entry.Sync.Serialize(widget{Name: "bolt", Count: 4})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	m, ok := folded.(map[string]interface{})
	if !ok {
		t.Fatalf("Serialize() = %T, want map", folded)
	}
	if m["name"] != "bolt" {
		t.Fatalf("name = %v, want bolt", m["name"])
	}

	back, err := entry.Sync.Deserialize(folded)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	w, ok := back.(widget)
	if !ok {
		t.Fatalf("Deserialize() = %T, want widget", back)
	}
	if w.Name != "bolt" || w.Count != 4 {
		t.Fatalf("Deserialize() = %+v, want {bolt 4}", w)
	}
}

func TestNewEntryDeserializeRejectsNonObjectPayload(t *testing.T) {
	entry := NewEntry("Widget", widget{})
	if _, err := entry.Sync.Deserialize("not-an-object"); err == nil {
		t.Fatal("expected an error for a non-object payload")
	}
}

func TestFoldReturnsIndependentCopy(t *testing.T) {
	entry := NewEntry("Widget", widget{})

	w := widget{Name: "original", Count: 1}
	folded, err := entry.Sync.Serialize(w)
	if err != nil {
		t.Fatal(err)
	}
	w.Name = "mutated"

	m := folded.(map[string]interface{})
	if m["name"] != "original" {
		t.Fatalf("name = %v, want original (fold must defensively copy)", m["name"])
	}
}
