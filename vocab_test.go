package miditok

import (
	"reflect"
	"testing"
)

func TestVocabFieldAppendOnly(t *testing.T) {
	f := newVocabField("Test")
	if i := f.Add("Pitch_60"); i != 0 {
		t.Fatalf("got index %d for the first label, expected 0", i)
	}
	if i := f.Add("Pitch_61"); i != 1 {
		t.Fatalf("got index %d for the second label, expected 1", i)
	}
	// re-adding never moves a label
	if i := f.Add("Pitch_60"); i != 0 {
		t.Fatalf("got index %d re-adding the first label, expected 0", i)
	}
	if f.Len() != 2 {
		t.Fatalf("got %d labels, expected 2", f.Len())
	}
	if i := f.IndexOf("Pitch_61"); i != 1 {
		t.Fatalf("got index %d, expected 1", i)
	}
	if i := f.IndexOf("Pitch_99"); i != -1 {
		t.Fatalf("got index %d for a missing label, expected -1", i)
	}
}

func TestVocabularySizes(t *testing.T) {
	var v Vocabulary
	v.addField("A", "x", "y")
	v.addField("B", "z")
	if !reflect.DeepEqual(v.Sizes(), []int{2, 1}) {
		t.Fatalf("got sizes %v, expected [2 1]", v.Sizes())
	}
	if i := v.Add(1, "w"); i != 1 {
		t.Fatalf("got index %d, expected 1", i)
	}
	if !reflect.DeepEqual(v.Sizes(), []int{2, 2}) {
		t.Fatalf("got sizes %v, expected [2 2]", v.Sizes())
	}
}
