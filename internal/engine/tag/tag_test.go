package tag

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"no tags", "no tags here", []string{}},
		{"single tag", "just #chilling today", []string{"chilling"}},
		{"duplicates collapse", "hello #Foo_1 world #Foo_1", []string{"Foo_1"}},
		{"multiple sorted", "eating #steak and #pizza for dinner", []string{"pizza", "steak"}},
		{"bare hash", "#", []string{}},
		{"hash before invalid rune", "#!invalid", []string{}},
		{"case sensitive", "#Go and #go differ", []string{"Go", "go"}},
		{"digits and underscore", "#under_score_42 works", []string{"under_score_42"}},
		{"tag cut at non-word rune", "ends here #tag! more", []string{"tag"}},
		{"adjacent hashes", "##double", []string{"double"}},
		{"empty text", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractIsPure(t *testing.T) {
	const text = "repeat #a #b #a"
	first := Extract(text)
	second := Extract(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated extraction differs: %v vs %v", first, second)
	}
}
