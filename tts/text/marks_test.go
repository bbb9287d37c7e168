package text

import "testing"

func TestMaskMarks(t *testing.T) {
	in := `one <mark name="a"/>two <mark name='b' />`
	masked, marks := MaskMarks(in)

	if len(masked) != len(in) {
		t.Fatalf("masked length %d, want %d", len(masked), len(in))
	}
	if len(marks) != 2 {
		t.Fatalf("got %d marks, want 2", len(marks))
	}
	if marks[0].Name != "a" || marks[0].Start != 4 {
		t.Errorf("mark 0 = %+v", marks[0])
	}
	if marks[1].Name != "b" {
		t.Errorf("mark 1 = %+v", marks[1])
	}

	words := Words(masked)
	if len(words) != 2 || masked[words[1].Start:words[1].End] != "two" {
		t.Errorf("words of masked text = %+v", words)
	}

	if !HasMarks(in) || HasMarks("no tags <b>here</b>") {
		t.Error("HasMarks misreports")
	}

	plain, none := MaskMarks("plain")
	if plain != "plain" || none != nil {
		t.Errorf("MaskMarks(plain) = %q, %v", plain, none)
	}
}
