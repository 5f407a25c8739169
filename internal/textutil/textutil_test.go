package textutil

import (
	"math"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "simple words", input: "Hello World", want: []string{"hello", "world"}},
		{name: "drops single runes", input: "a to I go", want: []string{"to", "go"}},
		{name: "punctuation", input: "Budget, review! Q3?", want: []string{"budget", "review", "q3"}},
		{name: "non latin", input: "Grüße, Привет мир", want: []string{"grüße", "привет", "мир"}},
		{name: "empty", input: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFingerprintTerms(t *testing.T) {
	if NewFingerprint("") != nil {
		t.Fatal("expected nil fingerprint for empty text")
	}
	var nilFP *Fingerprint
	if nilFP.Terms() != 0 {
		t.Fatal("expected nil fingerprint to report zero terms")
	}
	fp := NewFingerprint("hello hello world world world")
	if fp.Terms() != 2 {
		t.Fatalf("expected 2 distinct terms, got %d", fp.Terms())
	}
	if math.Abs(fp.norm-math.Sqrt(13)) > 1e-9 {
		t.Fatalf("unexpected norm %v", fp.norm)
	}
}

func TestCosine(t *testing.T) {
	a := NewFingerprint("quarterly budget review meeting")
	if got := Cosine(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical fingerprints = %v, want 1", got)
	}
	b := NewFingerprint("holiday photos beach")
	if got := Cosine(a, b); got != 0 {
		t.Fatalf("disjoint fingerprints = %v, want 0", got)
	}
	c := NewFingerprint("budget meeting notes")
	if Cosine(a, c) != Cosine(c, a) {
		t.Fatal("expected symmetric similarity")
	}
	if Cosine(nil, a) != 0 {
		t.Fatal("expected nil fingerprint to score 0")
	}
}

func TestIndexSearchRanksByRelevance(t *testing.T) {
	ix := NewIndex([]string{
		"weekly standup: deploy went fine, nothing blocked",
		"budget review for the marketing budget and the hiring budget",
		"",
		"interview about the marketing launch",
	})
	if ix.Len() != 4 {
		t.Fatalf("expected 4 documents, got %d", ix.Len())
	}

	matches := ix.Search("marketing budget")
	if len(matches) != 2 {
		t.Fatalf("expected two matches, got %+v", matches)
	}
	if matches[0].Position != 1 || matches[1].Position != 3 {
		t.Fatalf("unexpected ranking %+v", matches)
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatalf("expected descending scores, got %+v", matches)
	}

	if got := ix.Search("volcano"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
	if got := ix.Search("!!"); got != nil {
		t.Fatalf("expected nil for tokenless query, got %+v", got)
	}
}

func TestIndexSearchSingleDocument(t *testing.T) {
	matches := NewIndex([]string{"only budget talk"}).Search("budget")
	if len(matches) != 1 || matches[0].Score <= 0 {
		t.Fatalf("expected single document to match, got %+v", matches)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  meeting.mp3 ":    "meeting.mp3",
		"a/b\\c:d*e.wav":    "a-b-c-d-e.wav",
		`what?"<>|.m4a`:     "what.m4a",
		"tab\tname\x00.ogg": "tabname.ogg",
		"..":                "",
		"":                  "",
	}
	for input, want := range cases {
		if got := SanitizeFileName(input); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("  one two\nthree\tfour "); got != 4 {
		t.Fatalf("WordCount = %d, want 4", got)
	}
}
