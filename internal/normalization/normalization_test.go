package normalization

import "testing"

func TestSanitizeTranscriptEmpty(t *testing.T) {
	if got := SanitizeTranscript(""); got != EmptyTranscriptPlaceholder {
		t.Fatalf("empty: want=%q got=%q", EmptyTranscriptPlaceholder, got)
	}
	if got := SanitizeTranscript("   "); got != EmptyTranscriptPlaceholder {
		t.Fatalf("whitespace: want=%q got=%q", EmptyTranscriptPlaceholder, got)
	}
	if got := SanitizeTranscript("\n\t \n"); got != EmptyTranscriptPlaceholder {
		t.Fatalf("mixed whitespace: want=%q got=%q", EmptyTranscriptPlaceholder, got)
	}
}

func TestSanitizeTranscriptLineEndings(t *testing.T) {
	got := SanitizeTranscript("line one\r\nline two\rline three")
	want := "line one\nline two\nline three"
	if got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
}

func TestSanitizeTranscriptCollapsesBlankLines(t *testing.T) {
	got := SanitizeTranscript("first\n\n\nsecond\n \t\nthird")
	want := "first\nsecond\nthird"
	if got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
}

func TestSanitizeTranscriptCollapsesHorizontalWhitespace(t *testing.T) {
	got := SanitizeTranscript("fever   for\t\ttwo  days")
	want := "fever for two days"
	if got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
}

func TestSanitizeTranscriptShorthandExpansions(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pt c/o fever x2 days", "Patient: Complains of fever x2 days"},
		{"pt: reports pain", "Patient: reports pain"},
		{"DR will review", "Doctor: will review"},
		{"dr: notes improvement", "Doctor: notes improvement"},
		{"hx of asthma", "History of asthma"},
		{"C/O headache", "Complains of headache"},
		// Word boundaries: no expansion inside larger words.
		{"Dept Ptx Hxy", "Dept Ptx Hxy"},
	}
	for _, tc := range cases {
		if got := SanitizeTranscript(tc.in); got != tc.want {
			t.Fatalf("SanitizeTranscript(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}

func TestSanitizeTranscriptIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"Pt c/o fever x2 days",
		"Dr saw pt.\r\n\r\nHx of asthma.\n\n\nC/O wheezing   today",
		"already clean text\nsecond line",
		EmptyTranscriptPlaceholder,
	}
	for _, in := range inputs {
		once := SanitizeTranscript(in)
		twice := SanitizeTranscript(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}
