package ingestion_test

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabfab/grant-drafter/ingestion"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "hyphen wrap", in: "wel- come", want: "welcome"},
		{name: "hyphen across newline", in: "innov-\n  ation grant", want: "innovation grant"},
		{name: "whitespace runs", in: "a  b\t\tc\n\n\nd", want: "a b c d"},
		{name: "disallowed characters", in: "Hello,   world!  #tag (2024)", want: "Hello, world! tag 2024"},
		{name: "non ascii dropped", in: "café – naïve", want: "caf nave"},
		{name: "trim", in: "  \n padded \t ", want: "padded"},
		{name: "empty", in: "", want: ""},
		{name: "only symbols", in: "@#$%^&*()", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ingestion.Normalize(tc.in))
		})
	}
}

var (
	doubleSpace = regexp.MustCompile(`\s{2,}`)
	disallowed  = regexp.MustCompile(`[^A-Za-z0-9.,!?\s]`)
)

func TestNormalizeProperties(t *testing.T) {
	alphabet := []rune("ab Z9.,!?-\t\n\r#@éü–()  -\n")
	rng := rand.New(rand.NewSource(42))

	inputs := []string{
		"wel- come", "a - b", "x-  -y", "- -", "a-\n-b", "co- op- eration",
		"Grant  Guide lines", "£1,000 – €2,000",
	}
	for i := 0; i < 500; i++ {
		var sb strings.Builder
		n := rng.Intn(40)
		for j := 0; j < n; j++ {
			sb.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		inputs = append(inputs, sb.String())
	}

	for _, in := range inputs {
		out := ingestion.Normalize(in)
		if doubleSpace.MatchString(out) {
			t.Fatalf("Normalize(%q) = %q contains a whitespace run", in, out)
		}
		if disallowed.MatchString(out) {
			t.Fatalf("Normalize(%q) = %q contains a disallowed character", in, out)
		}
		if again := ingestion.Normalize(out); again != out {
			t.Fatalf("Normalize not idempotent for %q: %q then %q", in, out, again)
		}
	}
}
