package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Which port does HTTPS use?",
			want: "Which port does HTTPS use?",
		},
		{
			name: "tags stripped",
			in:   "<p>What is <b>2+2</b>?</p>",
			want: "What is 2+2?",
		},
		{
			name: "script body removed entirely",
			in:   `before<script>alert("x")</script>after`,
			want: "beforeafter",
		},
		{
			name: "style body removed entirely",
			in:   "a<style>p{color:red}</style>b",
			want: "ab",
		},
		{
			name: "entities unescaped",
			in:   "x &lt; y &amp;&amp; y &gt; z",
			want: "x < y && y > z",
		},
		{
			name: "surrounding whitespace trimmed",
			in:   "  <div> padded </div>  ",
			want: "padded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeContent(tt.in))
		})
	}
}
