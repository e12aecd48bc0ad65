package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripThinkBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no block", "plain answer", "plain answer"},
		{"closed block", "<think>hmm</think>answer", "answer"},
		{"truncated open tag", "think>hmm</think>answer", "answer"},
		{"leading whitespace", "  \n<think>hmm</think>\nanswer", "answer"},
		{"nested blocks take the outermost close", "<think>a<think>b</think>c</think>answer", "answer"},
		{"unclosed ends at blank line", "<think>half a thought\n\nthe answer", "the answer"},
		{"unclosed eats everything", "<think>never stops", ""},
		{"mid-reply tag untouched", "answer with <think>aside</think> inline", "answer with <think>aside</think> inline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripThinkBlock(tt.in))
		})
	}
}
