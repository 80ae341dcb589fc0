package condition_test

import (
	"testing"

	"github.com/aretw0/botflow/pkg/condition"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		value   string
		op      condition.Operator
		compare string
		want    bool
	}{
		{"Hello World", condition.Contains, "world", true},
		{"Hello World", condition.NotContains, "world", false},
		{"Hello", condition.Equals, "Hello", true},
		{"Hello", condition.Equals, "hello", false},
		{"Hello", condition.NotEquals, "hello", true},
		{"Hello World", condition.StartsWith, "hello", true},
		{"Hello World", condition.EndsWith, "WORLD", true},
		{"abc", condition.Regex, "[", false},
		{"ABC-123", condition.Regex, `^abc-\d+$`, true},
		{"abc", condition.GreaterThan, "5", false},
		{"abc", condition.LessThan, "5", false},
		{"10", condition.GreaterThan, "5", true},
		{" 2.5 ", condition.LessThan, "3", true},
		{"5", condition.GreaterThan, "abc", false},
		{"   ", condition.IsEmpty, "", true},
		{"x", condition.IsEmpty, "", false},
		{"x", condition.IsNotEmpty, "", true},
		{"x", condition.Operator("between"), "y", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, condition.Evaluate(tt.value, tt.op, tt.compare))
		})
	}
}
