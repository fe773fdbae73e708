package validation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/teacher"
)

func result(output string) *teacher.Result {
	return &teacher.Result{SessionID: "s1", Success: true, FinalOutput: output}
}

func codeOutput(n int) string {
	code := "```python\nprint('hello')\n```\n"
	return code + strings.Repeat("a", n-len(code))
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	v := New(config.ValidationConfig{})

	tests := []struct {
		name         string
		res          *teacher.Result
		passed       bool
		wantWarning  string
		wantError    string
		checksPassed int
	}{
		{name: "substantial output with code", res: result(codeOutput(600)), passed: true, checksPassed: 4},
		{name: "short output warns", res: result(codeOutput(300)), passed: true, wantWarning: "relatively short (300 chars)", checksPassed: 4},
		{name: "too short fails", res: result(codeOutput(100)), wantError: "output too short (100 chars)", checksPassed: 3},
		{name: "no code warns", res: result(strings.Repeat("plain words ", 60)), passed: true, wantWarning: "no code blocks or commands", checksPassed: 4},
		{name: "refusal warns", res: result(codeOutput(600) + "\nUnfortunately I cannot verify this."), passed: true, wantWarning: "incomplete solution", checksPassed: 4},
		{name: "unsuccessful session fails", res: &teacher.Result{FinalOutput: codeOutput(600)}, wantError: "did not complete", checksPassed: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Validate(ctx, tt.res)
			assert.Equal(t, tt.passed, r.Passed)
			assert.Equal(t, 4, r.ChecksRun)
			assert.Equal(t, tt.checksPassed, r.ChecksPassed)
			if tt.wantWarning != "" {
				require.NotEmpty(t, r.Warnings)
				assert.Contains(t, strings.Join(r.Warnings, "\n"), tt.wantWarning)
			}
			if tt.wantError != "" {
				require.NotEmpty(t, r.Errors)
				assert.Contains(t, strings.Join(r.Errors, "\n"), tt.wantError)
			}
		})
	}
}

func TestReportErr(t *testing.T) {
	assert.NoError(t, Report{Passed: true}.Err())

	err := Report{Errors: []string{"output too short (10 chars), may be incomplete"}}.Err()
	require.Error(t, err)
	assert.True(t, forgeerr.Is(err, forgeerr.KindValidation))
	assert.Contains(t, err.Error(), "output too short")
}

func TestNewThresholds(t *testing.T) {
	v := New(config.ValidationConfig{MinChars: 100, WarnChars: 50})
	r := v.Validate(context.Background(), result(codeOutput(120)))
	assert.True(t, r.Passed)
	assert.Empty(t, r.Warnings)

	v = New(config.ValidationConfig{MinChars: 100, WarnChars: 400})
	assert.Equal(t, 100, v.warnChars)
}
