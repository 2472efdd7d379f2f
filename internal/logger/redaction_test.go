package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name   string
		input  string
		secret string
	}{
		{"bearer token", "Authorization: Bearer abc.def-123", "abc.def-123"},
		{"secret header", "X-Recbridge-Secret: hunter2", "hunter2"},
		{"shared secret key", `{"shared_secret":"hunter2"}`, "hunter2"},
		{"hmac signature", `{"signature":"` + strings.Repeat("ab", 32) + `"}`, strings.Repeat("ab", 32)},
		{"password", "password=letmein", "letmein"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Redact(tt.input)
			assert.NotContains(t, out, tt.secret)
			assert.Contains(t, out, "[REDACTED]")
		})
	}

	t.Run("leaves ordinary text alone", func(t *testing.T) {
		input := `{"message":"Recording started","path":"data/users/u1/recordings/a.wav"}`
		assert.Equal(t, input, r.Redact(input))
	})
}

func TestAddPattern(t *testing.T) {
	r := NewRedactor()

	require.NoError(t, r.AddPattern(`user-\d+`))
	assert.Equal(t, "id [REDACTED]", r.Redact("id user-42"))

	assert.Error(t, r.AddPattern(`(`))
}

func TestAddLiteral(t *testing.T) {
	r := NewRedactor()
	r.AddLiteral("p.a+s$")
	r.AddLiteral("")

	assert.Equal(t, "value [REDACTED] end", r.Redact("value p.a+s$ end"))
	assert.Equal(t, "pxaxs", r.Redact("pxaxs"))
}

func TestRedactingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	input := []byte("token Bearer abcdef123")
	n, err := w.Write(input)
	require.NoError(t, err)
	assert.Equal(t, len(input), n)
	assert.Equal(t, "token [REDACTED]", buf.String())
}
