package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIntent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		norm    string
	}{
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   \t\n", wantErr: true},
		{name: "no letters", raw: "123 !!!", wantErr: true},
		{name: "single word", raw: "deploy", wantErr: true},
		{name: "ok", raw: "run a web app", norm: "run a web app"},
		{name: "normalizes case and spacing", raw: "  Run   A  Web App ", norm: "run a web app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := ValidateIntent(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrIntentTooVague)
				assert.False(t, intent.Valid)
				return
			}
			require.NoError(t, err)
			assert.True(t, intent.Valid)
			assert.Equal(t, tt.norm, intent.Normalized)
			assert.Equal(t, tt.raw, intent.Raw)
		})
	}
}
