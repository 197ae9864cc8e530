package cognito

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Redacted(t *testing.T) {
	t.Parallel()
	tk := Token{
		AccessToken:  "access-token-value",
		IdToken:      "id-token-value",
		RefreshToken: "refresh-token-value",
	}
	tests := []struct {
		name     string
		v        fmt.Stringer
		redacted string
	}{
		{name: "access_token", v: tk.AccessToken, redacted: RedactedAccessToken},
		{name: "id_token", v: tk.IdToken, redacted: RedactedIdToken},
		{name: "refresh_token", v: tk.RefreshToken, redacted: RedactedRefreshToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.redacted, tt.v.String())
			assert.Equal(tt.redacted, fmt.Sprintf("%v", tt.v))
		})
	}

	b, err := json.Marshal(tk)
	require.NoError(t, err)
	for _, secret := range []string{"access-token-value", "id-token-value", "refresh-token-value"} {
		assert.NotContains(t, string(b), secret)
	}
	assert.NotContains(t, fmt.Sprintf("%+v", tk), "token-value")
}
