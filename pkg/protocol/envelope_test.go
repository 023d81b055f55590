package protocol

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestPreservesIDVerbatim(t *testing.T) {
	// The id's lexical form must survive the round trip bit-exactly:
	// quoted strings stay quoted, bare numbers stay bare, null stays null.
	for _, idToken := range []string{`"abc"`, `42`, `-7`, `3.14`, `null`} {
		t.Run(idToken, func(t *testing.T) {
			body := fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"method":"ping"}`, idToken)
			req, err := ParseRequest([]byte(body))
			require.NoError(t, err)
			require.NotNil(t, req.ID)
			assert.Equal(t, idToken, string(*req.ID))
			assert.False(t, req.IsNotification())

			resp, err := NewResultResponse(*req.ID, map[string]any{})
			require.NoError(t, err)
			raw, err := resp.Marshal()
			require.NoError(t, err)

			var echo struct {
				ID json.RawMessage `json:"id"`
			}
			require.NoError(t, json.Unmarshal(raw, &echo))
			assert.Equal(t, idToken, string(echo.ID))
		})
	}
}

func TestParseRequestWithoutIDIsNotification(t *testing.T) {
	req, err := ParseRequest([]byte(`{"jsonrpc":"2.0","method":"tools/list"}`))
	require.NoError(t, err)
	assert.True(t, req.IsNotification())
}

func TestParseRequestRejectsMalformedBody(t *testing.T) {
	_, err := ParseRequest([]byte(`not-json`))
	require.Error(t, err)
}

func TestResponseCarriesExactlyResultOrError(t *testing.T) {
	resp, err := NewResultResponse(json.RawMessage(`1`), map[string]any{"ok": true})
	require.NoError(t, err)
	raw, err := resp.Marshal()
	require.NoError(t, err)

	var probe map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &probe))
	assert.Contains(t, probe, "result")
	assert.NotContains(t, probe, "error")

	errResp := NewErrorResponse(json.RawMessage(`1`), CodeInternalError, "boom", nil)
	raw, err = errResp.Marshal()
	require.NoError(t, err)
	probe = nil // start from an empty map so keys from the first envelope don't linger
	require.NoError(t, json.Unmarshal(raw, &probe))
	assert.Contains(t, probe, "error")
	assert.NotContains(t, probe, "result")
}

func TestNewErrorResponseNilIDEncodesNull(t *testing.T) {
	resp := NewErrorResponse(nil, CodeParseError, "Parse error: bad", nil)
	raw, err := resp.Marshal()
	require.NoError(t, err)

	var probe struct {
		ID    json.RawMessage `json:"id"`
		Error *ErrorObject    `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &probe))
	assert.Equal(t, "null", string(probe.ID))
	require.NotNil(t, probe.Error)
	assert.Equal(t, CodeParseError, probe.Error.Code)
}

func TestNullIDReturnsFreshCopy(t *testing.T) {
	a := NullID()
	a[0] = 'x'
	assert.Equal(t, "null", string(NullID()))
}
