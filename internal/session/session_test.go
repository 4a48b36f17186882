package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	rec := Record{Email: "ada@example.com", Name: "Ada", AuthMethod: AuthMethodIDToken}
	value, err := Encode(rec)
	require.NoError(t, err)
	assert.NotContains(t, value, "=")

	got, err := Decode(value)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = Encode(Record{})
	assert.Error(t, err)
}

func TestDecode_Corrupt(t *testing.T) {
	for name, value := range map[string]string{
		"not base64":    "***",
		"not json":      "bm90IGpzb24",
		"missing email": "eyJuYW1lIjoiQWRhIn0",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(value)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestSaveLoadClear(t *testing.T) {
	rec := Record{Email: "ada@example.com", AuthMethod: AuthMethodOAuth}

	w := httptest.NewRecorder()
	require.NoError(t, Save(w, rec, true))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got, err := Load(req)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)

	w = httptest.NewRecorder()
	Clear(w)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, CookieName, cleared[0].Name)
	assert.Less(t, cleared[0].MaxAge, 0)
}
