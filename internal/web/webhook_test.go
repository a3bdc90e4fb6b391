package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	bodies []string
	err    error
}

func (f *fakeHandler) ProcessNotification(_ context.Context, body []byte) error {
	f.bodies = append(f.bodies, string(body))
	return f.err
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhook_ValidSignature(t *testing.T) {
	h := &fakeHandler{}
	wh := NewWebhook(h, "s3cret", testLogger())
	srv := httptest.NewServer(wh.Router())
	defer srv.Close()

	body := `{"msg":{"tracking_number":"TN-1","tag":"InTransit"}}`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/aftership/notification", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Aftership-Hmac-Sha256", sign("s3cret", body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{body}, h.bodies)
}

func TestWebhook_LowercaseHeaderAccepted(t *testing.T) {
	h := &fakeHandler{}
	wh := NewWebhook(h, "s3cret", testLogger())
	srv := httptest.NewServer(wh.Router())
	defer srv.Close()

	body := `{"msg":{"tracking_number":"TN-1"}}`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/aftership/notification", strings.NewReader(body))
	require.NoError(t, err)
	req.Header["aftership-hmac-sha256"] = []string{sign("s3cret", body)}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, h.bodies, 1)
}

func TestWebhook_BadSignatureGets404(t *testing.T) {
	h := &fakeHandler{}
	wh := NewWebhook(h, "s3cret", testLogger())
	srv := httptest.NewServer(wh.Router())
	defer srv.Close()

	body := `{"msg":{"tracking_number":"TN-1"}}`
	for _, sig := range []string{"", sign("wrong-secret", body), "garbage"} {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/aftership/notification", strings.NewReader(body))
		require.NoError(t, err)
		if sig != "" {
			req.Header.Set("Aftership-Hmac-Sha256", sig)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
	require.Empty(t, h.bodies)
}

func TestWebhook_ProcessingFailureStill200(t *testing.T) {
	h := &fakeHandler{err: errors.New("boom")}
	wh := NewWebhook(h, "s3cret", testLogger())
	srv := httptest.NewServer(wh.Router())
	defer srv.Close()

	body := `not even json`
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/aftership/notification", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Aftership-Hmac-Sha256", sign("s3cret", body))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhook_Healthz(t *testing.T) {
	wh := NewWebhook(&fakeHandler{}, "s3cret", testLogger())
	srv := httptest.NewServer(wh.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	require.JSONEq(t, `{"status":"ok"}`, string(b))
}
