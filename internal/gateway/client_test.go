package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/access-reconciler/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.MediaServer{
		APIURL:     srv.URL,
		APIToken:   "test-token",
		ServerName: "media-main",
		APITimeout: 5 * time.Second,
	})
}

func TestClient_QueryAccess(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{name: "has access", status: http.StatusOK, body: `{"has_access": true}`, want: true},
		{name: "share exists without access", status: http.StatusOK, body: `{"has_access": false}`, want: false},
		{name: "no share", status: http.StatusNotFound, want: false},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "test-token", r.Header.Get("X-Api-Token"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			got, err := client.QueryAccess(context.Background(), "user@example.com")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClient_GrantAccess(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		want    GrantResult
		wantErr bool
	}{
		{name: "granted", status: http.StatusCreated, want: GrantGranted},
		{name: "already granted", status: http.StatusConflict, want: GrantAlreadyGranted},
		{name: "failed", status: http.StatusBadGateway, want: GrantFailed, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/shares", r.URL.Path)
				w.WriteHeader(tc.status)
			})

			got, err := client.GrantAccess(context.Background(), "user@example.com")
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_RevokeAccess(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		want    RevokeResult
		wantErr bool
	}{
		{name: "removed", status: http.StatusNoContent, want: RevokeRemoved},
		{name: "not found", status: http.StatusNotFound, want: RevokeNotFound},
		{name: "failed", status: http.StatusInternalServerError, want: RevokeFailed, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tc.status)
			})

			got, err := client.RevokeAccess(context.Background(), "user@example.com")
			assert.Equal(t, tc.want, got)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
