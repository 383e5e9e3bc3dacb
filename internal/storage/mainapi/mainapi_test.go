package mainapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grakai/pitchside/internal/log"
	"github.com/grakai/pitchside/internal/model"
	"github.com/grakai/pitchside/internal/storage"
	"github.com/grakai/pitchside/internal/storage/mainapi"
)

var (
	_ storage.StatusRepository = &mainapi.Repository{}
	_ storage.ClipRepository   = &mainapi.Repository{}
)

type recordedRequest struct {
	Method  string
	Path    string
	Body    map[string]string
	XSRF    string
	Service string
	Cookie  string
}

func newServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := recordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			XSRF:    r.Header.Get("x-xsrf-token"),
			Service: r.Header.Get("x-local-service-key"),
		}
		if ck, err := r.Cookie("token"); err == nil {
			rr.Cookie = ck.Value
		}
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&rr.Body)
		}
		reqs = append(reqs, rr)

		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newRepo(t *testing.T, baseURL string) *mainapi.Repository {
	t.Helper()
	repo, err := mainapi.NewRepository(mainapi.RepositoryConfig{BaseURL: baseURL + "/", ServiceKey: "svc-key", Logger: log.Noop})
	require.NoError(t, err)
	return repo
}

func credsCtx() context.Context {
	return mainapi.WithCredentials(context.Background(), mainapi.Credentials{
		XSRFToken: "xsrf-1",
		Cookies:   map[string]string{"token": "jwt-1"},
	})
}

func TestGetStatus(t *testing.T) {
	tests := map[string]struct {
		status    int
		body      string
		expStatus model.SessionStatus
		expErr    bool
	}{
		"Processing should be processing.": {
			status:    http.StatusOK,
			body:      `{"status":"processing"}`,
			expStatus: model.SessionStatusProcessing,
		},
		"Active should be idle.": {
			status:    http.StatusOK,
			body:      `{"status":"active"}`,
			expStatus: model.SessionStatusIdle,
		},
		"A server error should fail.": {
			status: http.StatusInternalServerError,
			body:   `{"error":"boom"}`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			srv, reqs := newServer(t, test.status, test.body)
			repo := newRepo(t, srv.URL)

			status, err := repo.GetStatus(credsCtx(), "proj-1")
			if test.expErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.Equal(test.expStatus, status)

			require.Len(t, *reqs, 1)
			req := (*reqs)[0]
			assert.Equal(http.MethodGet, req.Method)
			assert.Equal("/projects/proj-1/status", req.Path)
			assert.Equal("xsrf-1", req.XSRF)
			assert.Equal("svc-key", req.Service)
			assert.Equal("jwt-1", req.Cookie)
		})
	}
}

func TestSetStatus(t *testing.T) {
	tests := map[string]struct {
		status    model.SessionStatus
		expStatus string
	}{
		"Idle should be sent as active.":   {status: model.SessionStatusIdle, expStatus: "active"},
		"Processing should be sent as is.": {status: model.SessionStatusProcessing, expStatus: "processing"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv, reqs := newServer(t, http.StatusOK, `{}`)
			repo := newRepo(t, srv.URL)

			require.NoError(t, repo.SetStatus(credsCtx(), "proj-1", test.status))
			require.Len(t, *reqs, 1)
			assert.Equal(t, http.MethodPost, (*reqs)[0].Method)
			assert.Equal(t, map[string]string{"status": test.expStatus}, (*reqs)[0].Body)
		})
	}
}

func TestSaveClip(t *testing.T) {
	assert := assert.New(t)

	srv, reqs := newServer(t, http.StatusOK, `{}`)
	repo := newRepo(t, srv.URL)

	err := repo.SaveClip(credsCtx(), model.Clip{
		VideoID:     "proj-1-abc",
		SessionID:   "proj-1",
		URL:         "http://cdn/clip.mp4",
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	assert.Equal("/projects/proj-1/save-clip", (*reqs)[0].Path)
	assert.Equal(map[string]string{
		"video_id":     "proj-1-abc",
		"url":          "http://cdn/clip.mp4",
		"content_type": "video/mp4",
	}, (*reqs)[0].Body)
}

func TestNotFound(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, `{}`)
	repo := newRepo(t, srv.URL)

	_, err := repo.GetStatus(context.Background(), "proj-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCredentialsFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("x-xsrf-token", "xsrf-2")
	r.AddCookie(&http.Cookie{Name: "token", Value: "jwt-2"})

	c := mainapi.CredentialsFromRequest(r)
	assert.Equal(t, "xsrf-2", c.XSRFToken)
	assert.Equal(t, map[string]string{"token": "jwt-2"}, c.Cookies)
}
