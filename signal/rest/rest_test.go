package rest_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"relay/database/memory"
	"relay/signal/rest"
	"relay/types/api/response"
)

func newServer(t *testing.T) (*httptest.Server, *memory.DB, string) {
	t.Helper()
	db := memory.New()
	uploadDir := t.TempDir()
	handler, err := rest.New(db, uploadDir)
	assert.NoError(t, err)
	mux := http.NewServeMux()
	handler.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, db, uploadDir
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	assert.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() {
		assert.NoError(t, resp.Body.Close())
	}()
	var v T
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRegister(t *testing.T) {
	t.Run("given fresh username when registered then user id returns", func(t *testing.T) {
		srv, _, _ := newServer(t)

		resp := postJSON(t, srv.URL+"/api/register", `{"username":"alice"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		registered := decode[response.Register](t, resp)
		assert.True(t, registered.Success)
		assert.NotEmpty(t, registered.UserID)
		assert.Equal(t, "alice", registered.Username)
	})

	t.Run("given taken username when registered then return 409", func(t *testing.T) {
		srv, _, _ := newServer(t)

		resp := postJSON(t, srv.URL+"/api/register", `{"username":"alice"}`)
		assert.NoError(t, resp.Body.Close())
		resp = postJSON(t, srv.URL+"/api/register", `{"username":"alice"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "Username already exists", decode[response.Error](t, resp).Error)
	})

	t.Run("given empty username when registered then return 400", func(t *testing.T) {
		srv, _, _ := newServer(t)

		resp := postJSON(t, srv.URL+"/api/register", `{"username":""}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Username is required", decode[response.Error](t, resp).Error)
	})

	t.Run("given malformed body when registered then return 400", func(t *testing.T) {
		srv, _, _ := newServer(t)

		resp := postJSON(t, srv.URL+"/api/register", `not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NoError(t, resp.Body.Close())
	})

	t.Run("given GET when registering then return 405", func(t *testing.T) {
		srv, _, _ := newServer(t)

		resp, err := http.Get(srv.URL + "/api/register")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.NoError(t, resp.Body.Close())
	})
}

func TestUsers(t *testing.T) {
	t.Run("given no users when listed then return empty array", func(t *testing.T) {
		srv, _, _ := newServer(t)

		resp, err := http.Get(srv.URL + "/api/users")
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decode[[]response.UserEntry](t, resp))
	})

	t.Run("given registered users when listed then presence is reflected", func(t *testing.T) {
		srv, db, _ := newServer(t)
		_, err := db.CreateUserInfo("alice")
		assert.NoError(t, err)
		_, err = db.CreateUserInfo("bob")
		assert.NoError(t, err)
		_, err = db.SetUserOnline("bob", "conn-b")
		assert.NoError(t, err)

		resp, err := http.Get(srv.URL + "/api/users")
		assert.NoError(t, err)
		entries := decode[[]response.UserEntry](t, resp)
		assert.ElementsMatch(t, []response.UserEntry{
			{Username: "alice", Online: false},
			{Username: "bob", Online: true},
		}, entries)
	})
}

func TestUpload(t *testing.T) {
	t.Run("given multipart file when uploaded then stored and served back", func(t *testing.T) {
		srv, _, uploadDir := newServer(t)

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", "photo.png")
		assert.NoError(t, err)
		_, err = part.Write([]byte("fake image bytes"))
		assert.NoError(t, err)
		assert.NoError(t, writer.Close())

		resp, err := http.Post(srv.URL+"/api/upload", writer.FormDataContentType(), &body)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		uploaded := decode[response.Upload](t, resp)
		assert.Equal(t, "photo.png", uploaded.OriginalName)
		assert.True(t, strings.HasSuffix(uploaded.Filename, "-photo.png"))
		assert.Equal(t, int64(len("fake image bytes")), uploaded.Size)
		assert.Equal(t, "/uploads/"+uploaded.Filename, uploaded.Path)

		// the bytes landed on disk
		stored, err := os.ReadFile(filepath.Join(uploadDir, uploaded.Filename))
		assert.NoError(t, err)
		assert.Equal(t, "fake image bytes", string(stored))

		// and are served back over the uploads route
		served, err := http.Get(srv.URL + uploaded.Path)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, served.StatusCode)
		servedBytes := make([]byte, 64)
		n, _ := served.Body.Read(servedBytes)
		assert.Equal(t, "fake image bytes", string(servedBytes[:n]))
		assert.NoError(t, served.Body.Close())
	})

	t.Run("given no file field when uploaded then return 400", func(t *testing.T) {
		srv, _, _ := newServer(t)

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		assert.NoError(t, writer.WriteField("note", "no file here"))
		assert.NoError(t, writer.Close())

		resp, err := http.Post(srv.URL+"/api/upload", writer.FormDataContentType(), &body)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No file uploaded", decode[response.Error](t, resp).Error)
	})
}
