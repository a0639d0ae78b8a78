// Package rest provides the registration and upload side-channels: the HTTP
// API that feeds the same registry the websocket relay reads from.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"relay/database"
	"relay/types/api/request"
	"relay/types/api/response"
)

// maxUploadSize bounds how much of a multipart body is read into memory
// before spilling to temporary files.
const maxUploadSize = 32 << 20

// Handler serves the registration and upload API.
type Handler struct {
	database  database.Database
	uploadDir string
}

// New creates a new Handler and ensures the upload directory exists.
func New(db database.Database, uploadDir string) (*Handler, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Handler{
		database:  db,
		uploadDir: uploadDir,
	}, nil
}

// Register installs the API routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/register", h.handleRegister)
	mux.HandleFunc("/api/users", h.handleUsers)
	mux.HandleFunc("/api/upload", h.handleUpload)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.uploadDir))))
}

// handleRegister registers a new username. A taken username yields 409.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req request.Register
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}

	user, err := h.database.CreateUserInfo(req.Username)
	if err != nil {
		if errors.Is(err, database.ErrUserAlreadyExists) {
			writeError(w, http.StatusConflict, "Username already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusOK, response.Register{
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
	})
}

// handleUsers lists every registered user with their presence.
func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	users, err := h.database.FindAllUserInfo()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	entries := make([]response.UserEntry, 0, len(users))
	for _, user := range users {
		entries = append(entries, response.UserEntry{
			Username: user.Username,
			Online:   user.Online,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleUpload stores an uploaded file on disk and returns the reference the
// relay will pass around. The stored name is prefixed with the upload time in
// Unix milliseconds.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Printf("close uploaded file: %v", err)
		}
	}()

	originalName := filepath.Base(header.Filename)
	storedName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), originalName)
	size, err := h.storeUpload(storedName, file)
	if err != nil {
		log.Printf("store upload %s: %v", storedName, err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusOK, response.Upload{
		Filename:     storedName,
		OriginalName: originalName,
		Size:         size,
		Path:         "/uploads/" + storedName,
	})
}

// storeUpload writes the uploaded content to disk under the given name. A
// failed write leaves no partial file behind.
func (h *Handler) storeUpload(name string, src io.Reader) (int64, error) {
	path := filepath.Join(h.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			log.Printf("remove partial upload %s: %v", path, removeErr)
		}
		return 0, fmt.Errorf("write upload file: %w", err)
	}
	return size, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response.Error{Error: msg})
}
