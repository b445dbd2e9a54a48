// forum/handlers.go
package forum

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alexedwards/scs/v2"
)

// multipartOverhead leaves room for the text fields of an upload form.
const multipartOverhead = 1 << 20

type Handlers struct {
	db      *Database
	uploads *Uploads
	Session *scs.SessionManager
	log     *log.Logger
}

func NewHandlers(db *Database, uploads *Uploads, sessions *scs.SessionManager, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(os.Stderr, "forum: ", log.LstdFlags)
	}
	return &Handlers{db: db, uploads: uploads, Session: sessions, log: logger}
}

// authedHandler receives the caller's session explicitly.
type authedHandler func(w http.ResponseWriter, r *http.Request, s Session)

func (h *Handlers) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSession(r.Context(), h.Session)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Authentication required"})
			return
		}
		next(w, r, s)
	}
}

func (h *Handlers) requireAdmin(next authedHandler) http.HandlerFunc {
	return h.requireAuth(func(w http.ResponseWriter, r *http.Request, s Session) {
		if !s.IsAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "Admin access required"})
			return
		}
		next(w, r, s)
	})
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.register)
	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/logout", h.logout)
	mux.HandleFunc("GET /api/me", h.me)

	mux.HandleFunc("GET /api/categories", h.listCategories)
	mux.HandleFunc("GET /api/threads/{categoryId}", h.listThreads)
	mux.HandleFunc("POST /api/threads", h.requireAuth(h.createThread))
	mux.HandleFunc("GET /api/posts/{threadId}", h.listPosts)
	mux.HandleFunc("POST /api/posts", h.requireAuth(h.createPost))

	mux.HandleFunc("GET /api/messages", h.requireAuth(h.listMessages))
	mux.HandleFunc("GET /api/messages/conversations", h.requireAuth(h.listConversations))
	mux.HandleFunc("GET /api/messages/conversation/{userId}", h.requireAuth(h.showConversation))
	mux.HandleFunc("POST /api/messages", h.requireAuth(h.sendMessage))
	mux.HandleFunc("GET /api/users", h.requireAuth(h.listUsers))

	mux.HandleFunc("GET /api/admin/users", h.requireAdmin(h.adminListUsers))
	mux.HandleFunc("POST /api/admin/users/{id}/toggle-admin", h.requireAdmin(h.toggleAdmin))
	mux.HandleFunc("DELETE /api/admin/posts/{id}", h.requireAdmin(h.deletePost))
	mux.HandleFunc("DELETE /api/admin/threads/{id}", h.requireAdmin(h.deleteThread))
}

// RegisterStatic serves uploaded images and the browser client from
// publicDir. Unknown non-API paths fall back to index.html.
func (h *Handlers) RegisterStatic(mux *http.ServeMux, publicDir string) {
	mux.Handle("GET "+UploadURLPrefix, http.StripPrefix(UploadURLPrefix, http.FileServer(http.Dir(h.uploads.Dir()))))
	files := http.FileServer(http.Dir(publicDir))
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
			return
		}
		if _, err := os.Stat(filepath.Join(publicDir, filepath.FromSlash(path.Clean(r.URL.Path)))); err == nil && r.URL.Path != "/" {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(publicDir, "index.html"))
	})
}

// Handler wraps mux with session loading and access logging.
func (h *Handlers) Handler(mux *http.ServeMux) http.Handler {
	return logRequests(h.log, h.Session.LoadAndSave(mux))
}

// --- Auth ---

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, err, "Registration failed")
		return
	}
	ident, err := h.db.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		h.fail(w, err, "Registration failed")
		return
	}
	if err := startSession(r.Context(), h.Session, ident); err != nil {
		h.fail(w, err, "Registration failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool   `json:"success"`
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
	}{true, ident.UserID, ident.Username})
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, newError(ErrAuth, invalidCredentials), "Login failed")
		return
	}
	ident, err := h.db.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		h.fail(w, err, "Login failed")
		return
	}
	if err := startSession(r.Context(), h.Session, ident); err != nil {
		h.fail(w, err, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		Identity
	}{true, ident})
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Destroy(r.Context()); err != nil {
		h.log.Printf("Error destroying session: %v", err)
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	s, ok := loadSession(r.Context(), h.Session)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, s.Identity)
}

// --- Categories, threads and posts ---

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.db.ListCategories(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handlers) listThreads(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "categoryId", "category ID")
	if err != nil {
		h.fail(w, err, "Failed to fetch threads")
		return
	}
	threads, err := h.db.ListThreads(r.Context(), categoryID)
	if err != nil {
		h.fail(w, err, "Failed to fetch threads")
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *Handlers) createThread(w http.ResponseWriter, r *http.Request, s Session) {
	var in struct {
		CategoryID flexID `json:"categoryId"`
		Title      string `json:"title"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		h.fail(w, err, "Failed to create thread")
		return
	}
	id, err := h.db.CreateThread(r.Context(), int64(in.CategoryID), in.Title, s.UserID)
	if err != nil {
		h.fail(w, err, "Failed to create thread")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool  `json:"success"`
		ThreadID int64 `json:"threadId"`
	}{true, id})
}

func (h *Handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	threadID, err := pathID(r, "threadId", "thread ID")
	if err != nil {
		h.fail(w, err, "Failed to fetch posts")
		return
	}
	posts, err := h.db.ListPosts(r.Context(), threadID)
	if err != nil {
		h.fail(w, err, "Failed to fetch posts")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

type createdWithImage struct {
	Success   bool    `json:"success"`
	PostID    int64   `json:"postId,omitempty"`
	MessageID int64   `json:"messageId,omitempty"`
	ImageURL  *string `json:"imageUrl"`
}

func (h *Handlers) createPost(w http.ResponseWriter, r *http.Request, s Session) {
	if err := h.parseUpload(w, r); err != nil {
		h.fail(w, err, "Failed to create post")
		return
	}
	defer r.MultipartForm.RemoveAll()

	threadID, err := formID(r.FormValue("threadId"), "thread ID")
	if err != nil {
		h.fail(w, err, "Failed to create post")
		return
	}
	content := r.FormValue("content")
	if threadID == 0 || strings.TrimSpace(content) == "" {
		h.fail(w, newError(ErrValidation, "Thread ID and content required"), "Failed to create post")
		return
	}
	exists, err := h.db.ThreadExists(r.Context(), threadID)
	if err == nil && !exists {
		err = newError(ErrNotFound, "Thread not found")
	}
	if err != nil {
		h.fail(w, err, "Failed to create post")
		return
	}
	imageURL, err := h.storeImage(r)
	if err != nil {
		h.fail(w, err, "Failed to upload image")
		return
	}
	id, err := h.db.CreatePost(r.Context(), threadID, s.UserID, content, imageURL)
	if err != nil {
		if id == 0 {
			h.discardImage(imageURL)
			h.fail(w, err, "Failed to create post")
			return
		}
		h.log.Printf("Error updating thread activity: %v", err)
	}
	writeJSON(w, http.StatusOK, createdWithImage{Success: true, PostID: id, ImageURL: imageURL})
}

// --- Messages ---

func (h *Handlers) listMessages(w http.ResponseWriter, r *http.Request, s Session) {
	messages, err := h.db.ListMessagesForUser(r.Context(), s.UserID)
	if err != nil {
		h.fail(w, err, "Failed to fetch messages")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handlers) listConversations(w http.ResponseWriter, r *http.Request, s Session) {
	messages, err := h.db.ListMessagesForUser(r.Context(), s.UserID)
	if err != nil {
		h.fail(w, err, "Failed to fetch conversations")
		return
	}
	writeJSON(w, http.StatusOK, GroupConversations(s.UserID, messages))
}

func (h *Handlers) showConversation(w http.ResponseWriter, r *http.Request, s Session) {
	otherID, err := pathID(r, "userId", "user ID")
	if err != nil {
		h.fail(w, err, "Failed to fetch conversation")
		return
	}
	messages, err := h.db.ListConversation(r.Context(), s.UserID, otherID)
	if err != nil {
		h.fail(w, err, "Failed to fetch conversation")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handlers) sendMessage(w http.ResponseWriter, r *http.Request, s Session) {
	if err := h.parseUpload(w, r); err != nil {
		h.fail(w, err, "Failed to send message")
		return
	}
	defer r.MultipartForm.RemoveAll()

	recipientID, err := formID(r.FormValue("recipientId"), "recipient ID")
	if err != nil {
		h.fail(w, err, "Failed to send message")
		return
	}
	content := r.FormValue("content")
	if recipientID == 0 || strings.TrimSpace(content) == "" {
		h.fail(w, newError(ErrValidation, "Recipient and content required"), "Failed to send message")
		return
	}
	if recipientID == s.UserID {
		h.fail(w, newError(ErrValidation, "Cannot send a message to yourself"), "Failed to send message")
		return
	}
	exists, err := h.db.UserExists(r.Context(), recipientID)
	if err == nil && !exists {
		err = newError(ErrNotFound, "Recipient not found")
	}
	if err != nil {
		h.fail(w, err, "Failed to send message")
		return
	}
	imageURL, err := h.storeImage(r)
	if err != nil {
		h.fail(w, err, "Failed to upload image")
		return
	}
	id, err := h.db.SendMessage(r.Context(), s.UserID, recipientID, content, imageURL)
	if err != nil {
		h.discardImage(imageURL)
		h.fail(w, err, "Failed to send message")
		return
	}
	writeJSON(w, http.StatusOK, createdWithImage{Success: true, MessageID: id, ImageURL: imageURL})
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request, s Session) {
	users, err := h.db.ListUsers(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// --- Admin ---

func (h *Handlers) adminListUsers(w http.ResponseWriter, r *http.Request, s Session) {
	users, err := h.db.ListUsersForAdmin(r.Context())
	if err != nil {
		h.fail(w, err, "Failed to fetch users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handlers) toggleAdmin(w http.ResponseWriter, r *http.Request, s Session) {
	id, err := pathID(r, "id", "user ID")
	if err == nil {
		err = h.db.ToggleAdmin(r.Context(), id)
	}
	if err != nil {
		h.fail(w, err, "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handlers) deletePost(w http.ResponseWriter, r *http.Request, s Session) {
	id, err := pathID(r, "id", "post ID")
	if err == nil {
		err = h.db.DeletePost(r.Context(), id)
	}
	if err != nil {
		h.fail(w, err, "Failed to delete post")
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

func (h *Handlers) deleteThread(w http.ResponseWriter, r *http.Request, s Session) {
	id, err := pathID(r, "id", "thread ID")
	if err == nil {
		err = h.db.DeleteThread(r.Context(), id)
	}
	if err != nil {
		h.fail(w, err, "Failed to delete thread")
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

// --- Uploads ---

// parseUpload reads a multipart body no larger than one image plus its
// form fields.
func (h *Handlers) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		if isTooLarge(err) {
			return newError(ErrPayloadTooLarge, "Image exceeds the 10 MB limit")
		}
		return newError(ErrValidation, "Invalid form data")
	}
	return nil
}

// storeImage saves the optional "image" part; nil means none was sent.
func (h *Handlers) storeImage(r *http.Request) (*string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(ErrValidation, "Invalid image upload")
	}
	defer file.Close()
	if header.Size > h.uploads.maxSize {
		return nil, newError(ErrPayloadTooLarge, "Image exceeds the 10 MB limit")
	}
	url, err := h.uploads.Store(file, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	return &url, nil
}

// discardImage removes an image stored for a request that then failed.
func (h *Handlers) discardImage(url *string) {
	if url == nil {
		return
	}
	if err := h.uploads.Remove(*url); err != nil {
		h.log.Printf("Error removing upload %s: %v", *url, err)
	}
}
