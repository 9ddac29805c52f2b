package apitest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cleared-dev/spend/internal/model"
)

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   strings.TrimPrefix(r.URL.Path, BasePath),
			Query:  r.URL.Query(),
			CSRF:   r.Header.Get(CSRFHeader),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, BasePath)
		s.mu.Lock()
		f, ok := s.failures[key]
		if ok {
			delete(s.failures, key)
		}
		s.mu.Unlock()
		if ok {
			writeJSON(w, f.status, map[string]string{"detail": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.sessionUser(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMutating(r.Method) && r.Header.Get(CSRFHeader) != s.CSRFToken() {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"detail": "CSRF Failed: CSRF token missing or incorrect.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// issueToken hands out the current token, rotating it after mutations.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) string {
	s.mu.Lock()
	token := s.csrf
	if isMutating(r.Method) {
		token = s.rotateLocked()
	}
	s.mu.Unlock()

	if s.csrfInCookie {
		http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: token, Path: "/"})
	} else {
		w.Header().Set(CSRFHeader, token)
	}
	return token
}

func (s *Server) startSession(w http.ResponseWriter, u model.User) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = u.ID
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request"})
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(creds.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)) != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid email or password"})
		return
	}

	s.startSession(w, acct.user)
	token := s.issueToken(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"user": acct.user, "csrfToken": token})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Malformed request"})
		return
	}

	password := body["password"]
	if p1, split := body["password1"]; split {
		if p1 != body["password2"] {
			writeJSON(w, http.StatusBadRequest, map[string][]string{
				"password2": {"The two password fields didn't match."},
			})
			return
		}
		password = p1
	}
	if body["email"] == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"non_field_errors": {"Email and password are required."},
		})
		return
	}

	s.mu.Lock()
	u, err := s.addUserLocked(body["email"], password, body["first_name"], body["last_name"], body["name"])
	s.mu.Unlock()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"email": {"A user with that email already exists."},
		})
		return
	}

	s.startSession(w, u)
	token := s.issueToken(w, r)
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "csrfToken": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	u, _ := s.sessionUser(r)
	s.issueToken(w, r)
	if s.bareUser {
		writeJSON(w, http.StatusOK, u)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	u, _ := s.sessionUser(r)
	q := r.URL.Query()
	s.mu.Lock()
	items := s.listLocked(u.ID, q)
	s.mu.Unlock()
	s.issueToken(w, r)
	writeList(w, r, items, s.pageSize)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := s.sessionUser(r)
	d, ok := s.decodeDraft(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	e := *s.storeExpenseLocked(u.ID, 0, d)
	s.mu.Unlock()
	s.issueToken(w, r)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := s.sessionUser(r)
	id := expenseID(r)
	if !s.owns(u.ID, id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	d, ok := s.decodeDraft(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	e := *s.storeExpenseLocked(u.ID, id, d)
	s.mu.Unlock()
	s.issueToken(w, r)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	u, _ := s.sessionUser(r)
	id := expenseID(r)
	if !s.owns(u.ID, id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	s.mu.Lock()
	delete(s.expenses, id)
	delete(s.owners, id)
	s.mu.Unlock()
	s.issueToken(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.Categories()
	s.issueToken(w, r)
	writeList(w, r, cats, s.pageSize)
}

func (s *Server) owns(user, expense int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[expense]
	return ok && owner == user
}

func (s *Server) decodeDraft(w http.ResponseWriter, r *http.Request) (model.Draft, bool) {
	var body draftBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed request"})
		return model.Draft{}, false
	}
	d := body.draft()
	if err := d.Validate(); err != nil {
		field := "non_field_errors"
		var ve model.ValidationError
		if errors.As(err, &ve) {
			field = ve.Field
		}
		writeJSON(w, http.StatusBadRequest, map[string][]string{field: {err.Error()}})
		return model.Draft{}, false
	}
	s.mu.Lock()
	_, known := s.categoryLocked(d.Category)
	s.mu.Unlock()
	if !known {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"category": {"Invalid pk \"" + strconv.FormatInt(d.Category, 10) + "\" - object does not exist."},
		})
		return model.Draft{}, false
	}
	return d, true
}

// writeList answers with a bare array, or with a page envelope when
// pageSize > 0.
func writeList[T any](w http.ResponseWriter, r *http.Request, items []T, pageSize int) {
	if pageSize <= 0 {
		writeJSON(w, http.StatusOK, items)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	start := min((page-1)*pageSize, len(items))
	end := min(start+pageSize, len(items))

	link := func(p int) *string {
		u := *r.URL
		u.Scheme = "http"
		u.Host = r.Host
		q := u.Query()
		q.Set("page", strconv.Itoa(p))
		u.RawQuery = q.Encode()
		s := u.String()
		return &s
	}
	var next, prev *string
	if end < len(items) {
		next = link(page + 1)
	}
	if page > 1 {
		prev = link(page - 1)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(items),
		"next":     next,
		"previous": prev,
		"results":  items[start:end],
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
