// Package apitest runs an in-process fake of the expense API for tests.
//
// The fake keeps users, sessions, categories and expenses in memory and
// enforces the same cookie-session and anti-forgery rules as the real
// service: mutating requests must echo the current token, every successful
// response hands out the token, and a missing or expired session yields 401.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/cleared-dev/spend/internal/model"
)

const (
	// BasePath is where the API is mounted.
	BasePath = "/api/v1"
	// SessionCookie is the name of the session cookie.
	SessionCookie = "ecomm-refresh"
	// CSRFHeader carries the anti-forgery token both ways.
	CSRFHeader = "X-CSRF-Token"
	// CSRFCookie carries the token when the server runs in cookie mode.
	CSRFCookie = "csrftoken"
)

// DefaultCategories are seeded unless WithCategories overrides them.
var DefaultCategories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Other",
}

// Request is one request seen by the server.
type Request struct {
	Method string
	Path   string // relative to BasePath
	Query  url.Values
	CSRF   string // value of the CSRF request header
}

// Option configures a Server.
type Option func(*Server)

// WithPageSize makes list endpoints answer with paginated envelopes.
func WithPageSize(n int) Option {
	return func(s *Server) { s.pageSize = n }
}

// WithCSRFCookie hands out tokens in a cookie instead of a response header.
func WithCSRFCookie() Option {
	return func(s *Server) { s.csrfInCookie = true }
}

// WithCategories replaces the seeded categories.
func WithCategories(names ...string) Option {
	return func(s *Server) { s.seed = names }
}

// WithBareAuthUser makes GET /auth/user answer with a bare user object.
func WithBareAuthUser() Option {
	return func(s *Server) { s.bareUser = true }
}

type account struct {
	user model.User
	hash []byte
}

type failure struct {
	status  int
	message string
}

// Server is the fake API.
type Server struct {
	mu sync.Mutex

	srv          *httptest.Server
	pageSize     int
	csrfInCookie bool
	bareUser     bool
	seed         []string

	accounts   map[string]*account // by lower-cased email
	sessions   map[string]int64    // session token -> user ID
	csrf       string
	categories []model.Category
	expenses   map[int64]*model.Expense
	owners     map[int64]int64 // expense ID -> user ID
	nextID     int64
	failures   map[string]failure // "METHOD /path" -> injected failure
	requests   []Request
	now        func() time.Time
}

// NewServer starts a fake API. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		seed:     DefaultCategories,
		accounts: make(map[string]*account),
		sessions: make(map[string]int64),
		csrf:     uuid.NewString(),
		expenses: make(map[int64]*model.Expense),
		owners:   make(map[int64]int64),
		failures: make(map[string]failure),
		nextID:   1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range s.seed {
		s.addCategoryLocked(name)
	}
	s.srv = httptest.NewServer(s.router())
	return s
}

// URL returns the API base URL, including BasePath.
func (s *Server) URL() string {
	return s.srv.URL + BasePath
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an HTTP client for direct requests against the server.
func (s *Server) Client() *http.Client {
	return s.srv.Client()
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.record, s.inject)

	api := r.PathPrefix(BasePath).Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireSession, s.requireCSRF)
	authed.HandleFunc("/auth/user", s.handleCurrentUser).Methods(http.MethodGet)
	authed.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	authed.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	authed.HandleFunc("/expenses/{id:[0-9]+}", s.handleUpdateExpense).Methods(http.MethodPut)
	authed.HandleFunc("/expenses/{id:[0-9]+}", s.handleDeleteExpense).Methods(http.MethodDelete)
	authed.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	return r
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, password, firstName, lastName string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.addUserLocked(email, password, firstName, lastName, "")
	if err != nil {
		panic(fmt.Sprintf("apitest: adding user: %v", err))
	}
	return u
}

// AddCategory adds a category and returns it.
func (s *Server) AddCategory(name string) model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCategoryLocked(name)
}

// Categories returns the seeded categories in ID order.
func (s *Server) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// AddExpense stores an expense owned by email.
func (s *Server) AddExpense(email string, d model.Draft) model.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		panic(fmt.Sprintf("apitest: unknown user %q", email))
	}
	return *s.storeExpenseLocked(acct.user.ID, 0, d)
}

// Expenses returns every expense owned by email, newest first.
func (s *Server) Expenses(email string) []model.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return nil
	}
	return s.listLocked(acct.user.ID, url.Values{})
}

// Requests returns the request log.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// CountRequests counts logged requests with the given method and path.
func (s *Server) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// CSRFToken returns the token the server currently expects.
func (s *Server) CSRFToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrf
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ExpireSessions invalidates every session, so the next request gets 401.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

// FailNext makes the next request to method+path (relative to BasePath)
// answer with status and a {"detail": message} body.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, message: message}
}

func (s *Server) addUserLocked(email, password, first, last, name string) (model.User, error) {
	key := strings.ToLower(email)
	if _, exists := s.accounts[key]; exists {
		return model.User{}, fmt.Errorf("user %s already exists", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}
	u := model.User{
		ID:        int64(len(s.accounts) + 1),
		Email:     email,
		FirstName: first,
		LastName:  last,
		Name:      name,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	s.accounts[key] = &account{user: u, hash: hash}
	return u, nil
}

func (s *Server) addCategoryLocked(name string) model.Category {
	c := model.Category{ID: int64(len(s.categories) + 1), Name: name}
	s.categories = append(s.categories, c)
	return c
}

func (s *Server) categoryLocked(id int64) (model.Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

// storeExpenseLocked creates (id == 0) or replaces an expense.
func (s *Server) storeExpenseLocked(owner, id int64, d model.Draft) *model.Expense {
	now := s.now().UTC().Truncate(time.Second)
	e := &model.Expense{
		ID:          id,
		Amount:      d.Amount,
		Date:        d.Date,
		Category:    d.Category,
		Description: d.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c, ok := s.categoryLocked(d.Category); ok {
		e.CategoryName = c.Name
	}
	if id == 0 {
		e.ID = s.nextID
		s.nextID++
	} else if prev, ok := s.expenses[id]; ok {
		e.CreatedAt = prev.CreatedAt
	}
	s.expenses[e.ID] = e
	s.owners[e.ID] = owner
	return e
}

// listLocked filters the owner's expenses with the API's query parameters.
func (s *Server) listLocked(owner int64, q url.Values) []model.Expense {
	parse := func(key string) model.Date {
		d, _ := model.ParseDate(q.Get(key))
		return d
	}
	exact, from, to := parse("date"), parse("date_from"), parse("date_to")
	category := q.Get("category")

	out := make([]model.Expense, 0)
	for id, e := range s.expenses {
		if s.owners[id] != owner {
			continue
		}
		if category != "" && !strings.EqualFold(e.CategoryName, category) {
			continue
		}
		if !exact.IsZero() && e.Date != exact {
			continue
		}
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && to.Before(e.Date) {
			continue
		}
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b model.Expense) int {
		if a.Date != b.Date {
			if a.Date.Before(b.Date) {
				return 1
			}
			return -1
		}
		return int(b.ID - a.ID)
	})
	return out
}

// rotateLocked mints a new anti-forgery token.
func (s *Server) rotateLocked() string {
	s.csrf = uuid.NewString()
	return s.csrf
}

func (s *Server) sessionUser(r *http.Request) (model.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return model.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[c.Value]
	if !ok {
		return model.User{}, false
	}
	for _, acct := range s.accounts {
		if acct.user.ID == id {
			return acct.user, true
		}
	}
	return model.User{}, false
}

func isMutating(method string) bool {
	return method != http.MethodGet && method != http.MethodHead && method != http.MethodOptions
}

func expenseID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// draftBody is the create/update request body.
type draftBody struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        model.Date      `json:"date"`
	Category    int64           `json:"category"`
	Description string          `json:"description"`
}

func (b draftBody) draft() model.Draft {
	return model.Draft{
		Amount:      b.Amount,
		Date:        b.Date,
		Category:    b.Category,
		Description: b.Description,
	}
}
