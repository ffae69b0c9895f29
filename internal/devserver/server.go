// Package devserver is an in-memory contacts service implementing the HTTP
// surface the client consumes. It backs `contactdesk serve-dev` and the
// client and controller tests.
package devserver

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"contactdesk/internal/contacts"
	"contactdesk/internal/logging"
	"contactdesk/internal/session"
)

var buckets = metrics.ExponentialBuckets(1e-3, 5, 6)

type user struct {
	username string
	hash     []byte
	role     session.Role
}

type record struct {
	id    int64
	owner string
	contacts.Fields
}

func (r record) contact() contacts.Contact {
	return contacts.Contact{
		ID:            contacts.ID(strconv.FormatInt(r.id, 10)),
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Email:         r.Email,
		Phone:         r.Phone,
		OwnerUsername: r.owner,
	}
}

type fault struct {
	status int
	body   string
}

// Server is the in-memory service.
type Server struct {
	mu      sync.Mutex
	users   map[string]*user
	tokens  map[string]string // token -> username
	records []record
	nextID  int64
	faults  map[string]fault // "METHOD /path" -> injected response

	requests atomic.Int64
	set      *metrics.Set
	router   *mux.Router
	cost     int
}

// Option configures a Server.
type Option func(*Server)

// WithUser seeds an account.
func WithUser(username, password string, role session.Role) Option {
	return func(s *Server) {
		if err := s.AddUser(username, password, role); err != nil {
			logging.Get(logging.CategoryDevServer).Error("seed user %s: %v", username, err)
		}
	}
}

// WithBcryptCost overrides the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// New creates a server with the given options applied in order.
func New(opts ...Option) *Server {
	s := &Server{
		users:  make(map[string]*user),
		tokens: make(map[string]string),
		faults: make(map[string]fault),
		nextID: 1,
		set:    metrics.NewSet(),
		cost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) { s.set.WritePrometheus(w) }).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(s.authenticate)
	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/api/contacts", s.handleList).Methods(http.MethodGet)
	authed.HandleFunc("/api/contacts", s.handleCreate).Methods(http.MethodPost)
	authed.HandleFunc("/api/contacts/export/json", s.handleExportJSON).Methods(http.MethodGet)
	authed.HandleFunc("/api/contacts/export/xml", s.handleExportXML).Methods(http.MethodGet)
	authed.HandleFunc("/api/contacts/import/json", s.handleImportJSON).Methods(http.MethodPost)
	authed.HandleFunc("/api/contacts/import/xml", s.handleImportXML).Methods(http.MethodPost)
	authed.HandleFunc("/api/contacts/{id}", s.handleUpdate).Methods(http.MethodPut)
	authed.HandleFunc("/api/contacts/{id}", s.handleDelete).Methods(http.MethodDelete)

	r.Use(s.meter, s.inject)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers an account directly.
func (s *Server) AddUser(username, password string, role session.Role) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return fmt.Errorf("user %s already exists", username)
	}
	s.users[username] = &user{username: username, hash: hash, role: role}
	return nil
}

// Seed stores contacts for owner and returns their ids.
func (s *Server) Seed(owner string, fields ...contacts.Fields) []contacts.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]contacts.ID, 0, len(fields))
	for _, f := range fields {
		rec := s.insertLocked(owner, f)
		ids = append(ids, rec.contact().ID)
	}
	return ids
}

// Contacts returns the stored contacts of owner in insertion order.
func (s *Server) Contacts(owner string) []contacts.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contacts.Contact
	for _, rec := range s.records {
		if rec.owner == owner {
			out = append(out, rec.contact())
		}
	}
	return out
}

// IssueToken mints a token for an existing user without a password check.
func (s *Server) IssueToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := uuid.NewString()
	s.tokens[tok] = username
	return tok
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// Fail makes every request matching method and path answer with status and body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: status, body: body}
}

// Heal removes all injected failures.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]fault)
}

// Requests returns the number of requests served, /metrics excluded.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) insertLocked(owner string, f contacts.Fields) record {
	rec := record{id: s.nextID, owner: owner, Fields: f}
	s.nextID++
	s.records = append(s.records, rec)
	return rec
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type ctxKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) meter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		s.requests.Add(1)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		labels := fmt.Sprintf(`{method=%q,path=%q,status="%d"}`, r.Method, path, rec.status)
		s.set.GetOrCreatePrometheusHistogramExt(`http_request_duration_seconds`+labels, buckets).UpdateDuration(start)
		s.set.GetOrCreateCounter(`http_requests_total` + labels).Inc()
		logging.DevServer("%s %s %d %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.faults[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			http.Error(w, f.body, f.status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		username, valid := s.tokens[tok]
		u := s.users[username]
		s.mu.Unlock()
		if !ok || !valid || u == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), *u)))
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeText(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if err := s.AddUser(c.Username, c.Password, session.RoleUser); err != nil {
		writeText(w, http.StatusBadRequest, "Username already exists")
		return
	}
	writeText(w, http.StatusOK, "User registered")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed request")
		return
	}
	s.mu.Lock()
	u := s.users[c.Username]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.hash, []byte(c.Password)) != nil {
		writeText(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.IssueToken(u.username)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"username": u.username, "role": string(u.role)})
}

// visibleLocked returns what u may see: everything for admins, own records otherwise.
func (s *Server) visibleLocked(u user) []contacts.Contact {
	out := []contacts.Contact{}
	for _, rec := range s.records {
		if u.role.IsAdmin() || rec.owner == u.username {
			out = append(out, rec.contact())
		}
	}
	return out
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	s.mu.Lock()
	list := s.visibleLocked(u)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

var phonePattern = regexp.MustCompile(`^[0-9]{9}$`)

func validate(f contacts.Fields) error {
	var problems []string
	if strings.TrimSpace(f.FirstName) == "" {
		problems = append(problems, "firstName is required")
	}
	if strings.TrimSpace(f.LastName) == "" {
		problems = append(problems, "lastName is required")
	}
	if strings.TrimSpace(f.Email) == "" {
		problems = append(problems, "email is required")
	} else if !strings.Contains(f.Email, "@") {
		problems = append(problems, "email is malformed")
	}
	if !phonePattern.MatchString(f.Phone) {
		problems = append(problems, "phone must be exactly 9 digits")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if u.role.IsAdmin() {
		writeText(w, http.StatusForbidden, "Admin cannot create contacts")
		return
	}
	var f contacts.Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed contact")
		return
	}
	if err := validate(f); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	rec := s.insertLocked(u.username, f)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, rec.contact())
}

// findLocked locates id and checks that u owns it or is an admin.
func (s *Server) findLocked(u user, rawID string) (int, int) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return -1, http.StatusNotFound
	}
	for i, rec := range s.records {
		if rec.id != id {
			continue
		}
		if rec.owner != u.username && !u.role.IsAdmin() {
			return -1, http.StatusForbidden
		}
		return i, http.StatusOK
	}
	return -1, http.StatusNotFound
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	var f contacts.Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed contact")
		return
	}
	if err := validate(f); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	i, status := s.findLocked(u, mux.Vars(r)["id"])
	if status != http.StatusOK {
		s.mu.Unlock()
		writeText(w, status, http.StatusText(status))
		return
	}
	s.records[i].Fields = f
	c := s.records[i].contact()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()
	i, status := s.findLocked(u, mux.Vars(r)["id"])
	if status != http.StatusOK {
		writeText(w, status, http.StatusText(status))
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	s.mu.Lock()
	list := s.visibleLocked(u)
	s.mu.Unlock()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// xmlContact is the export element. id and ownerUsername are included.
type xmlContact struct {
	ID            int64  `xml:"id,omitempty"`
	FirstName     string `xml:"firstName"`
	LastName      string `xml:"lastName"`
	Email         string `xml:"email"`
	Phone         string `xml:"phone"`
	OwnerUsername string `xml:"ownerUsername,omitempty"`
}

type xmlContacts struct {
	XMLName  xml.Name     `xml:"contacts"`
	Contacts []xmlContact `xml:"contact"`
}

func (s *Server) handleExportXML(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	s.mu.Lock()
	doc := xmlContacts{}
	for _, rec := range s.records {
		if u.role.IsAdmin() || rec.owner == u.username {
			doc.Contacts = append(doc.Contacts, xmlContact{
				ID: rec.id, FirstName: rec.FirstName, LastName: rec.LastName,
				Email: rec.Email, Phone: rec.Phone, OwnerUsername: rec.owner,
			})
		}
	}
	s.mu.Unlock()

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(data)
}

// replace swaps the caller's contacts for fields after validating all of them.
func (s *Server) replace(w http.ResponseWriter, u user, fields []contacts.Fields, msg string) {
	for i, f := range fields {
		if err := validate(f); err != nil {
			writeText(w, http.StatusBadRequest, fmt.Sprintf("contact %d: %v", i+1, err))
			return
		}
	}
	s.mu.Lock()
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.owner != u.username {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	for _, f := range fields {
		s.insertLocked(u.username, f)
	}
	s.mu.Unlock()
	writeText(w, http.StatusOK, msg)
}

func (s *Server) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if u.role.IsAdmin() {
		writeText(w, http.StatusForbidden, "Admin cannot import contacts")
		return
	}
	var fields []contacts.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed JSON import")
		return
	}
	s.replace(w, u, fields, "Imported JSON")
}

func (s *Server) handleImportXML(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if u.role.IsAdmin() {
		writeText(w, http.StatusForbidden, "Admin cannot import contacts")
		return
	}
	var doc xmlContacts
	if err := xml.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeText(w, http.StatusBadRequest, "Malformed XML import: "+err.Error())
		return
	}
	fields := make([]contacts.Fields, 0, len(doc.Contacts))
	for _, c := range doc.Contacts {
		fields = append(fields, contacts.Fields{FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone})
	}
	s.replace(w, u, fields, "Imported XML")
}
