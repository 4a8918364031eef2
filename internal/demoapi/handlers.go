package demoapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// User is a user record served by the demo API.
type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	Role      string `json:"role"`
}

// deletedUser is the DELETE /users/{id} response body.
type deletedUser struct {
	User
	IsDeleted bool      `json:"isDeleted"`
	DeletedOn time.Time `json:"deletedOn"`
}

// userFields holds the writable fields of a user; nil pointers are left
// unchanged on update.
type userFields struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Age       *int    `json:"age"`
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
}

func (f userFields) apply(u *User) {
	if f.FirstName != nil {
		u.FirstName = *f.FirstName
	}
	if f.LastName != nil {
		u.LastName = *f.LastName
	}
	if f.Age != nil {
		u.Age = *f.Age
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Username != nil {
		u.Username = *f.Username
	}
	if f.Password != nil {
		u.Password = *f.Password
	}
	if f.Role != nil {
		u.Role = *f.Role
	}
}

var seedUsers = []User{
	{ID: 1, FirstName: "Emily", LastName: "Johnson", Age: 28, Email: "emily.johnson@x.dummyjson.com", Username: "emilys", Password: "emilyspass", Role: "admin"},
	{ID: 2, FirstName: "Michael", LastName: "Williams", Age: 35, Email: "michael.williams@x.dummyjson.com", Username: "michaelw", Password: "michaelwpass", Role: "admin"},
	{ID: 3, FirstName: "Sophia", LastName: "Brown", Age: 42, Email: "sophia.brown@x.dummyjson.com", Username: "sophiab", Password: "sophiabpass", Role: "user"},
}

func (s *Server) seed() {
	for _, u := range seedUsers {
		s.users.Set(u.ID, u)
	}
}

func (s *Server) routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.injectFaults)

		r.Get("/health", s.health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.With(s.requireBearer).Get("/me", s.me)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Post("/", s.createUser)
			r.Get("/{id}", s.getUser)
			r.Put("/{id}", s.updateUser)
			r.Patch("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
		})

		r.Get("/slow", s.slow)
	})

	s.adminRoutes(r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ExpiresInMins int    `json:"expiresInMins"`
}

type loginResponse struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "Username and password required")
		return
	}

	u, ok := s.users.Find(func(_ int, u User) bool {
		return u.Username == req.Username && u.Password == req.Password
	})
	if !ok {
		Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, refresh, err := s.tokens.Issue(u, time.Duration(req.ExpiresInMins)*time.Minute)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSON(w, http.StatusOK, loginResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

type ctxKey struct{}

func withUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func userFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// requireBearer validates "Authorization: Bearer <token>" and passes the
// authenticated user on in the request context.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			Error(w, http.StatusUnauthorized, "Access Token is required")
			return
		}
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || token == "" {
			Error(w, http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
			return
		}

		id, err := s.tokens.Verify(token)
		if err != nil {
			Error(w, http.StatusUnauthorized, "Invalid/expired Token!")
			return
		}
		u, ok := s.users.Get(id)
		if !ok {
			Error(w, http.StatusUnauthorized, "Invalid/expired Token!")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	JSON(w, http.StatusOK, u)
}

type userPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 30)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	skip, err := intParam(r, "skip", 0)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	page := s.users.Paginate(skip, limit)
	JSON(w, http.StatusOK, userPage{
		Users: page.Items,
		Total: page.Total,
		Skip:  page.Skip,
		Limit: page.Limit,
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var f userFields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if f.FirstName == nil || *f.FirstName == "" {
		Error(w, http.StatusBadRequest, "firstName is required")
		return
	}

	u := User{ID: s.users.NextID(), Role: "user"}
	f.apply(&u)
	s.users.Set(u.ID, u)
	JSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	var f userFields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f.apply(&u)
	s.users.Set(u.ID, u)
	JSON(w, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.lookupUser(w, r)
	if !ok {
		return
	}
	s.users.Delete(u.ID)
	JSON(w, http.StatusOK, deletedUser{User: u, IsDeleted: true, DeletedOn: time.Now().UTC()})
}

func (s *Server) lookupUser(w http.ResponseWriter, r *http.Request) (User, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid user id '"+raw+"'")
		return User{}, false
	}
	u, ok := s.users.Get(id)
	if !ok {
		Error(w, http.StatusNotFound, "User with id '"+raw+"' not found")
		return User{}, false
	}
	return u, true
}

// slow answers after ?ms=N milliseconds, capped at the server's MaxDelay.
func (s *Server) slow(w http.ResponseWriter, r *http.Request) {
	ms, err := intParam(r, "ms", 0)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	delay := s.maxDelay
	if ms < int(s.maxDelay/time.Millisecond) {
		delay = time.Duration(ms) * time.Millisecond
	}

	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}
	JSON(w, http.StatusOK, map[string]any{"delayedMs": delay.Milliseconds()})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &paramError{name: name, value: raw}
	}
	return n, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "Invalid '" + e.name + "' parameter: " + e.value
}
