package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/partfinder/partfinder/internal/logging"
)

// API paths, relative to the server root.
const (
	UsersPrefix       = "/api/v1/users"
	PathLogin         = "/login"
	PathRegister      = "/register"
	PathRefresh       = "/refresh"
	PathSendCode      = "/forgot-password/send-code"
	PathVerifyCode    = "/forgot-password/verify-code"
	PathResetPassword = "/forgot-password/reset-password"
	PathMe            = "/me"
	PathHealth        = "/health"
)

// NewRouter wires the auth routes to users.
func NewRouter(users UserService, logger logging.Logger) *mux.Router {
	h := &handler{users: users, logger: logger.With("module", "httpapi")}

	r := mux.NewRouter()
	r.Use(h.recoverPanics, h.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.HandleFunc(PathHealth, health).Methods(http.MethodGet)

	u := r.PathPrefix(UsersPrefix).Subrouter()
	u.HandleFunc(PathLogin, h.login).Methods(http.MethodPost)
	u.HandleFunc(PathRegister, h.register).Methods(http.MethodPost)
	u.HandleFunc(PathRefresh, h.refresh).Methods(http.MethodPost)
	u.HandleFunc(PathSendCode, h.sendCode).Methods(http.MethodPost)
	u.HandleFunc(PathVerifyCode, h.verifyCode).Methods(http.MethodPost)
	u.HandleFunc(PathResetPassword, h.resetPassword).Methods(http.MethodPost)
	u.Handle(PathMe, h.requireAuth(http.HandlerFunc(h.me))).Methods(http.MethodGet)

	return r
}
