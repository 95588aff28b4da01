package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pictura/pictura/auth"
	"github.com/pictura/pictura/model"
	"github.com/pictura/pictura/post"
	"github.com/pictura/pictura/view"
)

const ME = "@me"

// Every possible error list
const (
	ErrorEmptyFeed           = "Feed exhausted"
	ErrorInternalServerError = "Internal server error"
	ErrorInvalidBody         = "Invalid body"
	ErrorInvalidComment      = "Invalid comment"
	ErrorInvalidPost         = "Invalid post"
	ErrorInvalidToken        = "Invalid token"
	ErrorInvalidUser         = "Invalid user"
	ErrorInvalidView         = "Invalid view"
	ErrorMethodNotAllowed    = "Method not allowed"
	ErrorUnableReadBody      = "Unable to read body"
)

// Every OK message reponse
const (
	Ok = "OK"
)

// App holds everything the handlers need
type App struct {
	Auth  *auth.Service
	Posts *post.Service
	Views *view.Registry
}

func Index(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "OK")
}

// identify reads the acting user from the request token; the
// empty string means nobody is signed in
func (app *App) identify(req *http.Request) (model.User, bool) {
	token := req.Header.Get("Authorization")
	if token == "" {
		return model.User{}, false
	}

	user, err := app.Auth.Identify(req.Context(), token)
	if err != nil {
		return model.User{}, false
	}

	return user, true
}

// jsonError writes the envelope with the right status for the
// error family
func jsonError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	message := fallback

	switch {
	case errors.Is(err, model.ErrAuth):
		status = http.StatusUnauthorized
		message = ErrorInvalidToken
	case errors.Is(err, model.ErrValidation):
		status = http.StatusBadRequest
		message = ErrorInvalidBody
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrExhausted):
		status = http.StatusBadRequest
		message = ErrorEmptyFeed
	case errors.Is(err, model.ErrNetwork):
		status = http.StatusBadGateway
		message = ErrorInternalServerError
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.RequestError{
		Error:   true,
		Message: message,
	})
}

// viewFor picks the screen a mutation came from; the global
// feed when unspecified
func (app *App) viewFor(req *http.Request, s *view.Session) *view.View {
	switch strings.ToLower(req.URL.Query().Get("view")) {
	case "mine":
		return s.Mine
	case "saved":
		return s.Saved
	default:
		return s.Global
	}
}
