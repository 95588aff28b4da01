package router

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pictura/pictura/model"
)

// UsersHandler serves public profiles and lets a signed-in user
// edit their own
func (app *App) UsersHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := strings.TrimPrefix(req.URL.Path, "/users/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidUser,
		})
		return
	}

	switch req.Method {
	case http.MethodGet:
		app.getUser(w, req, id)
	case http.MethodPatch:
		app.patchUser(w, req, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
	}
}

func (app *App) getUser(w http.ResponseWriter, req *http.Request, id string) {
	if id == ME {
		user, signed := app.identify(req)
		if !signed {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(model.RequestError{
				Error:   true,
				Message: ErrorInvalidToken,
			})
			return
		}
		json.NewEncoder(w).Encode(user)
		return
	}

	user, err := app.Auth.User(req.Context(), id)
	if err != nil {
		jsonError(w, err, ErrorInvalidUser)
		return
	}

	json.NewEncoder(w).Encode(user)
}

func (app *App) patchUser(w http.ResponseWriter, req *http.Request, id string) {
	user, signed := app.identify(req)
	if !signed {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidToken,
		})
		return
	}
	if id == ME {
		id = user.Id
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorUnableReadBody,
		})
		return
	}

	var profile model.ProfileBody
	if err := json.Unmarshal(body, &profile); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidBody,
		})
		return
	}

	if err := app.Auth.UpdateProfile(req.Context(), user.Id, id, profile); err != nil {
		jsonError(w, err, ErrorInvalidUser)
		return
	}

	json.NewEncoder(w).Encode(model.RequestError{
		Error:   false,
		Message: Ok,
	})
}
