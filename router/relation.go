package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pictura/pictura/model"
)

// RelationHandler flips like and save memberships. Writes go
// through the caller's view so the screen flips immediately and
// rolls back if the store says no
func (app *App) RelationHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
		return
	}

	relation, postId, ok := strings.Cut(strings.TrimPrefix(req.URL.Path, "/relation/"), "/")
	if !ok || postId == "" || (relation != "like" && relation != "save") {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidPost,
		})
		return
	}

	user, signed := app.identify(req)
	if !signed {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidToken,
		})
		return
	}

	s := app.Views.Session(user.Id)
	v := app.viewFor(req, s)
	if !v.Loaded() {
		if err := v.Load(req.Context()); err != nil {
			jsonError(w, err, ErrorInternalServerError)
			return
		}
	}

	var err error
	if relation == "like" {
		err = v.ToggleLike(req.Context(), postId, user.Id)
	} else {
		err = v.ToggleSave(req.Context(), postId, user.Id)
	}

	// A post the view never fetched can still be toggled against
	// the store directly
	if errors.Is(err, model.ErrNotFound) {
		err = app.toggleDirect(req, relation, postId, user.Id)
	}
	if err != nil {
		jsonError(w, err, ErrorInvalidPost)
		return
	}

	json.NewEncoder(w).Encode(model.RequestError{
		Error:   false,
		Message: Ok,
	})
}

func (app *App) toggleDirect(req *http.Request, relation string, postId string, userId string) error {
	post, err := app.Posts.Get(req.Context(), postId)
	if err != nil {
		return err
	}

	if relation == "like" {
		_, err = app.Posts.ToggleLike(req.Context(), post, userId)
	} else {
		_, err = app.Posts.ToggleSave(req.Context(), post, userId)
	}
	return err
}
