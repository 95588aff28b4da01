package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pictura/pictura/model"
)

// PostHandler creates, reads and deletes posts
func (app *App) PostHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := strings.TrimPrefix(req.URL.Path, "/posts/")

	switch {
	case req.Method == http.MethodPost && id == "new":
		app.createPost(w, req)
	case req.Method == http.MethodGet && id != "":
		app.getPost(w, req, id)
	case req.Method == http.MethodDelete && id != "":
		app.deletePost(w, req, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
	}
}

func (app *App) createPost(w http.ResponseWriter, req *http.Request) {
	user, signed := app.identify(req)
	if !signed {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidToken,
		})
		return
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

	var post model.PostBody
	if err := json.Unmarshal(body, &post); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidBody,
		})
		return
	}

	created, err := app.Posts.Create(req.Context(), user.Id, post)
	if err != nil {
		jsonError(w, err, ErrorInvalidPost)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (app *App) getPost(w http.ResponseWriter, req *http.Request, id string) {
	post, err := app.Posts.Get(req.Context(), id)
	if err != nil {
		jsonError(w, err, ErrorInvalidPost)
		return
	}

	json.NewEncoder(w).Encode(post)
}

// deletePost removes the post from the caller's view first, so
// the screen updates before the store confirms. A post absent
// from any view falls back to a direct delete
func (app *App) deletePost(w http.ResponseWriter, req *http.Request, id string) {
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

	err := v.Delete(req.Context(), id, user.Id)
	if errors.Is(err, model.ErrNotFound) {
		post, getErr := app.Posts.Get(req.Context(), id)
		if getErr != nil {
			jsonError(w, getErr, ErrorInvalidPost)
			return
		}
		err = app.Posts.Delete(req.Context(), post, user.Id)
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
