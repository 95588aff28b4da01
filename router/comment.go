package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pictura/pictura/model"
)

// CommentHandler adds a top-level comment or, when reply_to is
// set, a reply under an existing comment. Both go through the
// caller's view so the thread grows on screen right away
func (app *App) CommentHandler(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorMethodNotAllowed,
		})
		return
	}

	postId := strings.TrimPrefix(req.URL.Path, "/comment/")
	if postId == "" {
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

	body, err := io.ReadAll(req.Body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorUnableReadBody,
		})
		return
	}

	var comment model.CommentBody
	if err := json.Unmarshal(body, &comment); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.RequestError{
			Error:   true,
			Message: ErrorInvalidBody,
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

	var created model.Comment
	if comment.ReplyTo == "" {
		created, err = v.AddComment(req.Context(), postId, user.Id, comment.Text)
	} else {
		created, err = v.AddReply(req.Context(), postId, comment.ReplyTo, user.Id, comment.Text)
	}

	// Commenting on a post outside the view still works against
	// the store directly
	if errors.Is(err, model.ErrNotFound) && comment.ReplyTo == "" {
		var post model.Post
		if post, err = app.Posts.Get(req.Context(), postId); err == nil {
			created, err = app.Posts.AddComment(req.Context(), post, user.Id, comment.Text)
		}
	} else if errors.Is(err, model.ErrNotFound) && comment.ReplyTo != "" {
		created, err = app.Posts.AddReply(req.Context(), postId, comment.ReplyTo, user.Id, comment.Text)
	}
	if err != nil {
		jsonError(w, err, ErrorInvalidComment)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}
