package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pictura/pictura/auth"
	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/feed"
	"github.com/pictura/pictura/helpers"
	"github.com/pictura/pictura/model"
	"github.com/pictura/pictura/post"
	"github.com/pictura/pictura/router"
	"github.com/pictura/pictura/view"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

func main() {
	// Get key-value in .env file
	godotenv.Load()

	client, trace, closeTracer := helpers.InitTracer()
	defer closeTracer()

	// An in-memory store for local development, the graph
	// otherwise
	var store database.DocumentStore
	if os.Getenv("STORE") == "memory" {
		store = database.NewMemory()
	} else {
		graph, err := database.InitGraph(context.Background())
		if err != nil {
			log.Fatalln("Cannot connect to graph database:", err)
		}
		store = graph
	}

	cache := database.InitCache()
	helpers.InitNATS()

	var uploader post.Uploader
	if os.Getenv("BLOB_ADDRESS") != "" {
		uploader = &post.BlobUploader{Client: client}
	}

	identity := auth.NewService(store)
	posts := post.NewService(store, cache, uploader)
	engine := feed.NewEngine(store, cache)
	views := view.NewRegistry(engine, posts, cache)

	// Post lifecycle messages from every instance converge here
	helpers.Subscribe(helpers.PostsSubject, views.HandlePostEvent)

	// A sign-out tears the departing user's views down
	var lastUser string
	identity.OnChange(func(user model.User, signed bool) {
		if !signed && lastUser != "" {
			views.Drop(lastUser)
		}
		lastUser = user.Id
	})

	scheduler := cron.New()
	views.StartSweeper(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	app := &router.App{
		Auth:  identity,
		Posts: posts,
		Views: views,
	}

	// Create routes
	mux := http.NewServeMux()
	mux.HandleFunc("/", router.Index)
	mux.HandleFunc("/signup", app.SignUpHandler)
	mux.HandleFunc("/signin", app.SignInHandler)
	mux.HandleFunc("/signout", app.SignOutHandler)
	mux.HandleFunc("/feed", app.FeedHandler)
	mux.HandleFunc("/feed/", app.FeedHandler)
	mux.HandleFunc("/posts/", app.PostHandler)
	mux.HandleFunc("/relation/", app.RelationHandler)
	mux.HandleFunc("/comment/", app.CommentHandler)
	mux.HandleFunc("/users/", app.UsersHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(helpers.GetRegistery(), promhttp.HandlerOpts{}))

	counted := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		helpers.IncrementRequests()
		mux.ServeHTTP(w, req)
	})

	log.Println("Server is starting on port", os.Getenv("PORT"))

	// Create web server
	server := &http.Server{
		Addr:              ":" + os.Getenv("PORT"),
		Handler:           trace(counted),
		ReadHeaderTimeout: 3 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil {
		panic(err)
	}
}
