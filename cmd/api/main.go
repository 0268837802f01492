package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcclellann/credikhaata/pkg/app"
	"github.com/mcclellann/credikhaata/pkg/config"
	"github.com/mcclellann/credikhaata/pkg/logger"
)

// Server holds the application context shared by all handlers.
type Server struct {
	app *app.App
}

func NewServer(a *app.App) *Server {
	return &Server{app: a}
}

// Router registers every route. Everything except login and signup needs a
// bearer token for the current session.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/auth/login", s.loginHandler).Methods("POST")
	router.HandleFunc("/auth/signup", s.signupHandler).Methods("POST")

	protected := router.NewRoute().Subrouter()
	protected.Use(s.requireSession)

	protected.HandleFunc("/auth/logout", s.logoutHandler).Methods("POST")
	protected.HandleFunc("/auth/session", s.sessionHandler).Methods("GET")

	protected.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")
	protected.HandleFunc("/customers", s.listCustomersHandler).Methods("GET")
	protected.HandleFunc("/customers", s.createCustomerHandler).Methods("POST")
	protected.HandleFunc("/customers/{id}", s.getCustomerHandler).Methods("GET")
	protected.HandleFunc("/customers/{id}/loans", s.createLoanHandler).Methods("POST")
	protected.HandleFunc("/customers/{id}/loans/{loanId}/repayments", s.recordRepaymentHandler).Methods("POST")
	protected.HandleFunc("/customers/{id}/statement", s.statementHandler).Methods("GET")

	return router
}

func main() {
	cfg, err := config.Load(os.Getenv("KHAATA_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.Log.Dir, cfg.Log.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	a, err := app.Open(cfg)
	if err != nil {
		logger.Error("Failed to initialize app: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Restore(context.Background()); err != nil {
		logger.Error("Failed to restore state: %v", err)
		os.Exit(1)
	}
	if err := a.StartDigest(cfg.Digest.Schedule); err != nil {
		logger.Error("Failed to start overdue digest: %v", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           NewServer(a).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown: %v", err)
	}
}
