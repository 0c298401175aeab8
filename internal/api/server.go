package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatthief/internal/chat"
	"chatthief/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type Options struct {
	CORSOrigins []string
}

type Server struct {
	opts   Options
	log    *slog.Logger
	econ   *economy.Service
	router *chat.Router
	mux    *chi.Mux
}

func New(opts Options, logger *slog.Logger, econ *economy.Service, router *chat.Router) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:   opts,
		log:    logger,
		econ:   econ,
		router: router,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// requestID assigns a uuid unless the caller sent an id, and echoes it in the
// response. middleware.RequestID then picks it up from the header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	r := s.mux
	r.Use(requestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/purchases", s.handlePurchase)
		r.Post("/shares", s.handleTransfer(economy.TransferShare))
		r.Post("/gifts", s.handleTransfer(economy.TransferGive))

		r.Get("/users/{name}", s.handleUser)
		r.Get("/users/{name}/commands", s.handleUserCommands)
		r.Get("/users/{name}/history", s.handleUserHistory)
		r.Get("/commands/{name}", s.handleCommand)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/economy", s.handleEconomy)

		r.Post("/chat", s.handleChat)
	})
}

type PurchaseRequest struct {
	User    string `json:"user"`
	Command string `json:"command"`
}

type PurchaseResponse struct {
	Outcome economy.PurchaseOutcome `json:"outcome"`
	Message string                  `json:"message"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var in PurchaseRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.econ.Purchase(r.Context(), in.User, in.Command)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PurchaseResponse{Outcome: out, Message: chat.FormatPurchase(out)})
}

type TransferRequest struct {
	Actor       string `json:"actor"`
	Command     string `json:"command"`
	Beneficiary string `json:"beneficiary"`
}

type TransferResponse struct {
	Outcome economy.TransferOutcome `json:"outcome"`
	Message string                  `json:"message"`
}

func (s *Server) handleTransfer(mode economy.TransferMode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in TransferRequest
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		run := s.econ.Share
		if mode == economy.TransferGive {
			run = s.econ.Give
		}
		out, err := run(r.Context(), in.Actor, in.Command, in.Beneficiary)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TransferResponse{Outcome: out, Message: chat.FormatTransfer(out)})
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	stats, err := s.econ.Stats(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserCommands(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	names, err := s.econ.Commands(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": economy.NormalizeUsername(name), "commands": names})
}

func (s *Server) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.econ.History(r.Context(), chi.URLParam(r, "name"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []economy.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	info, err := s.econ.CommandInfo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind, err := economy.ParseLeaderboardKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.econ.Leaderboard(r.Context(), kind, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []economy.LeaderboardRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "rows": rows})
}

func (s *Server) handleEconomy(w http.ResponseWriter, r *http.Request) {
	sum, err := s.econ.Summary(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type ChatRequest struct {
	User    string `json:"user"`
	Message string `json:"message"`
}

// handleChat runs one line through the same router the bot uses.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var in ChatRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.User) == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	resp, err := s.router.Route(r.Context(), in.User, in.Message)
	if err != nil {
		s.log.Error("chat route failed", "user", in.User, "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrUnknownCommand):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, economy.ErrEmptyUsername), errors.Is(err, economy.ErrNegativeBalance),
		errors.Is(err, economy.ErrUnknownLeaderboard):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, economy.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
