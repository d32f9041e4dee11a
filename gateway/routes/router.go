package routes

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"granary/gateway/middleware"
	"granary/native/farm"
	"granary/native/token"
	"granary/native/vesting"
)

// Node is the read surface the gateway exposes. *core.Node satisfies it.
type Node interface {
	ListFarms() ([]*farm.Farm, error)
	GetFarm(id string) (*farm.Farm, error)
	FarmPosition(id string, account [20]byte) (*farm.Position, error)
	FarmPendingRewards(id string, account [20]byte) (*big.Int, error)
	VestingGrant(grantee [20]byte) (*vesting.Grant, error)
	VestingClaimable(grantee [20]byte) (*big.Int, error)
	TokenInfo(symbol string) (*token.Token, bool, error)
	TokenBalance(symbol string, addr [20]byte) (*big.Int, error)
}

// Config assembles the router. Only Node is required; nil middleware simply
// leaves that layer out.
type Config struct {
	Node          Node
	Logger        *slog.Logger
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	CORS          middleware.CORSConfig
}

// New builds the REST query router. All /v1 routes are read-only and backed
// directly by the node; mutations stay on the RPC surface.
func New(cfg Config) (http.Handler, error) {
	if cfg.Node == nil {
		return nil, errors.New("routes: node required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := &api{node: cfg.Node, logger: logger.With("component", "gateway")}
	access := middleware.NewAccessLogger(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORS))

	r.With(access.Middleware("healthz")).Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware())
		}
		if cfg.Authenticator != nil {
			sr.Use(cfg.Authenticator.Middleware(middleware.ScopeRead))
		}
		sr.With(access.Middleware("farms.list")).Get("/farms", api.listFarms)
		sr.With(access.Middleware("farms.get")).Get("/farms/{id}", api.getFarm)
		sr.With(access.Middleware("farms.position")).Get("/farms/{id}/positions/{address}", api.getFarmPosition)
		sr.With(access.Middleware("vesting.get")).Get("/vesting/{address}", api.getVesting)
		sr.With(access.Middleware("tokens.balance")).Get("/tokens/{symbol}/balances/{address}", api.getTokenBalance)
	})

	return r, nil
}
