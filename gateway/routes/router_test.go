package routes

import (
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"granary/core"
	"granary/crypto"
	"granary/gateway/middleware"
	"granary/native/farm"
	"granary/storage"
)

const day = uint64(86400)

type testClock struct {
	now uint64
}

func (c *testClock) advance(seconds uint64) { c.now += seconds }

type routerEnv struct {
	node    *core.Node
	clock   *testClock
	handler http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouterEnv(t *testing.T, mutate func(*Config)) *routerEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	node, err := core.NewNode(db, key)
	require.NoError(t, err)
	clock := &testClock{now: 1_700_000_000}
	node.SetNowFunc(func() uint64 { return clock.now })

	cfg := Config{Node: node, Logger: discardLogger()}
	if mutate != nil {
		mutate(&cfg)
	}
	handler, err := New(cfg)
	require.NoError(t, err)
	return &routerEnv{node: node, clock: clock, handler: handler}
}

func (env *routerEnv) seedLedger(t *testing.T) {
	t.Helper()
	_, err := env.node.RegisterToken("SEED", "Seed Grain", 6)
	require.NoError(t, err)
	_, err = env.node.RegisterToken("GRAIN", "Harvest Grain", 6)
	require.NoError(t, err)
	require.NoError(t, env.node.MintToken("SEED", env.node.Operator(), big.NewInt(100_000_000)))
	require.NoError(t, env.node.MintToken("GRAIN", env.node.Operator(), big.NewInt(10_000_000_000)))
}

func (env *routerEnv) createFundedFarm(t *testing.T, id, policy string) *farm.Farm {
	t.Helper()
	record, err := env.node.CreateFarm(farm.CreateParams{
		ID:          id,
		StakeToken:  "SEED",
		RewardToken: "GRAIN",
		StartTime:   env.clock.now,
		EndTime:     env.clock.now + 30*day,
		RewardRate:  big.NewInt(1000),
		LockPolicy:  policy,
		Owner:       env.node.Operator(),
	})
	require.NoError(t, err)
	require.NoError(t, env.node.TokenTransfer("GRAIN", env.node.Operator(), record.Vault, record.RewardBudget))
	return record
}

func (env *routerEnv) get(t *testing.T, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func bech32String(addr [20]byte) string {
	return crypto.NewAddress(crypto.GNRPrefix, addr[:]).String()
}

func TestRouterHealthAndRequestID(t *testing.T) {
	env := newRouterEnv(t, nil)

	rec := env.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestRouterListAndGetFarms(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.seedLedger(t)
	created := env.createFundedFarm(t, "harvest-1", farm.PolicyFlexible)

	rec := env.get(t, "/v1/farms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list farmListResponse
	decodeBody(t, rec, &list)
	require.Len(t, list.Farms, 1)
	require.Equal(t, "harvest-1", list.Farms[0].ID)
	require.Equal(t, "SEED", list.Farms[0].StakeToken)
	require.Equal(t, "GRAIN", list.Farms[0].RewardToken)

	rec = env.get(t, "/v1/farms/harvest-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var single farmResponse
	decodeBody(t, rec, &single)
	require.Equal(t, created.ID, single.ID)
	require.Equal(t, created.RewardBudget.String(), single.RewardBudget)
	require.Equal(t, farm.PolicyFlexible, single.LockPolicy)
	require.Equal(t, bech32String(created.Vault), single.Vault)
	require.Equal(t, "0", single.TotalStaked)

	rec = env.get(t, "/v1/farms/unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var failure map[string]string
	decodeBody(t, rec, &failure)
	require.Contains(t, failure["error"], "not found")
}

func TestRouterFarmPosition(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.seedLedger(t)
	env.createFundedFarm(t, "harvest-1", farm.PolicyFlexible)

	staker := testAddress(0x11)
	require.NoError(t, env.node.MintToken("SEED", staker, big.NewInt(10_000_000)))
	require.NoError(t, env.node.FarmStake("harvest-1", staker, big.NewInt(10_000_000)))
	env.clock.advance(day)

	rec := env.get(t, "/v1/farms/harvest-1/positions/"+bech32String(staker), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var position positionResponse
	decodeBody(t, rec, &position)
	require.Equal(t, "harvest-1", position.FarmID)
	require.Equal(t, bech32String(staker), position.Account)
	require.Equal(t, "10000000", position.StakedAmount)
	require.Equal(t, "86400000", position.PendingReward)
	require.Equal(t, "0", position.ClaimedTotal)

	// An account that never staked reads back as an empty position.
	rec = env.get(t, "/v1/farms/harvest-1/positions/"+bech32String(testAddress(0x22)), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &position)
	require.Equal(t, "0", position.StakedAmount)
	require.Equal(t, "0", position.PendingReward)

	rec = env.get(t, "/v1/farms/harvest-1/positions/not-an-address", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterVesting(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.seedLedger(t)

	grantee := testAddress(0x42)
	start := env.clock.now
	_, err := env.node.VestingAddGrant(env.node.Operator(), grantee, "GRAIN", big.NewInt(1000), start, start+30*day, start+365*day)
	require.NoError(t, err)
	env.clock.advance(180 * day)

	rec := env.get(t, "/v1/vesting/"+bech32String(grantee), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var grant vestingResponse
	decodeBody(t, rec, &grant)
	require.Equal(t, bech32String(grantee), grant.Grantee)
	require.Equal(t, "GRAIN", grant.Token)
	require.Equal(t, "1000", grant.Amount)
	require.Equal(t, "0", grant.Claimed)
	require.Equal(t, "493", grant.Claimable)
	require.Equal(t, start+30*day, grant.Cliff)

	rec = env.get(t, "/v1/vesting/"+bech32String(testAddress(0x43)), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterTokenBalance(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.seedLedger(t)

	holder := testAddress(0x33)
	require.NoError(t, env.node.MintToken("GRAIN", holder, big.NewInt(777)))

	rec := env.get(t, "/v1/tokens/GRAIN/balances/"+bech32String(holder), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance balanceResponse
	decodeBody(t, rec, &balance)
	require.Equal(t, "GRAIN", balance.Symbol)
	require.Equal(t, uint8(6), balance.Decimals)
	require.Equal(t, "777", balance.Balance)

	rec = env.get(t, "/v1/tokens/ACORN/balances/"+bech32String(holder), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRequiresTokenWhenAuthEnabled(t *testing.T) {
	secret := "router-test-secret"
	env := newRouterEnv(t, func(cfg *Config) {
		cfg.Authenticator = middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: secret,
		}, discardLogger())
	})
	env.seedLedger(t)

	rec := env.get(t, "/v1/farms", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Health stays open so probes never need credentials.
	rec = env.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	claims := jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": middleware.ScopeRead,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+signed)
	rec = env.get(t, "/v1/farms", header)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRateLimitsClients(t *testing.T) {
	env := newRouterEnv(t, func(cfg *Config) {
		cfg.RateLimiter = middleware.NewRateLimiter(middleware.RateLimit{RequestsPerMinute: 1, Burst: 1}, discardLogger())
	})
	env.seedLedger(t)

	rec := env.get(t, "/v1/farms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.get(t, "/v1/farms", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Health checks bypass the limiter.
	rec = env.get(t, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
