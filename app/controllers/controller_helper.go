package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/portraitforge/portraitforge/internal/pkg/abuseguard"
	"github.com/portraitforge/portraitforge/internal/pkg/accountlink"
	"github.com/portraitforge/portraitforge/internal/pkg/database"
	"github.com/portraitforge/portraitforge/internal/pkg/env"
	"github.com/portraitforge/portraitforge/internal/pkg/generation"
	"github.com/portraitforge/portraitforge/internal/pkg/ledger"
	"github.com/portraitforge/portraitforge/internal/pkg/packcredit"
	"github.com/portraitforge/portraitforge/internal/pkg/payments"
	"github.com/portraitforge/portraitforge/internal/pkg/preview"
	"github.com/portraitforge/portraitforge/internal/pkg/storage"
)

// Session keys
const (
	AUTH_KEY  string = "authenticated"
	USER_ID   string = "user_id"
	USER_NAME string = "username"
	GUEST_ID  string = "guest_id"
)

// Services shared by the controllers, wired once at router install time.
var (
	ledgerService  *ledger.Service
	packService    *packcredit.Service
	abuseGuard     *abuseguard.Guard
	orchestrator   *generation.Orchestrator
	accountLinker  *accountlink.Service
	paymentService *payments.Service
	objectStore    *storage.Client
	sweeper        *generation.Sweeper
)

// InitializeControllers wires the service layer from the global DB handle
// and environment. Called once by the router.
func InitializeControllers() {
	db := database.GetDB()

	freeCap := envInt("FREE_GENERATION_CAP", ledger.DefaultFreeCap)
	abuseCap := envInt("ABUSE_WINDOW_CAP", abuseguard.DefaultCap)

	ledgerService = ledger.NewServiceFromDB(db, freeCap)
	packService = packcredit.NewServiceFromDB(db)
	accountLinker = accountlink.NewServiceFromDB(db)
	paymentService = payments.NewServiceFromDB(db)

	guard, err := abuseguard.NewGuardFromDB(db, env.GetEnv("FINGERPRINT_SECRET", ""), abuseCap, abuseguard.DefaultWindow)
	if err != nil {
		panic(err)
	}
	abuseGuard = guard

	storageCfg, err := storage.LoadConfig()
	if err != nil {
		panic(err)
	}
	objectStore, err = storage.NewClient(storageCfg)
	if err != nil {
		panic(err)
	}

	providerBase := env.GetEnv("GENERATION_PROVIDER_URL", "")
	inline, remote := generation.NewHTTPProviders(providerBase, env.GetEnv("GENERATION_PROVIDER_KEY", ""))

	deadline := time.Duration(envInt("GENERATION_DEADLINE_MINUTES", 10)) * time.Minute
	orchestrator = generation.NewOrchestratorFromDB(db, inline, remote, objectStore,
		preview.NewRenderer(preview.DefaultMaxWidth), deadline)
	sweeper = generation.NewSweeper(generation.NewRepository(db), deadline, time.Minute)

	log.Infof("[Controllers] Initialized (free_cap=%d, abuse_cap=%d, deadline=%s)", freeCap, abuseCap, deadline)
}

// GetAbuseGuard exposes the guard for the principal-context middleware.
func GetAbuseGuard() *abuseguard.Guard {
	return abuseGuard
}

// GetSweeper exposes the timeout sweeper so main can manage its lifecycle.
func GetSweeper() *generation.Sweeper {
	return sweeper
}

func envInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
