package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xs2a.org/internal/authn"
	"xs2a.org/internal/basket"
	"xs2a.org/internal/consent"
	"xs2a.org/internal/httpapi"
	"xs2a.org/internal/obs"
	"xs2a.org/internal/payment"
	"xs2a.org/internal/profile"
	"xs2a.org/internal/sca"
	"xs2a.org/internal/vault"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// Инициализация observability (регистрация метрик, JSON-логгер и т.п.)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Подключение к БД (если задан DSN), чтобы /readyz мог пинговать БД
	var db *sql.DB
	if dsn := os.Getenv("XS2A_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	aspsp, err := profile.FromEnv()
	if err != nil {
		log.Fatalf("aspsp profile: %v", err)
	}

	var (
		vaultStore vault.Store
		authStore  sca.AuthorisationStore
		conStore   consent.Store
		payStore   payment.Store
		bskStore   basket.Store
	)
	if db != nil {
		vaultStore = vault.NewPGStore(db)
		authStore = sca.NewPGStore(db)
		conStore = consent.NewPGStore(db)
		payStore = payment.NewPGStore(db)
		bskStore = basket.NewPGStore(db)
	} else {
		vaultStore = vault.NewInMemoryStore()
		authStore = sca.NewInMemoryStore()
		conStore = consent.NewInMemoryStore()
		payStore = payment.NewInMemoryStore()
		bskStore = basket.NewInMemoryStore()
	}

	v := vault.New(vaultStore)
	consents := consent.NewService(conStore, v)
	payments := payment.NewService(payStore, v)
	baskets := basket.NewService(bskStore, v)

	// Без настроенного бэкенда аутентификации используем in-memory c demo PSU.
	psuAuth := authn.NewInMemory()
	seedDemoPsu(psuAuth)

	scaSvc := sca.NewService(authStore, v, aspsp, psuAuth, []sca.ParentService{
		consent.NewAdapter(consents),
		payment.NewAdapter(payments),
		payment.NewCancellationAdapter(payments),
		basket.NewAdapter(baskets),
	})

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, scaSvc, consents, payments, baskets, aspsp)

	srv := &http.Server{
		Addr:              listenAddr(),
		Handler:           api.Handler(), // уже обёрнут метриками в httpapi
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting xs2a-gateway %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// Фоновая зачистка протухших авторизаций. Read path и так лениво
	// переводит их в expired; тикер лишь ускоряет финализацию родителей.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if interval := sweepInterval(); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case <-ticker.C:
					if n, err := scaSvc.ExpireStale(sweepCtx); err != nil {
						log.Printf("sweep: %v", err)
					} else if n > 0 {
						log.Printf("sweep: expired %d authorisation(s)", n)
					}
				}
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func listenAddr() string {
	if addr := os.Getenv("XS2A_LISTEN_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

func sweepInterval() time.Duration {
	raw := os.Getenv("XS2A_SWEEP_INTERVAL")
	if raw == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid XS2A_SWEEP_INTERVAL %q, sweeper disabled", raw)
		return 0
	}
	return d
}

// seedDemoPsu registers credentials for local runs. Production deployments
// plug a real authenticator instead.
func seedDemoPsu(m *authn.InMemory) {
	password := os.Getenv("XS2A_DEMO_PSU_PASSWORD")
	if password == "" {
		return
	}
	if err := m.Register("psu-demo", password, []sca.ScaMethod{
		{ID: "sms-otp-1", Name: "SMS OTP", Type: "SMS_OTP"},
		{ID: "push-app-1", Name: "Banking app", Type: "PUSH_OTP", Decoupled: true},
	}, "123456"); err != nil {
		log.Printf("demo psu: %v", err)
	}
}
