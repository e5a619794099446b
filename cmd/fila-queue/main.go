package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/config"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/httpapi"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/hub"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/notify"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/queue"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store/memory"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store/postgres"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/telemetry"
)

type subscribeMessage struct {
	Action string `json:"action"`
	ShopID string `json:"shop_id"`
}

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup(cfg.ServiceName, cfg.OTLPEndpoint)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	st, closeStore := openStore(cfg)
	defer closeStore()

	h := hub.New()
	svc := queue.New(st, h, queue.Options{LockTimeout: cfg.LockWaitTimeout})

	provider := notify.NewProvider(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	worker := notify.NewWorker(st, provider, h)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go worker.Run(workerCtx)

	handler := httpapi.NewHandler(svc)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:   cfg.RateLimitPerMinute,
		IPBurst:       cfg.RateLimitBurst,
		ShopPerMinute: cfg.ShopRateLimitPerMinute,
		ShopBurst:     cfg.ShopRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/", handler.Routes())

	sockjsHandler := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := hub.NewClient(uuid.NewString())
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			var parsed subscribeMessage
			if err := json.Unmarshal([]byte(msg), &parsed); err != nil {
				continue
			}
			switch parsed.Action {
			case "subscribe":
				shopID := strings.TrimSpace(parsed.ShopID)
				if shopID == "" {
					continue
				}
				h.Subscribe(client, shopID)
			case "unsubscribe":
				h.Unsubscribe(client)
			}
		}
	})
	mux.Handle("/realtime/", sockjsHandler)

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), cfg.ServiceName)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s listening on %s", cfg.ServiceName, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openStore connects to Postgres when DB_DSN is set. Without it, a seeded
// in-memory store backs the server so local runs need no database.
func openStore(cfg config.Config) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		log.Printf("DB_DSN not set, using in-memory store")
		return seedMemoryStore(), func() {}
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return postgres.NewStore(pool), pool.Close
}

func seedMemoryStore() *memory.Store {
	st := memory.New()
	st.PutShop(models.Shop{
		ShopID: "demo",
		Slug:   "demo",
		Name:   "Barbearia Demo",
		Settings: models.ShopSettings{
			DefaultServiceDuration: 30 * time.Minute,
			Timezone:               "America/Sao_Paulo",
		},
	})
	st.PutService(models.Service{ServiceID: "corte", ShopID: "demo", Name: "Corte", Duration: 30 * time.Minute, Active: true})
	st.PutService(models.Service{ServiceID: "barba", ShopID: "demo", Name: "Barba", Duration: 20 * time.Minute, Active: true})
	st.PutBarber(models.Barber{BarberID: "rafael", ShopID: "demo", Name: "Rafael", IsActive: true, IsPresent: true})
	return st
}
