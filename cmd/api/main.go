package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/imrishuroy/bagshop/internal/auth"
	"github.com/imrishuroy/bagshop/internal/aws"
	"github.com/imrishuroy/bagshop/internal/catalog"
	"github.com/imrishuroy/bagshop/internal/checkout"
	"github.com/imrishuroy/bagshop/internal/config"
	"github.com/imrishuroy/bagshop/internal/discounts"
	"github.com/imrishuroy/bagshop/internal/docstore"
	"github.com/imrishuroy/bagshop/internal/handlers"
	"github.com/imrishuroy/bagshop/internal/idempotency"
	"github.com/imrishuroy/bagshop/internal/localstore"
	"github.com/imrishuroy/bagshop/internal/logging"
	"github.com/imrishuroy/bagshop/internal/offers"
	"github.com/imrishuroy/bagshop/internal/orders"
	"github.com/imrishuroy/bagshop/internal/shipping"
	"github.com/imrishuroy/bagshop/internal/validation"
	"github.com/imrishuroy/bagshop/internal/whatsapp"
)

func setupRouter(cfg config.Config, hc handlers.HandlerConfig) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.AccessLog(hc.Logger), corsMiddleware(cfg))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, hc)

	return r
}

func corsMiddleware(cfg config.Config) gin.HandlerFunc {
	cc := cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders:    []string{"Location", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cc.AllowOrigins) == 0 {
		// development: reflect any origin so the session cookie still flows
		cc.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(cc)
}

// openBackend picks the document store. The returned func releases it.
func openBackend(ctx context.Context, cfg config.Config, clients *aws.AWSClients, logger *zap.Logger) (*docstore.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		if clients == nil {
			return nil, nil, errors.New("dynamodb backend needs aws clients")
		}
		return docstore.NewDynamoBackend(clients.DynamoDB, cfg.TablePrefix, logger), func() {}, nil
	case config.BackendFirestore:
		var opts []option.ClientOption
		if cfg.FirebaseCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON)))
		}
		client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, opts...)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewFirestoreBackend(client, logger), func() { _ = client.Close() }, nil
	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return docstore.NewMemoryBackend(logger), func() {}, nil
	default:
		return nil, nil, errors.New("unknown STORE_BACKEND " + cfg.StoreBackend)
	}
}

// adminAuth wires Firebase and the local account, whichever are configured.
func adminAuth(ctx context.Context, cfg config.Config, logger *zap.Logger) (auth.Verifier, auth.SignIner, error) {
	var (
		chain  auth.Chain
		signIn auth.SignIner
	)
	if cfg.FirebaseProjectID != "" {
		fb, err := auth.NewFirebase(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsJSON, cfg.FirebaseAPIKey)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, fb)
		if fb.CanSignIn() {
			signIn = fb
		}
	}
	if local := auth.NewLocal(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret); local != nil {
		chain = append(chain, local)
		if signIn == nil {
			signIn = local
		}
	}
	if len(chain) == 0 {
		logger.Warn("no admin authentication configured; the admin API rejects every request")
	}
	return chain, signIn, nil
}

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("refusing to start with an insecure configuration", zap.String("env", cfg.Env), zap.Error(err))
	}

	var clients *aws.AWSClients
	if cfg.StoreBackend == config.BackendDynamoDB || cfg.QueueURL != "" {
		var err error
		clients, err = aws.NewAWSClients(ctx)
		if err != nil {
			logger.Fatal("failed to init aws clients", zap.Error(err))
		}
	}

	backend, closeBackend, err := openBackend(ctx, cfg, clients, logger)
	if err != nil {
		logger.Fatal("failed to open document store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeBackend()

	durable, err := localstore.OpenDurable(cfg.DataFile)
	if err != nil {
		logger.Fatal("failed to open local data file", zap.String("path", cfg.DataFile), zap.Error(err))
	}
	defer durable.Close()

	sessions, err := localstore.NewSessionStore(cfg.SessionStore, cfg.SessionDir, []byte(cfg.SessionSecret), cfg.IsProduction(), backend)
	if err != nil {
		logger.Fatal("failed to init session store", zap.Error(err))
	}

	rates := shipping.Default()
	if cfg.ShippingRatesFile != "" {
		if rates, err = shipping.Load(cfg.ShippingRatesFile); err != nil {
			logger.Fatal("failed to load shipping rates", zap.String("path", cfg.ShippingRatesFile), zap.Error(err))
		}
	}

	verifier, signIn, err := adminAuth(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init admin auth", zap.Error(err))
	}

	var publisher *aws.Publisher
	if clients != nil && cfg.QueueURL != "" {
		publisher = aws.NewPublisher(clients.SQS, cfg.QueueURL)
	}

	products := catalog.NewProducts(backend)
	offersSvc := offers.NewService(backend, products, logger)
	ordersStore := orders.NewStore(backend)
	phones := whatsapp.NewPhoneBook(durable, cfg.WhatsAppPhone, logger)

	hc := handlers.HandlerConfig{
		Logger:      logger,
		Validator:   validation.New(),
		Sessions:    sessions,
		Products:    products,
		Categories:  catalog.NewCategories(backend),
		HeroImages:  catalog.NewHeroImages(backend),
		Banners:     catalog.NewBanners(backend),
		Offers:      offersSvc,
		Discounts:   discounts.NewService(backend),
		Orders:      ordersStore,
		Shipping:    rates,
		Checkout:    checkout.NewService(ordersStore, rates, durable, phones, publisher, logger),
		Idempotency: idempotency.NewStore(backend, cfg.IdempotencyTTL),
		Phones:      phones,
		Verifier:    verifier,
		SignIn:      signIn,

		DiscountRateLimit: cfg.DiscountRateLimit,
		ExportLocation:    whatsapp.Location(),
	}

	r := setupRouter(cfg, hc)

	// if RUN_LOCAL is true, run local HTTP server for development.
	if cfg.RunLocal {
		stopSweep, err := startSweeper(cfg, offersSvc, logger)
		if err != nil {
			logger.Fatal("invalid offer sweep schedule", zap.String("spec", cfg.OfferSweepSpec), zap.Error(err))
		}
		defer stopSweep()

		runLocal(r, cfg, logger)
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// the adapter handles proxying; use adapter.ProxyWithContext for proper context propagation
		return adapter.ProxyWithContext(ctx, req)
	})
}

// startSweeper schedules the offer expiry sweep for a long-running server.
// A frozen Lambda cannot keep a schedule, so there the sweep only runs from
// POST /admin/offers/sweep and nothing is started.
func startSweeper(cfg config.Config, svc *offers.Service, logger *zap.Logger) (func(), error) {
	if !cfg.RunLocal {
		return func() {}, nil
	}
	sweeper, err := offers.NewSweeper(svc, cfg.OfferSweepSpec, logger)
	if err != nil {
		return nil, err
	}
	sweeper.Start()
	return sweeper.Stop, nil
}

func runLocal(r *gin.Engine, cfg config.Config, logger *zap.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("running local server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("local server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
