package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/reflection"

	grpcctx "github.com/dtroode/telcoassist-server/internal/api/grpc/context"
	"github.com/dtroode/telcoassist-server/internal/api/grpc/router"
	grpcServer "github.com/dtroode/telcoassist-server/internal/api/grpc/server"
	"github.com/dtroode/telcoassist-server/internal/config"
	"github.com/dtroode/telcoassist-server/internal/lock"
	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/nlu"
	"github.com/dtroode/telcoassist-server/internal/repository/memory"
	"github.com/dtroode/telcoassist-server/internal/repository/postgres"
	"github.com/dtroode/telcoassist-server/internal/server"
	"github.com/dtroode/telcoassist-server/internal/service"
	storage "github.com/dtroode/telcoassist-server/internal/storage/minio"
	"github.com/dtroode/telcoassist-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

// stores groups the persistence backends selected by DATABASE_DRIVER.
type stores struct {
	sessions  model.SessionStore
	ledger    model.LedgerStore
	customers model.CustomerStore
	features  model.FeatureStore
	audit     model.AuditSink
	closers   []io.Closer
}

func (s *stores) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer st.Close()

	locker := newLocker(cfg, logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Bedrock.Region))
	if err != nil {
		logger.Fatal("failed to load aws config", "error", err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Bedrock.RPS), cfg.Bedrock.Burst)
	retryPolicy := nlu.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}
	guardrail := nlu.Guardrail{ID: cfg.Bedrock.GuardrailID, Version: cfg.Bedrock.GuardrailVersion}

	invoker := nlu.NewInvoker(bedrockruntime.NewFromConfig(awsCfg), cfg.Bedrock.ModelID, guardrail, limiter, retryPolicy, logger)
	slang := nlu.NewSlangNormalizer(newSlangStorage(ctx, cfg, logger), cfg.Storage.SlangKey, logger)
	classifier, err := nlu.NewClassifier(invoker, slang, logger)
	if err != nil {
		logger.Fatal("failed to create classifier", "error", err)
	}
	generator := nlu.NewGenerator(invoker, logger)
	retriever := nlu.NewRetriever(
		bedrockagentruntime.NewFromConfig(awsCfg),
		cfg.Bedrock.KnowledgeBaseID,
		cfg.Bedrock.KBModelARN,
		guardrail,
		generator,
		limiter,
		retryPolicy,
		logger,
	)

	sessions := service.NewSessions(st.sessions, cfg.Session.TTL, cfg.Session.UpdateRetries, logger)
	guard := service.NewGuard(st.sessions, st.customers, service.GuardPolicy{
		MaxAttempts: cfg.Auth.MaxPinAttempts,
		Lockout:     cfg.Auth.PinLockout,
		Iterations:  cfg.Auth.PBKDF2Iterations,
	}, logger)
	executor := service.NewExecutor(st.ledger, st.features, logger)
	orchestrator := service.NewOrchestrator(
		sessions,
		guard,
		executor,
		st.customers,
		classifier,
		generator,
		retriever,
		st.audit,
		locker,
		cfg.Auth.PinLength,
		cfg.Bedrock.ModelID,
		logger,
	)

	ctxMgr := grpcctx.NewManager()
	conversation := service.NewConversation(sessions, orchestrator, st.customers, ctxMgr, logger)
	tokenManager := token.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL)

	grpcServer := registerGRPCServer(logger, conversation, tokenManager, ctxMgr, fmt.Sprintf(":%s", cfg.GRPC.Port))

	var sl model.SecurityLayer
	if cfg.GRPC.EnableHTTPS {
		sl, err = server.NewTLSListener(cfg.GRPC.CertFileName, cfg.GRPC.PrivateKeyFileName)
		if err != nil {
			logger.Fatal("failed to initialize TLS", "error", err)
		}
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(grpcServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := grpcServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", grpcServer.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		sessionStore := memory.NewSessionStore()
		customerStore := memory.NewCustomerStore()
		return &stores{
			sessions:  sessionStore,
			ledger:    sessionStore,
			customers: customerStore,
			features:  customerStore,
			audit:     memory.NewAuditSink(),
		}, nil
	}

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	auditDB, err := postgres.OpenAuditDB(cfg.Audit.DSN)
	if err != nil {
		db.Close()
		return nil, err
	}
	auditRepo := postgres.NewAuditRepository(auditDB, cfg.Audit.Timeout)
	sessionRepo := postgres.NewSessionRepository(db)
	customerRepo := postgres.NewCustomerRepository(db)

	return &stores{
		sessions:  sessionRepo,
		ledger:    sessionRepo,
		customers: customerRepo,
		features:  customerRepo,
		audit:     auditRepo,
		closers:   []io.Closer{auditRepo, db},
	}, nil
}

func newLocker(cfg *config.Config, logger *logger.Logger) model.SessionLocker {
	if !cfg.Redis.Enabled {
		return lock.Noop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	logger.Info("session lock enabled", "addr", cfg.Redis.Addr)
	return lock.NewRedisLocker(client, cfg.Redis.LockTTL, cfg.Redis.LockWait, logger)
}

// newSlangStorage returns nil when the bucket cannot be reached; the
// classifier then runs without slang normalization.
func newSlangStorage(ctx context.Context, cfg *config.Config, logger *logger.Logger) model.ObjectStorage {
	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Error("failed to create minio client", "error", err)
		return nil
	}
	storageClient, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Error("failed to initialize storage client", "error", err)
		return nil
	}
	return storageClient
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}

func registerGRPCServer(
	logger *logger.Logger,
	conversation *service.Conversation,
	tokens model.TokenManager,
	ctxMgr model.ContextManager,
	addr string,
) *grpcServer.GRPCServer {
	r := router.New(conversation, tokens, ctxMgr, logger)
	s := r.Register()

	reflection.Register(s)

	return grpcServer.NewGRPCServer(s, addr)
}
