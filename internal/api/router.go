package api

import (
	"fmt"      // Error formatting
	"net/http" // HTTP status codes

	"wallet_saga/internal/config"     // Service names
	"wallet_saga/internal/domain"     // Entry kinds
	"wallet_saga/internal/ledger"     // Wallet ledger
	"wallet_saga/internal/metrics"    // Prometheus middleware
	"wallet_saga/internal/middleware" // Auth and logging middleware
	"wallet_saga/internal/saga"       // Sagas
	"wallet_saga/internal/store"      // Repositories

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// Deps are the components a service's routes need. Only those of the hosted
// service have to be set.
type Deps struct {
	Service       string
	JWTSecret     string
	Redis         *redis.Client // Optional cache
	Ledger        *ledger.Ledger
	Notify        *saga.Notify
	Users         *store.Users
	Wallets       WalletCreator
	Payments      *saga.PaymentSaga
	Credits       *saga.CreditSaga
	Sagas         *store.Sagas
	Notifications *store.Notifications
}

// NewRouter builds the gin engine of one service
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Service), metrics.Middleware())
	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		return nil, err
	}
	r.GET("/health", func(c *gin.Context) {
		ok(c, http.StatusOK, gin.H{"service": d.Service, "status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	admin := r.Group("/admin", auth, middleware.OperatorOnly())

	switch d.Service {
	case config.ServiceUser:
		r.POST("/users", RegisterHandler(d.Users, d.Wallets)) // Registration endpoint
		r.GET("/users", ListUsersHandler(d.Users, d.Redis))   // List users endpoint
		r.GET("/users/:id", GetUserHandler(d.Users))          // Get user endpoint
	case config.ServiceWallet:
		wallets := r.Group("/wallets")
		wallets.POST("", CreateWalletHandler(d.Ledger))                           // Create wallet endpoint
		wallets.GET("/:userId", GetWalletHandler(d.Ledger, d.Redis))              // Get wallet endpoint
		wallets.POST("/:userId/topup", TopupHandler(d.Ledger, d.Redis, d.Notify)) // Topup endpoint
		internal := wallets.Group("", auth, middleware.ServiceOnly())             // Saga-driven ledger routes
		internal.POST("/:userId/credit", MutateHandler(d.Ledger, d.Redis, domain.EntryCredit))
		internal.POST("/:userId/deduct", MutateHandler(d.Ledger, d.Redis, domain.EntryDebit))
		internal.POST("/:userId/reverse", ReverseHandler(d.Ledger, d.Redis))
		admin.GET("/wallets/:userId/entries", ListEntriesHandler(d.Ledger)) // Ledger entries endpoint
	case config.ServicePayment:
		r.POST("/payments", PayHandler(d.Payments, d.Redis))                   // Payment endpoint
		r.GET("/payments/:userId", PaymentHistoryHandler(d.Payments, d.Redis)) // Payment history endpoint
		admin.GET("/sagas", ListSagasHandler(d.Sagas, d.Redis))                // Saga log endpoint
		admin.GET("/sagas/:id", GetSagaHandler(d.Sagas))                       // Saga record endpoint
	case config.ServiceCredit:
		r.POST("/credits", ApplyCreditHandler(d.Credits, d.Redis))       // Credit application endpoint
		r.POST("/credits/:id/pay", PayCreditHandler(d.Credits, d.Redis)) // Credit repayment endpoint
		r.GET("/credits/:id", ListCreditsHandler(d.Credits, d.Redis))    // Credit list endpoint, :id is the user
		admin.GET("/sagas", ListSagasHandler(d.Sagas, d.Redis))          // Saga log endpoint
		admin.GET("/sagas/:id", GetSagaHandler(d.Sagas))                 // Saga record endpoint
	case config.ServiceNotification:
		r.POST("/notifications", SendNotificationHandler(d.Notifications))     // Send endpoint
		r.GET("/notifications/:id", ListNotificationsHandler(d.Notifications)) // List endpoint, :id is the user
		r.PATCH("/notifications/:id/read", MarkReadHandler(d.Notifications))   // Mark read endpoint
	default:
		return nil, fmt.Errorf("unknown service %q", d.Service)
	}
	return r, nil
}
