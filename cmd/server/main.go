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

	"github.com/AgutuSam/houseTreePWA/internal/api"
	"github.com/AgutuSam/houseTreePWA/internal/config"
	"github.com/AgutuSam/houseTreePWA/internal/handler"
	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/kafka"
	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/redis"
	"github.com/AgutuSam/houseTreePWA/internal/mpesa"
	"github.com/AgutuSam/houseTreePWA/internal/observability"
	mongorepo "github.com/AgutuSam/houseTreePWA/internal/repository/mongo"
	pgrepo "github.com/AgutuSam/houseTreePWA/internal/repository/postgres"
	service "github.com/AgutuSam/houseTreePWA/internal/services"
	"github.com/AgutuSam/houseTreePWA/internal/watch"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg := config.Load()

	shutdown, _ := observability.Setup("housetree")
	defer shutdown(context.Background())

	// Postgres holds the payments ledger.
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	// Mongo holds listings and profiles.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database(cfg.MongoDB)

	propertyRepo := mongorepo.NewMongoPropertyRepository(mongoDB)
	userRepo := mongorepo.NewMongoUserRepository(mongoDB)
	imageRepo, err := mongorepo.NewGridFSImageRepository(mongoDB)
	if err != nil {
		log.Fatalf("Failed to open GridFS bucket: %v", err)
	}
	transactionRepo := pgrepo.NewPostgresTransactionRepository(db)

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	gateway := mpesa.NewClient(cfg.Mpesa)

	userService := service.NewUserService(userRepo, propertyRepo, redisClient, cfg.JWTSecret)
	propertyService := service.NewPropertyService(propertyRepo, userRepo, imageRepo, redisClient)
	paymentService := service.NewPaymentService(transactionRepo, propertyRepo, gateway, producer)

	// Settlement side effects run off the payments topic.
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, "payments", "housetree-payments", userRepo, propertyRepo)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	go consumer.Consume(consumerCtx)
	defer consumer.Close()
	defer stopConsumer()

	watcher := watch.NewManager(watch.NewMongoBackend(propertyRepo.Collection()))

	h := handler.NewHandler(userService, propertyService, paymentService, watcher)
	router := api.SetupRouter(h, redisClient, cfg.JWTSecret)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}
	go func() {
		log.Printf("Starting server on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
