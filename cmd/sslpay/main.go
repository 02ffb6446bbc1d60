package main

import (
	// Go Internal Packages
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	// Local Packages
	config "sslpay/config"
	events "sslpay/events"
	gateway "sslpay/gateway"
	kafka "sslpay/kafka"
	mongodb "sslpay/repositories/mongodb"
	redis "sslpay/repositories/redis"
	server "sslpay/server"
	ipnsvc "sslpay/services/ipn"
	payments "sslpay/services/payments"
	signature "sslpay/signature"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// LoadSecrets Loads the secret variables and overrides the config
func LoadSecrets(k config.Config) config.Config {
	StoreID := os.Getenv("SSLCZ_STORE_ID")
	if StoreID != "" {
		k.Gateway.StoreID = StoreID
	}

	StorePassword := os.Getenv("SSLCZ_STORE_PASSWORD")
	if StorePassword != "" {
		k.Gateway.StorePassword = StorePassword
	}

	MongoURI := os.Getenv("MONGO_URI")
	if MongoURI != "" {
		k.Mongo.URI = MongoURI
	}

	RedisURI := os.Getenv("REDIS_URI")
	if RedisURI != "" {
		k.Redis.URI = RedisURI
	}

	KafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if KafkaBrokers != "" {
		k.Kafka.Brokers = strings.Split(KafkaBrokers, ",")
	}

	IsProdMode := os.Getenv("IS_PROD_MODE")
	if IsProdMode != "" {
		k.IsProdMode = IsProdMode == "true"
	}
	return k
}

// LoadConfig loads the default configuration and overrides it with the config file
// specified by the path defined in the config flag
func LoadConfig() *koanf.Koanf {
	configPathMsg := "Path to the application config file"
	configPath := kingpin.Flag("config", configPathMsg).Short('c').Default("config.yml").String()

	kingpin.Parse()
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if *configPath != "" {
		_ = k.Load(file.Provider(*configPath), yaml.Parser())
	}
	return k
}

func main() {
	k := LoadConfig()
	appKonf := config.Config{}

	// Unmarshalling config into struct
	err := k.Unmarshal("", &appKonf)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Update and Validate config before starting the server
	updatedKonf := LoadSecrets(appKonf)
	if err = updatedKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !updatedKonf.IsProdMode {
		k.Print()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(k.String("logger.level")))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = updatedKonf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mongo Connection
	mongoClient, err := mongodb.Connect(ctx, updatedKonf.Mongo.URI)
	if err != nil {
		logger.Fatal("cannot create mongo client", zap.Error(err))
	}

	// Redis Connection
	redisClient, err := redis.Connect(ctx, updatedKonf.Redis.URI, updatedKonf.Redis.Password)
	if err != nil {
		logger.Fatal("cannot create redis client", zap.Error(err))
	}

	txRepo := mongodb.NewTransactionRepository(mongoClient, updatedKonf.Mongo.Database)
	if err = txRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("cannot ensure mongo indexes", zap.Error(err))
	}
	dlQueue := redis.NewDeadLetterQueue(redisClient, logger)

	bus := events.NewBus(logger)
	if updatedKonf.Kafka.Enabled {
		metrics := kprom.NewMetrics("sslpay")
		conf := &kafka.ProducerConfig{
			Brokers:    updatedKonf.Kafka.Brokers,
			Topic:      updatedKonf.Kafka.Topic,
			ClientName: updatedKonf.Kafka.ClientName,
		}
		publisher, perr := kafka.NewPublisher(conf, metrics, logger)
		if perr != nil {
			logger.Fatal("cannot create events producer", zap.Error(perr))
		}
		defer publisher.Close(context.Background())
		bus.SubscribeAll(publisher.Handle)
	}

	gwClient := gateway.NewClient(updatedKonf.Gateway, logger)
	verifier := signature.NewVerifier(updatedKonf.Gateway.StorePassword)

	paymentSvc := payments.NewService(txRepo, gwClient, bus, logger)
	ipnProcessor := ipnsvc.NewProcessor(txRepo, gwClient, verifier, bus, dlQueue,
		updatedKonf.Gateway.AutoValidate, logger)

	handler := server.NewHandler(paymentSvc, ipnProcessor, logger)
	httpServer := server.New(updatedKonf.Server.Addr, handler.Routes(), logger)
	if err = httpServer.Run(ctx); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}
