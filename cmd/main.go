package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-pos/internal/config"
	"restaurant-pos/internal/database"
	"restaurant-pos/internal/lease"
	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/services/kitchen"
	"restaurant-pos/internal/services/notification"
	"restaurant-pos/internal/services/order"
	"restaurant-pos/internal/services/payment"
	"restaurant-pos/internal/services/pos"
	"restaurant-pos/internal/services/table"
	"restaurant-pos/internal/services/transfer"
	"restaurant-pos/internal/store"
)

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (pos-service, kitchen-display, notification-subscriber)")
		port       = flag.Int("port", 3000, "HTTP port")
		configPath = flag.String("config", "config.yaml", "Path to the config file")
		department = flag.String("department", "all", "Kitchen department to display (kitchen-display mode)")
		prefetch   = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":          *mode,
		"port":          *port,
		"restaurant_id": cfg.POS.RestaurantID,
		"terminal_id":   cfg.POS.TerminalID,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	switch *mode {
	case "pos-service":
		err = runPOSService(ctx, cfg, log, *port)
	case "kitchen-display":
		err = runKitchenDisplay(ctx, cfg, log, *department, *prefetch)
	case "notification-subscriber":
		err = runNotificationSubscriber(ctx, cfg, log, *prefetch)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}
	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// backend is the storage chosen by pos.store.
type backend struct {
	store store.Store
	db    *database.DB
	mem   *store.Memory
}

func (b *backend) close() {
	if b.db != nil {
		b.db.Close()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger, requestID string) (*backend, error) {
	var seed *store.Seed
	if cfg.POS.SeedFile != "" {
		s, err := store.LoadSeed(cfg.POS.SeedFile)
		if err != nil {
			return nil, err
		}
		seed = s
	}

	if cfg.POS.Store == config.StoreMemory {
		mem := store.NewMemory()
		if seed != nil {
			seed.Apply(mem)
		}
		log.Info("store_ready", "Using in-memory store", requestID, nil)
		return &backend{store: mem, mem: mem}, nil
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(ctx, cfg.POS.Migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := database.NewStore(db)
	if seed != nil {
		if err := s.ApplySeed(ctx, seed); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply seed: %w", err)
		}
	}
	return &backend{store: s, db: db}, nil
}

func openLocker(ctx context.Context, cfg *config.Config, log *logger.Logger, requestID string) lease.Locker {
	if cfg.Redis.Addr == "" {
		return lease.NewLocal()
	}
	client, err := lease.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("redis_unavailable", "Redis unreachable, using process-local leases", requestID, err, map[string]interface{}{
			"addr": cfg.Redis.Addr,
		})
		return lease.NewLocal()
	}
	log.Info("redis_connected", "Using Redis leases", requestID, map[string]interface{}{
		"addr": cfg.Redis.Addr,
	})
	return lease.NewRedis(client, "pos:"+cfg.POS.RestaurantID+":", cfg.POS.LeaseTTL)
}

// runPOSService runs the terminal backend
func runPOSService(ctx context.Context, cfg *config.Config, log *logger.Logger, port int) error {
	requestID := logger.GenerateRequestID()

	b, err := openBackend(ctx, cfg, log, requestID)
	if err != nil {
		return err
	}
	defer b.close()

	locker := openLocker(ctx, cfg, log, requestID)

	var (
		conn      *messaging.Connection
		publisher *messaging.Publisher
	)
	if cfg.MessagingEnabled() {
		conn, err = messaging.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize messaging: %w", err)
		}
		defer conn.Close()
		publisher = messaging.NewPublisher(conn, log)
	}

	terminal := table.NewTerminal(b.store, cfg.POS.RestaurantID, log)
	observers := table.Observers{terminal}
	if cfg.POS.Feed == config.FeedRabbitMQ && publisher != nil {
		observers = append(observers, table.NewBroadcaster(publisher, log))
	}

	feed, err := openFeed(ctx, cfg, b, conn, log)
	if err != nil {
		return err
	}
	if feed != nil {
		defer feed.Close()
		go terminal.Run(ctx, feed)
	}

	if _, err := terminal.LoadTables(ctx, ""); err != nil {
		return fmt.Errorf("failed to load tables: %w", err)
	}

	var (
		tickets  kitchen.TicketPublisher
		notifier payment.Notifier
	)
	if publisher != nil {
		tickets, notifier = publisher, publisher
	}

	tables := table.NewManager(b.store)
	handler := pos.NewHandler(pos.Services{
		Orders:     order.NewService(b.store, locker, tables, observers, log),
		Kitchen:    kitchen.NewDispatcher(b.store, locker, tables, observers, tickets, log),
		Transfers:  transfer.NewCoordinator(b.store, locker, tables, observers, log),
		Payments:   payment.NewResolver(b.store, locker, tables, observers, notifier, cfg.POS.SettleWindow, log),
		Tables:     tables,
		Terminal:   terminal,
		Health:     b.store,
		TerminalID: cfg.POS.TerminalID,
	}, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("POS service started on port %d", port), requestID, map[string]interface{}{
			"port":  port,
			"store": cfg.POS.Store,
			"feed":  cfg.POS.Feed,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}

func openFeed(ctx context.Context, cfg *config.Config, b *backend, conn *messaging.Connection, log *logger.Logger) (table.Subscription, error) {
	switch cfg.POS.Feed {
	case config.FeedPostgres:
		return b.db.Listen(ctx, cfg.POS.RestaurantID), nil
	case config.FeedRabbitMQ:
		if conn == nil {
			return nil, fmt.Errorf("rabbitmq feed requires a broker connection")
		}
		feed, err := messaging.SubscribeChanges(ctx, conn, cfg.POS.RestaurantID, log)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to changes: %w", err)
		}
		return feed, nil
	case config.FeedNone:
		return nil, nil
	}
	if b.mem != nil {
		return b.mem.Subscribe(cfg.POS.RestaurantID), nil
	}
	return nil, nil
}

// runKitchenDisplay prints the tickets routed to one department
func runKitchenDisplay(ctx context.Context, cfg *config.Config, log *logger.Logger, department string, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	queue, err := conn.DeclareKitchenQueue(department)
	if err != nil {
		return fmt.Errorf("failed to declare kitchen queue: %w", err)
	}

	consumer := messaging.NewConsumer(conn, log, queue, "kitchen-display-"+department, prefetch)
	return kitchen.NewDisplay(department, consumer, os.Stdout, log).Start(ctx)
}

// runNotificationSubscriber prints settlement notifications
func runNotificationSubscriber(ctx context.Context, cfg *config.Config, log *logger.Logger, prefetch int) error {
	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}
	defer conn.Close()

	consumer := messaging.NewConsumer(conn, log, messaging.NotificationsQueue, "notification-subscriber", prefetch)
	return notification.NewSubscriber(consumer, os.Stdout, log).Start(ctx)
}
