package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/Domenick1991/rentalwatch/api"
	"github.com/Domenick1991/rentalwatch/config"
	"github.com/Domenick1991/rentalwatch/internal/apiclient"
	"github.com/Domenick1991/rentalwatch/internal/bootstrap"
	"github.com/Domenick1991/rentalwatch/internal/cache"
	"github.com/Domenick1991/rentalwatch/internal/domain"
	"github.com/Domenick1991/rentalwatch/internal/kafka"
	"github.com/Domenick1991/rentalwatch/internal/logger"
	"github.com/Domenick1991/rentalwatch/internal/service/booking"
	"github.com/Domenick1991/rentalwatch/internal/service/notifications"
	"github.com/Domenick1991/rentalwatch/internal/session"
)

type flags struct {
	carID   int64
	start   string
	end     string
	coupon  string
	watch   string
	confirm bool
}

func main() {
	var f flags
	flag.Int64Var(&f.carID, "car", 0, "create a booking for this car id before watching")
	flag.StringVar(&f.start, "start", "", "booking start time (RFC3339)")
	flag.StringVar(&f.end, "end", "", "booking end time (RFC3339)")
	flag.StringVar(&f.coupon, "coupon", "", "coupon code for the new booking")
	flag.StringVar(&f.watch, "watch", "", "comma separated booking ids to watch")
	flag.BoolVar(&f.confirm, "confirm", false, "use the call-to-confirm grace period")
	flag.Parse()

	if err := run(f); err != nil {
		log.Fatal(err)
	}
}

// run owns every resource so its deferred cleanups finish before main exits.
func run(f flags) error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lg := logger.New(cfg.ServiceName, cfg.Logger.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storeOpts := []session.Option{session.WithLogger(lg)}
	clientOpts := []apiclient.Option{}
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			lg.Warning("redis unavailable, session will not persist", logger.Error(err))
		} else {
			storeOpts = append(storeOpts, session.WithPersister(redisCache))
			clientOpts = append(clientOpts, apiclient.WithCarsCache(redisCache))
		}
	}

	store := session.NewStore(storeOpts...)
	if restored, err := store.Restore(ctx); err != nil {
		lg.Warning("restore session", logger.Error(err))
	} else if restored {
		lg.Info("session restored")
	}

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout(), store, lg, clientOpts...)

	if !store.Authenticated() && cfg.Auth.Username != "" {
		user, err := client.Login(ctx, apiclient.Credentials{Username: cfg.Auth.Username, Password: cfg.Auth.Password})
		if err != nil {
			lg.Error("login failed", logger.Error(err))
		} else {
			lg.Info("logged in", logger.String("username", user.Username), logger.Bool("is_admin", user.IsAdmin))
		}
	}

	grace := cfg.Booking.GracePeriod()
	if f.confirm {
		grace = cfg.Booking.ConfirmGracePeriod()
	}
	watcherCfg := booking.WatcherConfig{
		GracePeriod:    grace,
		PollInterval:   cfg.Booking.PollInterval(),
		TickInterval:   cfg.Booking.TickInterval(),
		StopOnTerminal: cfg.Booking.StopOnTerminal,
	}

	bookingOpts := []booking.Option{booking.WithLogger(lg)}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PhaseTopic, lg)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			lg.Warning("kafka unavailable, phase events may be lost", logger.Error(err))
		}
		bookingOpts = append(bookingOpts, booking.WithPhaseSink(producer))
	}

	registry := booking.NewRegistry(client, watcherCfg, bookingOpts...)
	defer registry.Close()

	if f.carID > 0 {
		created, err := createBooking(ctx, client, f.carID, f.start, f.end, f.coupon)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		lg.Info("booking created", logger.Int64("booking_id", created.ID), logger.String("status", string(created.Status)))
		if _, err := registry.Watch(ctx, created.ID, &created); err != nil {
			return fmt.Errorf("watch booking %d: %w", created.ID, err)
		}
	}

	for _, id := range parseIDs(f.watch, lg) {
		if _, err := registry.Watch(ctx, id, nil); err != nil {
			lg.Warning("watch booking", logger.Int64("booking_id", id), logger.Error(err))
		}
	}

	listView := booking.NewListView(client, cfg.Booking.ListPollInterval(), cfg.Booking.GracePeriod(), bookingOpts...)
	defer listView.Close()
	if err := listView.Start(ctx); err != nil {
		lg.Warning("start booking list", logger.Error(err))
	}

	inbox := notifications.NewInbox(client, store, cfg.Notifications.PollInterval(), notifications.WithLogger(lg))
	defer inbox.Close()
	unsubscribe := inbox.ResetOnLogout(store)
	defer unsubscribe()
	if err := inbox.Start(ctx); err != nil {
		lg.Warning("start notifications", logger.Error(err))
	}

	router := bootstrap.NewRouter(cfg.HTTP, bootstrap.Handlers{
		Bookings:      api.NewBookingHandler(registry, listView),
		Notifications: api.NewNotificationHandler(inbox),
	}, lg)

	if err := bootstrap.Run(ctx, cfg.HTTP, router, lg); err != nil {
		lg.Error("server error", logger.Error(err))
		return err
	}
	return nil
}

func createBooking(ctx context.Context, client *apiclient.Client, carID int64, start, end, coupon string) (domain.Booking, error) {
	startTime, err := domain.ParseServerTime(start)
	if err != nil {
		return domain.Booking{}, domain.ValidationError{Field: "start_time", Msg: "invalid time", Err: err}
	}
	endTime, err := domain.ParseServerTime(end)
	if err != nil {
		return domain.Booking{}, domain.ValidationError{Field: "end_time", Msg: "invalid time", Err: err}
	}
	return client.CreateBooking(ctx, domain.CreateBookingInput{
		CarID:      carID,
		StartTime:  startTime,
		EndTime:    endTime,
		CouponCode: coupon,
	})
}

func parseIDs(raw string, lg logger.ILogger) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			lg.Warning("skipping invalid booking id", logger.String("value", part))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
