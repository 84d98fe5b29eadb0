package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/instafly/instafly/internal/app/config"
	"github.com/instafly/instafly/internal/app/events"
	"github.com/instafly/instafly/internal/app/handlers"
	"github.com/instafly/instafly/internal/app/logger"
	"github.com/instafly/instafly/internal/app/metrics"
	middlware "github.com/instafly/instafly/internal/app/middleware"
	"github.com/instafly/instafly/internal/app/models"
	"github.com/instafly/instafly/internal/app/repository"
	"github.com/instafly/instafly/internal/app/router"
	"github.com/instafly/instafly/internal/app/service"
	"github.com/instafly/instafly/internal/app/service/clients"
)

func main() {
	// Server run context
	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	_ = godotenv.Load()
	c := config.ParseFlags()
	logger.InitLogger(c.LogLevel)

	//setup repositories
	ts := service.NewTokenService(c)
	s := repository.NewDBStorage(c)
	ur := repository.NewUserRepository(s.DBConn)
	or := repository.NewOrderRepository(s.DBConn)
	wr := repository.NewWalletRepository(s.DBConn)
	sr := repository.NewServiceRepository(s.DBConn)
	cr := repository.NewCouponRepository(s.DBConn)
	ar := repository.NewAffiliateRepository(s.DBConn)
	dfr := repository.NewDripFeedRepository(s.DBConn)
	str := repository.NewSettingsRepository(s.DBConn)

	processOrderChannel := make(chan models.Order, 100)
	om := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	// the hosted functions backend serves payments, fulfilment, status
	// sync, messaging and profile lookups through one client
	fc := clients.NewFunctionsClient(c, om)
	ig := clients.NewIntegrations(fc)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(c.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(c.KafkaBrokers, c.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	//setup services
	ws := service.NewWalletService(wr, or, str, ig, om)
	as := service.NewAffiliateService(ar)
	ors := service.NewOrderService(or, sr, cr, dfr, str, ws, as, ig, ig, publisher, om, processOrderChannel)
	oc := service.NewOrderCache(time.Duration(c.SyncIntervalSec)*time.Second, 5*time.Minute, processOrderChannel)
	cs := service.NewCouponService(cr)
	us := service.NewUserService(ur, ws)
	ss := service.NewSettingsService(str)
	ns := service.NewNotificationService(str, ig)

	// setup handlers
	uh := handlers.NewUserHandler(us, ts, c.ContextTimeoutSec)
	oh := handlers.NewOrdersHandler(ors, us, c.ContextTimeoutSec)
	wh := handlers.NewWalletHandler(ws, us, ss, c.ContextTimeoutSec)
	ch := handlers.NewCatalogHandler(sr, cs, c.ContextTimeoutSec)
	th := handlers.NewTrackingHandler(ors, ig, c.ContextTimeoutSec)
	wbh := handlers.NewWebhookHandler(ors, c.ContextTimeoutSec)
	ah := handlers.NewAdminHandler(ors, cs, as, ss, sr, dfr, fc, c.ContextTimeoutSec)
	nh := handlers.NewNotificationsHandler(ns, c.ContextTimeoutSec)

	am := middlware.NewAuthMiddleware(ts, us, c.ContextTimeoutSec)

	r := router.NewAppRouter(uh, oh, wh, ch, th, wbh, ah, nh, am)

	// Start background workers
	sw := service.NewOrderSyncWorker(or, oc, ors, ig, om, processOrderChannel)
	go sw.Run(serverCtx)
	dw := service.NewDripFeedWorker(dfr, or, sr, ors, ig)
	go dw.Run(serverCtx)

	// The HTTP Server
	server := &http.Server{Addr: c.ServerAddr, Handler: r}

	// Listen for syscall signals for process to interrupt/quit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		// Shutdown signal with grace period of 30 seconds
		shutdownCtx, cancelFunc := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancelFunc()
		oc.Stop()
		close(processOrderChannel)
		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		// Trigger graceful shutdown
		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	// Run the server
	fmt.Printf("Starting server on port %s...\n", strings.Split(c.ServerAddr, ":")[1])
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	// Wait for server context to be stopped
	<-serverCtx.Done()
}
