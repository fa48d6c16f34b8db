// Command ukur runs the transit-disruption notifier: it ingests SIRI ET/SX
// updates from Anshar, matches them against subscriptions, and notifies
// whoever is watching an affected stop, line or vehicle.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entur/ukur/internal/anshar"
	"github.com/entur/ukur/internal/ansharclient"
	"github.com/entur/ukur/internal/archive"
	"github.com/entur/ukur/internal/config"
	"github.com/entur/ukur/internal/coordination"
	"github.com/entur/ukur/internal/inflight"
	"github.com/entur/ukur/internal/journey"
	"github.com/entur/ukur/internal/matching"
	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/notify"
	"github.com/entur/ukur/internal/queue"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/store"
	"github.com/entur/ukur/internal/stopplace"
	"github.com/entur/ukur/internal/subscription"
	"github.com/entur/ukur/internal/sx"
	"github.com/entur/ukur/internal/tiamat"
	"github.com/entur/ukur/internal/trigger"
)

func nodeID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "ukur-unknown-host"
	}
	return hostname
}

const (
	leaseTTL          = 30 * time.Second
	janitorInterval   = 60 * time.Second
	etQueueCapacity   = 256
	sxQueueCapacity   = 64
	clientRatePerSec  = 5
	clientBurst       = 10
	clientHTTPTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ failed to load configuration: %v", err)
	}
	if cfg.IsSubscriptionMisconfigured() {
		log.Printf("⚠️ subscription mode enabled but both ET and SX are disabled; no subscription triggers will be registered")
	}

	// Shared distributed map: backs leader election, the process-wide
	// RequestorId, and per-feed liveness timestamps.
	redisMap, err := store.NewRedisMap(cfg.RedisAddr, "", 0)
	if err != nil {
		log.Fatalf("❌ failed to connect to Redis at %s (required for coordination): %v", cfg.RedisAddr, err)
	}
	log.Printf("✅ connected to Redis at %s", cfg.RedisAddr)

	ctx := context.Background()
	node := nodeID()

	coord := coordination.New(redisMap, node, leaseTTL)
	janitor := coordination.NewLeaseJanitor(redisMap, janitorInterval)
	janitor.Start(ctx)

	inflightRegistry := inflight.New()
	scheduler, err := trigger.New(coord, inflightRegistry)
	if err != nil {
		log.Fatalf("❌ failed to build scheduler: %v", err)
	}

	client := ansharclient.New(clientRatePerSec, clientBurst, clientHTTPTimeout)

	requestor, err := anshar.Resolve(ctx, redisMap, fmt.Sprintf("Ukur-%s-%d", node, time.Now().UnixNano()))
	if err != nil {
		log.Fatalf("❌ failed to resolve process-wide requestor id: %v", err)
	}
	log.Printf("✅ resolved AnsharRequestorId=%s", requestor.Value())

	// Matching collaborators. Subscription CRUD, the notification channel
	// and the stop registry wire format are all out of scope; the reference
	// adapters below are what this deployment wires in their place.
	subIndex := subscription.NewMemoryIndex(nil)
	resolver := stopplace.NewMapResolver()
	journeyCache := journey.NewMemoryCache()
	var notifier notify.Notifier = notify.NewLogNotifier()
	engine := matching.New(subIndex, resolver, journeyCache, notifier)

	var sxProcessor sx.Processor = sx.NewLogProcessor()

	var archiveWriter archive.Writer = archive.NoopWriter{}
	if cfg.StoreMessagesToFile {
		w, err := archive.NewFileWriter("./messages")
		if err != nil {
			log.Printf("⚠️ failed to initialize message archive, falling back to no-op: %v", err)
		} else {
			archiveWriter = w
			log.Println("✅ archiving raw SIRI messages to ./messages")
		}
	}

	etQueue := queue.New[siri.EstimatedVehicleJourney](queue.KindET, etQueueCapacity)
	sxQueue := queue.New[siri.PtSituationElement](queue.KindSX, sxQueueCapacity)
	go anshar.RunETConsumer(ctx, etQueue, engine)
	go anshar.RunSXConsumer(ctx, sxQueue, sxProcessor)

	coord.Register(ctx, "FlushOldJourneys")
	if err := scheduler.RegisterTrigger("FlushOldJourneys", cfg.PollingInterval, "flush-old-journeys", func(ctx context.Context) {
		removed := journeyCache.EvictBefore(time.Now().Add(-model.JourneyTTL))
		if removed > 0 {
			log.Printf("[journey] flushed %d journeys older than %s", removed, model.JourneyTTL)
		}
	}); err != nil {
		log.Fatalf("❌ failed to register FlushOldJourneys trigger: %v", err)
	}
	log.Println("✅ registered FlushOldJourneys trigger")

	if cfg.TiamatEnabled {
		jsonProcessor := stopplace.NewJSONMappingProcessor(resolver)
		refresher := tiamat.New(client, cfg.TiamatURL, jsonProcessor)
		coord.Register(ctx, "TiamatRefresh")
		if err := scheduler.RegisterTrigger("TiamatRefresh", cfg.TiamatInterval, "tiamat-refresh", func(ctx context.Context) {
			if err := refresher.Refresh(ctx); err != nil {
				log.Printf("⚠️ tiamat refresh failed: %v", err)
			}
		}); err != nil {
			log.Fatalf("❌ failed to register TiamatRefresh trigger: %v", err)
		}
		log.Println("✅ registered TiamatRefresh trigger")
	}

	if cfg.UseSubscription {
		registerSubscriptionMode(ctx, cfg, client, redisMap, requestor, coord, scheduler, etQueue, sxQueue)
	} else {
		registerPollingMode(ctx, cfg, client, redisMap, requestor, coord, scheduler, etQueue, sxQueue, archiveWriter)
	}

	scheduler.Start()
	log.Println("✅ trigger scheduler started")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if cfg.UseSubscription {
		handler := anshar.NewCallbackHandler(requestor, redisMap, cfg.Operator, cfg.ETEnabled, cfg.SXEnabled, etQueue, sxQueue, archiveWriter)
		anshar.RegisterRoutes(mux, handler)
	}

	log.Printf("✅ ukur listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, mux); err != nil {
		log.Fatalf("❌ http server stopped: %v", err)
	}
}

func registerPollingMode(
	ctx context.Context,
	cfg config.Config,
	client *ansharclient.Client,
	redisMap store.Map,
	requestor *anshar.RequestorID,
	coord *coordination.Coordinator,
	scheduler *trigger.Scheduler,
	etQueue *anshar.ETQueue,
	sxQueue *anshar.SXQueue,
	archiveWriter archive.Writer,
) {
	if cfg.ETEnabled {
		poller := anshar.NewPoller(client, cfg.Operator, func(reqID string) string {
			return fmt.Sprintf(cfg.PollingETURLTemplate, reqID)
		}, requestor.Value, redisMap, archiveWriter)
		coord.Register(ctx, "AnsharPollET")
		if err := scheduler.RegisterTrigger("AnsharPollET", cfg.PollingInterval, "poll-et", func(ctx context.Context) {
			if err := poller.PollET(ctx, etQueue); err != nil {
				log.Printf("⚠️ ET poll failed: %v", err)
			}
		}); err != nil {
			log.Fatalf("❌ failed to register AnsharPollET trigger: %v", err)
		}
		log.Println("✅ registered AnsharPollET trigger")
	}

	if cfg.SXEnabled {
		poller := anshar.NewPoller(client, cfg.Operator, func(reqID string) string {
			return fmt.Sprintf(cfg.PollingSXURLTemplate, reqID)
		}, requestor.Value, redisMap, archiveWriter)
		coord.Register(ctx, "AnsharPollSX")
		if err := scheduler.RegisterTrigger("AnsharPollSX", cfg.PollingInterval, "poll-sx", func(ctx context.Context) {
			if err := poller.PollSX(ctx, sxQueue); err != nil {
				log.Printf("⚠️ SX poll failed: %v", err)
			}
		}); err != nil {
			log.Fatalf("❌ failed to register AnsharPollSX trigger: %v", err)
		}
		log.Println("✅ registered AnsharPollSX trigger")
	}
}

func registerSubscriptionMode(
	ctx context.Context,
	cfg config.Config,
	client *ansharclient.Client,
	redisMap store.Map,
	requestor *anshar.RequestorID,
	coord *coordination.Coordinator,
	scheduler *trigger.Scheduler,
	etQueue *anshar.ETQueue,
	sxQueue *anshar.SXQueue,
) {
	if !cfg.ETEnabled && !cfg.SXEnabled {
		return
	}

	callbackURL := cfg.OwnBaseURL + "/siriMessages/" + requestor.Value()
	renewer := anshar.NewRenewer(client, cfg.SubscriptionURL, callbackURL, requestor)

	var kinds []siri.SubscriptionKind
	if cfg.ETEnabled {
		kinds = append(kinds, siri.KindET)
	}
	if cfg.SXEnabled {
		kinds = append(kinds, siri.KindSX)
	}

	renewPeriod := time.Duration(model.SubscriptionDurationMin) * time.Minute
	coord.Register(ctx, "AnsharSubscriptionRenewer")
	if err := scheduler.RegisterTrigger("AnsharSubscriptionRenewer", renewPeriod, "subscription-renew", func(ctx context.Context) {
		for _, kind := range kinds {
			if err := renewer.Renew(ctx, kind); err != nil {
				log.Printf("⚠️ subscription renew failed for %s: %v", kind, err)
			}
		}
	}); err != nil {
		log.Fatalf("❌ failed to register AnsharSubscriptionRenewer trigger: %v", err)
	}
	log.Println("✅ registered AnsharSubscriptionRenewer trigger")

	checker := anshar.NewLivenessChecker(redisMap, renewer, kinds)
	checkPeriod := time.Duration(model.HeartbeatIntervalMS) * time.Millisecond
	coord.Register(ctx, "AnsharSubscriptionChecker")
	if err := scheduler.RegisterTrigger("AnsharSubscriptionChecker", checkPeriod, "subscription-check", func(ctx context.Context) {
		checker.Check(ctx)
	}); err != nil {
		log.Fatalf("❌ failed to register AnsharSubscriptionChecker trigger: %v", err)
	}
	log.Println("✅ registered AnsharSubscriptionChecker trigger")
}
