package cmd

import (
	"context"
	"go/types"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/txnbuild"

	cmdUtils "github.com/stellar/anchor-deposits-processor/cmd/utils"
	"github.com/stellar/anchor-deposits-processor/db"
	"github.com/stellar/anchor-deposits-processor/internal/crashtracker"
	"github.com/stellar/anchor-deposits-processor/internal/custody"
	"github.com/stellar/anchor-deposits-processor/internal/data"
	"github.com/stellar/anchor-deposits-processor/internal/monitor"
	"github.com/stellar/anchor-deposits-processor/internal/processor"
	"github.com/stellar/anchor-deposits-processor/internal/rails"
	"github.com/stellar/anchor-deposits-processor/internal/serve"
	"github.com/stellar/anchor-deposits-processor/internal/serve/httpclient"
	"github.com/stellar/anchor-deposits-processor/internal/webhooks"
)

type ProcessorCommand struct{}

type ProcessorServiceInterface interface {
	StartProcessor(ctx context.Context, opts processor.Options)
	StartMetricsServe(ctx context.Context, opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface, crashTrackerClient crashtracker.CrashTrackerClient)
}

type ProcessorService struct{}

// StartProcessor runs the pending deposits processor until it is signaled to stop.
func (s *ProcessorService) StartProcessor(ctx context.Context, opts processor.Options) {
	p, err := processor.NewProcessor(opts)
	if err != nil {
		opts.CrashTrackerClient.LogAndReportErrors(ctx, err, "Cannot create the deposits processor")
		log.Ctx(ctx).Fatalf("Error creating the deposits processor: %s", err.Error())
	}

	if err = p.Run(ctx); err != nil {
		opts.CrashTrackerClient.LogAndReportErrors(ctx, err, "Cannot run the deposits processor")
		log.Ctx(ctx).Fatalf("Error running the deposits processor: %s", err.Error())
	}
}

func (s *ProcessorService) StartMetricsServe(ctx context.Context, opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface, crashTrackerClient crashtracker.CrashTrackerClient) {
	err := serve.MetricsServe(opts, httpServer)
	if err != nil {
		crashTrackerClient.LogAndReportErrors(ctx, err, "Cannot start metrics service")
		log.Fatalf("Error starting metrics server: %s", err.Error())
	}
}

func (c *ProcessorCommand) Command(processorService ProcessorServiceInterface) *cobra.Command {
	var (
		pollingIntervalSeconds   int
		queueSize                int
		maxBaseFee               int
		callbackAuthSecret       string
		callbackAuthExpirationMS int
		railsType                rails.RailsType
	)
	custodyOpts := custody.EnvServiceOptions{}
	metricsServeOpts := serve.MetricsServeOptions{}
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}

	configOpts := config.ConfigOptions{
		{
			Name:        "interval",
			Usage:       "Interval (seconds) of the periodic pipeline tasks (rails poller, trustline checker, scavenger)",
			OptType:     types.Int,
			ConfigKey:   &pollingIntervalSeconds,
			FlagDefault: 10,
			Required:    true,
		},
		{
			Name:        "queue-size",
			Usage:       "Capacity of the in-memory submission queue",
			OptType:     types.Int,
			ConfigKey:   &queueSize,
			FlagDefault: 1000,
			Required:    true,
		},
		{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &metricsServeOpts.MetricType,
			FlagDefault:    "PROMETHEUS",
			Required:       true,
		},
		{
			Name:        "metrics-port",
			Usage:       `Port where the metrics server will be listening on. Default: 9002"`,
			OptType:     types.Int,
			ConfigKey:   &metricsServeOpts.Port,
			FlagDefault: 9002,
			Required:    true,
		},
		{
			Name:           "crash-tracker-type",
			Usage:          `Crash tracker type. Options: "SENTRY", "DRY_RUN"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionCrashTrackerType,
			ConfigKey:      &crashTrackerOptions.CrashTrackerType,
			FlagDefault:    "DRY_RUN",
			Required:       true,
		},
		{
			Name:           "distribution-seed",
			Usage:          "The private key of the Stellar account used to disburse the deposits",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionStellarPrivateKey,
			ConfigKey:      &custodyOpts.DistributionSeed,
			Required:       true,
		},
		{
			Name:        "max-base-fee",
			Usage:       "The max base fee (stroops) for submitting a Stellar transaction",
			OptType:     types.Int,
			ConfigKey:   &maxBaseFee,
			FlagDefault: 100 * txnbuild.MinBaseFee,
			Required:    true,
		},
		{
			Name:        "destination-starting-balance",
			Usage:       "The XLM balance used to fund destination accounts created by the processor",
			OptType:     types.String,
			ConfigKey:   &custodyOpts.DestinationStartingBalance,
			FlagDefault: "1",
			Required:    true,
		},
		{
			Name:        "claimable-balances-enabled",
			Usage:       "Deliver deposits to accounts without a trustline as claimable balances instead of waiting for the trustline",
			OptType:     types.Bool,
			ConfigKey:   &custodyOpts.ClaimableBalances,
			FlagDefault: true,
			Required:    false,
		},
		{
			Name:      "callback-auth-secret",
			Usage:     "The secret used to sign the JWT attached to status callback requests. If not provided, callbacks are sent unauthenticated.",
			OptType:   types.String,
			ConfigKey: &callbackAuthSecret,
			Required:  false,
		},
		{
			Name:        "callback-auth-expiration-ms",
			Usage:       "The expiration (milliseconds) of the JWT attached to status callback requests",
			OptType:     types.Int,
			ConfigKey:   &callbackAuthExpirationMS,
			FlagDefault: 15000,
			Required:    false,
		},
		{
			Name:           "rails-type",
			Usage:          `Off-chain rails type. Options: "AUTO_FUNDED", "NONE"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionRailsType,
			ConfigKey:      &railsType,
			FlagDefault:    "AUTO_FUNDED",
			Required:       true,
		},
	}

	var (
		monitorService     monitor.MonitorService
		dbConnectionPool   db.DBConnectionPool
		crashTrackerClient crashtracker.CrashTrackerClient
	)

	cmd := &cobra.Command{
		Use:   "processor",
		Short: "Run the Pending Deposits Processor",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Parent().PersistentPreRun(cmd.Parent(), args)
			ctx := cmd.Context()

			// Validate & ingest input parameters
			configOpts.Require()
			err := configOpts.SetValues()
			if err != nil {
				log.Ctx(ctx).Fatalf("Error setting values of config options: %s", err.Error())
			}

			// Initializing monitor service
			metricsServeOpts.Environment = globalOptions.Environment
			err = monitorService.Start(monitor.MetricOptions{
				MetricType:  metricsServeOpts.MetricType,
				Environment: globalOptions.Environment,
			})
			if err != nil {
				log.Ctx(ctx).Fatalf("error starting monitor service: %v", err)
			}
			metricsServeOpts.MonitorService = &monitorService

			// Setup the DB connection pool with metrics
			dbConnectionPool, err = db.OpenDBConnectionPoolWithMetrics(ctx, globalOptions.DatabaseURL, &monitorService)
			if err != nil {
				log.Ctx(ctx).Fatalf("error getting DB connection pool: %v", err)
			}

			// Setup the Crash Tracker client
			globalOptions.PopulateCrashTrackerOptions(&crashTrackerOptions)
			crashTrackerClient, err = crashtracker.GetClient(ctx, crashTrackerOptions)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating crash tracker client: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			horizonClient := &horizonclient.Client{
				HorizonURL: globalOptions.HorizonURL,
				HTTP:       httpclient.DefaultClient(),
			}

			custodyOpts.NetworkPassphrase = globalOptions.NetworkPassphrase
			custodyOpts.HorizonClient = horizonClient
			custodyOpts.MaxBaseFee = int64(maxBaseFee)
			envCustody, err := custody.NewEnvService(custodyOpts)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating custody service: %v", err)
			}
			cachingCustody, err := custody.NewCachingService(envCustody, custody.DefaultDistributionAccountCacheTTL, custody.DefaultDistributionAccountCacheMaxEntries)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating caching custody service: %v", err)
			}

			var jwtManager *webhooks.JWTManager
			if callbackAuthSecret != "" {
				jwtManager, err = webhooks.NewJWTManager(callbackAuthSecret, int64(callbackAuthExpirationMS))
				if err != nil {
					log.Ctx(ctx).Fatalf("error creating callback JWT manager: %v", err)
				}
			} else {
				log.Ctx(ctx).Warn("Callback auth secret is empty, status callbacks will be unauthenticated")
			}

			notifier, err := webhooks.NewNotifier(httpclient.DefaultClient(), jwtManager, &monitorService)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating webhook notifier: %v", err)
			}

			railsImpl, err := rails.GetRails(railsType)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating rails: %v", err)
			}

			models, err := data.NewModels(dbConnectionPool)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating models: %v", err)
			}

			// Starting Metrics Server (background job)
			go processorService.StartMetricsServe(ctx, metricsServeOpts, &serve.HTTPServer{}, crashTrackerClient)

			processorService.StartProcessor(ctx, processor.Options{
				Models:             models,
				HorizonClient:      horizonClient,
				Custody:            cachingCustody,
				Rails:              railsImpl,
				Notifier:           notifier,
				MonitorService:     &monitorService,
				CrashTrackerClient: crashTrackerClient,
				PollingInterval:    time.Duration(pollingIntervalSeconds) * time.Second,
				QueueSize:          queueSize,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if err := db.CloseConnectionPoolIfNeeded(cmd.Context(), dbConnectionPool); err != nil {
				log.Ctx(cmd.Context()).Errorf("error closing DB connection pool: %v", err)
			}
		},
	}
	err := configOpts.Init(cmd)
	if err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
