// Command simbridge runs the simulation side of the step-synchronised
// exchange with a controller peer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/open-teleop/simbridge/domain/bridge"
	"github.com/open-teleop/simbridge/domain/robot"
	"github.com/open-teleop/simbridge/domain/status"
	"github.com/open-teleop/simbridge/pkg/api"
	"github.com/open-teleop/simbridge/pkg/config"
	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/physics"
	"github.com/open-teleop/simbridge/pkg/processing"
	"github.com/open-teleop/simbridge/pkg/recorder"
	"github.com/open-teleop/simbridge/pkg/zeromq"
	"github.com/open-teleop/simbridge/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to "+config.DefaultBootstrapFilename+" (built-in defaults when empty)")
	robotList := flag.String("t", "", `robots as space-separated type_id tokens, e.g. "panda_1 fr3_2"`)
	scenePath := flag.String("f", "", "scene file with robots and static obstacles")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config file] (-t \"type_id ...\" | -f scene.json)\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.DefaultBootstrapConfig()
	if *configPath != "" {
		loaded, err := config.LoadBootstrapConfig(*configPath)
		if err != nil {
			log.Printf("Failed to load configuration: %v", err)
			return 1
		}
		cfg = loaded
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath, customlog.FileOptions{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}

	tokens := strings.Fields(*robotList)
	scene, err := config.ResolveScene(tokens, *scenePath)
	if err != nil {
		logger.Errorf("Invalid robot source: %v", err)
		flag.Usage()
		return 1
	}
	source := "scene file " + *scenePath
	if len(tokens) > 0 {
		source = "robot list"
	}

	engine := physics.NewKinematicEngine(physics.KinematicOptions{StepRate: cfg.Simulation.StepRate})
	defer engine.Close()

	robots, err := robot.Build(engine, scene.Robots, logger)
	if err != nil {
		logger.Errorf("Failed to build robots: %v", err)
		return 1
	}

	scheduler, err := bridge.NewScheduler(cfg.Simulation.StepRate, cfg.Simulation.DefaultPeriod, cfg.Simulation.MaxPeriod)
	if err != nil {
		logger.Errorf("Invalid simulation settings: %v", err)
		return 1
	}

	requester, err := zeromq.NewRequester(cfg.ZeroMQ, logger)
	if err != nil {
		logger.Errorf("Failed to connect to controller: %v", err)
		return 1
	}

	session, err := bridge.NewSession(bridge.Options{
		Engine:    engine,
		Transport: requester,
		Robots:    robots,
		Static:    scene.Obstacles,
		Scheduler: scheduler,
		Logger:    logger,
	})
	if err != nil {
		requester.Close()
		logger.Errorf("Failed to create session: %v", err)
		return 1
	}
	logger.Infof("Session %s: %d robots, %d static obstacles", session.ID(), len(robots), len(scene.Obstacles))

	statusService := status.NewStatusService(session.ID(), session.Layout())
	session.AddObserver(statusService)

	if cfg.Recording.Directory != "" {
		rec, err := recorder.New(cfg.Recording.Directory, session.ID(), cfg.Recording.QueueSize, logger)
		if err != nil {
			requester.Close()
			logger.Errorf("Failed to start recorder: %v", err)
			return 1
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Warnf("Recorder: %v", err)
			}
		}()
		session.AddObserver(bridge.ObserverFunc(func(r bridge.CycleRecord) { rec.Record(r) }))
	}

	if cfg.ZeroMQ.PublishBindAddress != "" {
		pub, err := zeromq.NewPublisher(cfg.ZeroMQ.PublishBindAddress, logger)
		if err != nil {
			requester.Close()
			logger.Errorf("Failed to start cycle publisher: %v", err)
			return 1
		}
		pool := processing.NewProcessingPool("publisher", 1, cfg.Recording.QueueSize,
			processing.NewPublishProcessor(pub, zeromq.TopicCycle, zeromq.MsgTypeCycle), logger)
		pool.Start()
		defer func() {
			pool.Stop()
			pub.Close()
		}()
		session.AddObserver(bridge.ObserverFunc(func(r bridge.CycleRecord) { pool.Submit(r) }))
	}

	if cfg.Server.HTTPPort > 0 {
		app := api.NewApp(statusService, logger)
		configService, err := services.NewBridgeConfigService(*configPath, cfg, scene, source, logger)
		if err != nil {
			requester.Close()
			logger.Errorf("Failed to create config service: %v", err)
			return 1
		}
		api.RegisterConfigRoutes(app, configService, logger)

		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
			logger.Infof("Status server starting on %s", addr)
			if err := app.Listen(addr); err != nil {
				logger.Errorf("Status server stopped: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(ctx); err != nil {
				logger.Warnf("Status server forced to shutdown: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run closes the requester on return
	err = session.Run(ctx)
	statusService.MarkStopped(err)
	if err != nil {
		logger.Errorf("Exchange aborted: %v", err)
		return 1
	}
	logger.Infof("Exchange stopped after %d cycles", session.Cycles())
	return 0
}
