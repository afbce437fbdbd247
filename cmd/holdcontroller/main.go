// Command holdcontroller is a minimal controller peer: it answers every state
// batch with Joint commands that hold each robot where it is. It is meant for
// smoke runs of simbridge.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	customlog "github.com/open-teleop/simbridge/pkg/log"
	"github.com/open-teleop/simbridge/pkg/zeromq"
)

func main() {
	bind := flag.String("bind", "tcp://*:5555", "address to answer simbridge requests on")
	cycles := flag.String("cycles", "", "optional simbridge cycle publisher to follow, e.g. tcp://localhost:5557")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := customlog.NewLogrusLogger(*level, "", customlog.FileOptions{})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	responder, err := zeromq.NewResponder(*bind, zeromq.NewHoldHandler(logger), logger)
	if err != nil {
		logger.Fatalf("Failed to start responder: %v", err)
	}
	responder.Start()
	defer responder.Stop()

	if *cycles != "" {
		sub, err := zeromq.NewSubscriber(*cycles, zeromq.TopicCycle, func(_ string, msg zeromq.ZeroMQMessage) {
			data, ok := msg.Data.(map[string]interface{})
			if !ok {
				return
			}
			logger.Debugf("Cycle %v: %v steps over %vs", data["cycle"], data["steps"], data["period"])
		}, logger)
		if err != nil {
			logger.Fatalf("Failed to follow cycles: %v", err)
		}
		sub.Start()
		defer sub.Stop()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down hold controller")
}
