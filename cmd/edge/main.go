// Package main starts the offline asset cache edge service.
//
// This process owns the install lifecycle for the dashboard's asset
// manifest and intercepts every request with cache-first serving.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	edgecmd "github.com/mybullandbear/bull-bear-cloud/internal/cmd/edge"
	"github.com/mybullandbear/bull-bear-cloud/internal/platform/config"
)

func main() {
	cfg, err := edgecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[EDGE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := edgecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
