// Command pageserver runs the EEG paging server control loop against a
// working directory of IPC files (§6 External Interfaces).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/eegserve/pageserver"
	"github.com/eegserve/pageserver/internal/config"
	"github.com/eegserve/pageserver/internal/logging"
	"github.com/eegserve/pageserver/session"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: pageserver [-config FILE] WORK_DIR [PASSPHRASE]")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "path to an optional TOML tunables file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	workDir := flag.Arg(0)
	passphrase := ""
	if flag.NArg() >= 2 {
		passphrase = flag.Arg(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pageserver.Run(ctx, workDir, passphrase, cfg, logger, nil); err != nil {
		if errors.Is(err, session.ErrPasswordNeeded) {
			os.Exit(1)
		}
		log.Fatalf("%+v", err)
	}
}
