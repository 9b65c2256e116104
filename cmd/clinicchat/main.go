package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/clinicchat/internal/app"
	"github.com/matheus3301/clinicchat/internal/config"
	"github.com/matheus3301/clinicchat/internal/profile"
	"go.uber.org/fx"
)

func main() {
	idFlag := flag.String("id", "", "user id (overrides config [identity])")
	nameFlag := flag.String("name", "", "display name")
	roleFlag := flag.String("role", "", "role: admin, doctor, nurse, receptionist, patient or staff")
	serverFlag := flag.String("server", "", "chat server websocket url")
	configFlag := flag.String("config", profile.ConfigPath(), "config file")
	logLevelFlag := flag.String("log-level", "", "debug, info, warn or error")
	headlessFlag := flag.Bool("headless", false, "run without the terminal UI, logging to stderr")
	saveFlag := flag.Bool("save", false, "store the resolved identity and server in the config file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}

	id, err := profile.Resolve(profile.Identity{ID: *idFlag, Name: *nameFlag, Role: *roleFlag}, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *saveFlag {
		cfg.Identity = config.Identity{ID: id.ID, Name: id.Name, Role: id.Role}
		if err := config.Save(*configFlag, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: save config: %v\n", err)
			os.Exit(1)
		}
	}

	application := fx.New(
		app.Module(app.Params{Identity: id, Config: cfg, TUI: !*headlessFlag}),
		app.WithLogger(),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), application.StartTimeout())
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		// A second session for the same identity ends up here with a LockHeldError.
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	<-application.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), application.StopTimeout())
	defer stopCancel()
	if err := application.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
