package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/springsconnect/springs/internal/daemon"
	"github.com/springsconnect/springs/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	quiet := flag.Bool("quiet", false, "log to the profile log file only")
	flag.Parse()

	name, settings, err := profile.Load(*profileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: profile %q: %v\n", name, err)
		os.Exit(1)
	}
	if err := profile.EnsureDir(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: name, Settings: settings, Quiet: *quiet}),
	)

	app.Run()
}
