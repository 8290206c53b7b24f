package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tiagowhuber/ConsultasSII/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	pollSeconds := flag.Int("poll", 0, "diagnostics poll interval in seconds (optional)")
	rut := flag.String("rut", "", "company RUT (overrides config)")
	mes := flag.Int("mes", 0, "opening period month 1-12 (overrides config)")
	anio := flag.Int("anio", 0, "opening period year (overrides config)")
	flag.Parse()

	// Optional developer overrides (SII_API_URL, SII_PUSH_URL).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Rut:        *rut,
		Mes:        *mes,
		Anio:       *anio,
	}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "librocompras: %v\n", err)
		return 1
	}
	return 0
}
