package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ppiankov/rangerwatch/internal/config"
	"github.com/ppiankov/rangerwatch/internal/telemetry"
)

// addConnectionFlags registers the flags that locate and authenticate
// against Ranger Admin. They override the config file and environment.
func addConnectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("host", "H", "", "Ranger Admin host ($RANGER_HOST)")
	f.IntP("port", "P", config.DefaultPort, "Ranger Admin port ($RANGER_PORT)")
	f.StringP("user", "u", "", "Ranger user ($RANGER_USER)")
	f.StringP("password", "p", "", "Ranger password ($RANGER_PASSWORD)")
	f.BoolP("ssl", "S", false, "Use HTTPS")
	f.Bool("ssl-noverify", false, "Use HTTPS without verifying the server certificate")
	f.String("ca-file", "", "PEM CA bundle to verify the server certificate (implies HTTPS)")
	f.DurationP("timeout", "t", config.Defaults().Ranger.Timeout, "Request timeout")
	f.String("socks5", "", "Reach Ranger through a SOCKS5 proxy (host:port)")
}

// loadSettings builds the effective config: the file at cfgPath (or
// defaults when empty), then environment for connection fields the file left
// unset, then changed flags.
func loadSettings(cmd *cobra.Command, cfgPath string, getenv func(string) string) (*config.Config, error) {
	flags := cmd.Flags()

	cfg := config.Defaults()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	strs := map[string]*string{
		"host":     &cfg.Ranger.Host,
		"user":     &cfg.Ranger.User,
		"password": &cfg.Ranger.Password,
		"ca-file":  &cfg.Ranger.CAFile,
		"socks5":   &cfg.Ranger.SOCKS5,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name) //nolint:errcheck // flag registered above
		}
	}
	bools := map[string]*bool{
		"ssl":          &cfg.Ranger.SSL,
		"ssl-noverify": &cfg.Ranger.SSLNoVerify,
	}
	for name, dst := range bools {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name) //nolint:errcheck // flag registered above
		}
	}
	if flags.Changed("port") {
		cfg.Ranger.Port, _ = flags.GetInt("port") //nolint:errcheck // flag registered above
	}
	if flags.Changed("timeout") {
		cfg.Ranger.Timeout, _ = flags.GetDuration("timeout") //nolint:errcheck // flag registered above
	}

	if cfg.Ranger.Host == "" {
		return nil, errors.New("ranger host not set (use --host, ranger.host in config, or $RANGER_HOST)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initTracing starts tracing when --otel-endpoint is set. Failures degrade
// to a noop tracer.
func initTracing(cmd *cobra.Command) (trace.Tracer, telemetry.Shutdown) {
	endpoint, _ := cmd.Flags().GetString("otel-endpoint") //nolint:errcheck // persistent flag on root
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	tracer, shutdown, err := telemetry.InitTracer(commandContext(cmd), telemetry.Config{
		Endpoint: endpoint,
		Version:  version,
	})
	if err != nil {
		slog.Warn("initializing tracer", "err", err)
		return noop.NewTracerProvider().Tracer(telemetry.ServiceName), func(context.Context) error { return nil }
	}
	return tracer, shutdown
}

// flushTracing gives the exporter a bounded window to send pending spans.
func flushTracing(shutdown telemetry.Shutdown) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Debug("flushing traces", "err", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
