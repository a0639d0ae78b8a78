// Package cmd parses args to configure the application.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"relay/metric"
	"relay/signal"
)

// Config aggregates the configuration of every server the process runs.
type Config struct {
	Signal signal.Config
	Metric metric.Config
}

// Validate validates all sub-configurations.
func (c Config) Validate() error {
	if err := c.Signal.Validate(); err != nil {
		return err
	}
	return c.Metric.Validate()
}

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stdout, os.Args[1:])
	if err != nil {
		os.Exit(1)
	}

	metrics := metric.New(config.Metric)
	metrics.RegisterMetrics()
	metrics.Start()
	stop := make(chan struct{})
	defer close(stop)
	metrics.UpdateSystemMetrics(stop)

	s, err := signal.New(config.Signal, metrics)
	if err != nil {
		os.Exit(1)
	}
	if err = s.Start(); err != nil {
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration.
func SetupConfig(w io.Writer, args []string) (Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Parse parses the command line arguments.
func Parse(w io.Writer, args []string) (Config, error) {
	con := Config{}

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.IntVar(&con.Signal.Port, "port", signal.DefaultPort, "listening port")
	fs.BoolVar(&con.Signal.Debug, "debug", false, "debug mode")
	fs.StringVar(&con.Signal.KeyFile, "key", "", "key file path")
	fs.StringVar(&con.Signal.CertFile, "cert", "", "cert file path")
	fs.StringVar(&con.Signal.UploadDir, "uploads", signal.DefaultUploadDir, "upload directory")
	fs.IntVar(&con.Metric.Port, "metric-port", metric.DefaultMetricsPort, "metrics server port")
	fs.StringVar(&con.Metric.Path, "metric-path", metric.DefaultMetricsPath, "metrics endpoint path")

	err := fs.Parse(args)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return Config{}, errors.New("some args are not parsed")
	}

	return con, nil
}
