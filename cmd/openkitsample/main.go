// Command openkitsample demonstrates the intended usage of the OpenKit
// core: create a session, enter a couple of top-level actions, trace a
// web request, then end the session and shut the instance down cleanly
// — the same walk-through as the original project's sample1 binary.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/openkit-go/openkit/config"
	"github.com/openkit-go/openkit/log"
	"github.com/openkit-go/openkit/openkit"
)

var (
	endpointFlag = &cli.StringFlag{Name: "endpoint", Usage: "beacon endpoint URL"}
	appIDFlag    = &cli.StringFlag{Name: "app-id", Usage: "application id"}
	configFlag   = &cli.StringFlag{Name: "config", Usage: "path to a TOML config file (overrides endpoint/app-id)"}
)

func main() {
	app := &cli.App{
		Name:  "openkitsample",
		Usage: "drive a sample OpenKit session against a beacon endpoint",
		Flags: []cli.Flag{endpointFlag, appIDFlag, configFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	runID := uuid.New().String()
	l := log.NewDefault().With("run", runID)

	cfg, err := loadConfiguration(c)
	if err != nil {
		return err
	}

	l.Infow("starting sample run", "endpoint", cfg.Endpoint, "app_id", cfg.ApplicationID)
	ok := openkit.New(cfg, l)

	if !ok.WaitForInitCompletion(20 * time.Second) {
		l.Warn("init did not complete within the timeout, continuing anyway")
	}

	session := ok.CreateSession("172.16.23.30")
	session.IdentifyUser("sample user")

	root := session.EnterAction("root action")
	time.Sleep(50 * time.Millisecond)
	root.End()

	action := session.EnterAction("child action")
	time.Sleep(50 * time.Millisecond)
	action.End()

	session.TraceWebRequest("http://www.example.com/", 200, 123, 45, timestampMs(), timestampMs())
	session.End()

	return ok.Shutdown(10 * time.Second)
}

func timestampMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

func loadConfiguration(c *cli.Context) (openkit.Configuration, error) {
	if path := c.String(configFlag.Name); path != "" {
		f, err := config.Load(path)
		if err != nil {
			return openkit.Configuration{}, fmt.Errorf("loading config: %w", err)
		}
		cfg := openkit.DefaultConfiguration(f.Endpoint, f.ApplicationID)
		if f.ApplicationVersion != "" {
			cfg.ApplicationVersion = f.ApplicationVersion
		}
		cfg.CacheMaxRecordAge = f.MaxRecordAge()
		if f.CacheLowerBoundBytes > 0 {
			cfg.CacheLowerBoundBytes = f.CacheLowerBoundBytes
		}
		if f.CacheUpperBoundBytes > 0 {
			cfg.CacheUpperBoundBytes = f.CacheUpperBoundBytes
		}
		return cfg, nil
	}

	endpoint := c.String(endpointFlag.Name)
	appID := c.String(appIDFlag.Name)
	if endpoint == "" || appID == "" {
		return openkit.Configuration{}, fmt.Errorf("either --config or both --endpoint and --app-id must be given")
	}
	return openkit.DefaultConfiguration(endpoint, appID), nil
}
