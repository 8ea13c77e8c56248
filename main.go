package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/kardianos/osext"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	whispqr "github.com/derWhity/whispqr/internal"
	"github.com/derWhity/whispqr/internal/ctxhelper"
	"github.com/derWhity/whispqr/internal/expiry"
	"github.com/derWhity/whispqr/internal/feed"
	"github.com/derWhity/whispqr/internal/identity"
	"github.com/derWhity/whispqr/internal/log"
)

const (
	appName    = "whispqr"
	appVersion = "0.1.0"
)

// Checks and tries to create the given directory recursively (or panics if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else {
		if !fileInfo.IsDir() {
			logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
		}
	}
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)
	envFile := flag.String(
		"env",
		".env",
		"Environment file with WHISPQR_* overrides - skipped if it does not exist",
	)
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = ctxhelper.WithLogger(ctx, logger)

	// Load the main configuration file
	cs := whispqr.NewConfigService(*configFile)
	if err := cs.Load(ctx); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			logger.Warn("No configuration file found - writing the defaults")
			if err := cs.Write(ctx); err != nil {
				logger.WithError(err).Error("Failed to write the default configuration")
			}
		} else {
			logger.WithError(err).Error("Cannot load config. Using defaults")
		}
	}
	if err := cs.ApplyEnvironment(ctx, *envFile); err != nil {
		logger.WithError(err).Fatal("Failed to apply the environment")
	}
	conf := cs.GetConfig(ctx)

	if lvl, err := logrus.ParseLevel(conf.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logger.WithError(err).Warnf("Unknown log level '%s' - keeping the default", conf.LogLevel)
	}

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Storage backend
	store, err := openStorage(ctx, conf, logger.WithField(log.FldTransport, "storage"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to open the storage backend")
	}
	defer store.close()

	// Live feeds
	feedLogger := logger.WithField(log.FldTransport, "feed")
	bc, err := openBroadcaster(ctx, conf.Feed, feedLogger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to the feed broker")
	}
	hub := feed.NewHub(bc, feedLogger)
	go hub.Run(ctx)

	// Identity tokens - without a key source nobody can log in as host
	var verifier whispqr.TokenVerifier
	if v, err := identity.New(conf.Auth, logger); err == nil {
		defer v.Close()
		verifier = v
	} else if err == identity.ErrNoKeySource {
		logger.Warn("No identity key source configured - only guest functions are available")
	} else {
		logger.WithError(err).Fatal("Failed to set up identity token verification")
	}

	evSrv := whispqr.NewEventService(store.events, expiry.New(conf.EventTTL()), hub, logger)
	msgSrv := whispqr.NewMessageService(evSrv, store.messages, hub, logger)

	httpLogger := logger.WithField(log.FldTransport, "HTTP")
	h := whispqr.MakeHTTPHandler(evSrv, msgSrv, verifier, httpLogger)

	// Start listening
	errs := make(chan error)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		errs <- err
	}()

	go func() {
		httpLogger.WithField(log.FldAddr, conf.ListenAddress).Info("Starting listening port")
		errs <- http.ListenAndServe(conf.ListenAddress, h)
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := conf.ListenAddress[strings.LastIndex(conf.ListenAddress, ":")+1:]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if res, err := http.Get(url); err == nil {
				res.Body.Close()
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutting down")
	cancel()
	hub.Close()
	if bc != nil {
		if err := bc.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close the feed broker connection")
		}
	}
	logger.Info("Shutdown complete")
}
