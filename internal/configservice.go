package internal

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/ctxhelper"
	"github.com/derWhity/whispqr/internal/log"
	"github.com/derWhity/whispqr/internal/models"
)

// Prefix of all environment variables overriding configuration values
const envPrefix = "WHISPQR_"

// ConfigService gives access to the application's configuration
type ConfigService interface {
	// Load loads the application config from its default file location
	Load(ctx context.Context) error
	// LoadFromFile loads the configuration from the given JSON file
	LoadFromFile(ctx context.Context, filename string) error
	// ApplyEnvironment loads the given .env files (missing ones are skipped) and applies all WHISPQR_* variables of
	// the process environment on top of the loaded configuration
	ApplyEnvironment(ctx context.Context, envFiles ...string) error
	// Write writes the current application configuration to the default file name
	Write(ctx context.Context) error
	// WriteToFile writes the current application configuration to a JSON file
	WriteToFile(ctx context.Context, filename string) error
	// GetConfig retuns the current application configuration
	GetConfig(ctx context.Context) models.AppConfig
}

// -- ConfigService implementation -------------------------------------------------------------------------------------

type configService struct {
	configFilename string
	config         *models.AppConfig
}

// NewConfigService creates a new configuration service instance with the given default file name
func NewConfigService(configFilename string) ConfigService {
	return &configService{
		configFilename: configFilename,
	}
}

// Load loads the application config from its default file location
func (s *configService) Load(ctx context.Context) error {
	return s.LoadFromFile(ctx, s.configFilename)
}

// LoadFromFile loads the configuration from the given JSON file
func (s *configService) LoadFromFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Loading configuration file")
	conf, err := models.GetDefaultConfig()
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to create default config")
	}
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "LoadFromFile: cannot load configuration file")
	}
	defer f.Close()
	if err = json.NewDecoder(f).Decode(conf); err != nil {
		return errors.Wrap(err, "LoadFromFile: Failed to decode configuration file")
	}
	s.config = conf
	return nil
}

// ApplyEnvironment loads .env files and applies the WHISPQR_* environment overrides
func (s *configService) ApplyEnvironment(ctx context.Context, envFiles ...string) error {
	logger := ctxhelper.Logger(ctx)
	for _, file := range envFiles {
		if _, err := os.Stat(file); os.IsNotExist(err) {
			continue
		}
		logger.WithField(log.FldFile, file).Info("Loading environment file")
		// Variables already set in the process environment win over the file
		if err := godotenv.Load(file); err != nil {
			return errors.Wrapf(err, "ApplyEnvironment: Failed to load environment file '%s'", file)
		}
	}
	conf := s.GetConfig(ctx)
	if err := applyEnvironment(&conf, os.LookupEnv); err != nil {
		return err
	}
	s.config = &conf
	return nil
}

// applyEnvironment overrides the configuration values for which lookup finds a WHISPQR_* variable
func applyEnvironment(conf *models.AppConfig, lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"LISTEN_ADDRESS": &conf.ListenAddress,
		"DATA_DIR":       &conf.DataDir,
		"LOG_LEVEL":      &conf.LogLevel,
		"STORAGE_DRIVER": &conf.Storage.Driver,
		"STORAGE_DSN":    &conf.Storage.DSN,
		"MONGO_URI":      &conf.Storage.MongoURI,
		"MONGO_DATABASE": &conf.Storage.MongoDatabase,
		"FEED_BROKER":    &conf.Feed.Broker,
		"REDIS_ADDR":     &conf.Feed.RedisAddr,
		"REDIS_PASSWORD": &conf.Feed.RedisPassword,
		"REDIS_CHANNEL":  &conf.Feed.RedisChannel,
		"AMQP_URL":       &conf.Feed.AMQPURL,
		"AMQP_EXCHANGE":  &conf.Feed.AMQPExchange,
		"AUTH_SECRET":    &conf.Auth.HMACSecret,
		"AUTH_JWKS_URL":  &conf.Auth.JWKSURL,
		"AUTH_ISSUER":    &conf.Auth.Issuer,
		"AUTH_AUDIENCE":  &conf.Auth.Audience,
	}
	for name, target := range strVars {
		if val, ok := lookup(envPrefix + name); ok {
			*target = strings.TrimSpace(val)
		}
	}
	if val, ok := lookup(envPrefix + "EVENT_TTL_HOURS"); ok {
		hours, err := strconv.ParseUint(strings.TrimSpace(val), 10, 32)
		if err != nil {
			return errors.Wrap(err, "applyEnvironment: Illegal value for "+envPrefix+"EVENT_TTL_HOURS")
		}
		conf.EventTTLHours = uint(hours)
	}
	if val, ok := lookup(envPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return errors.Wrap(err, "applyEnvironment: Illegal value for "+envPrefix+"REDIS_DB")
		}
		conf.Feed.RedisDB = db
	}
	return nil
}

// Write writes the current application configuration to the default file name
func (s *configService) Write(ctx context.Context) error {
	return s.WriteToFile(ctx, s.configFilename)
}

// WriteToFile writes the current application configuration to a JSON file
func (s *configService) WriteToFile(ctx context.Context, filename string) error {
	logger := ctxhelper.Logger(ctx)
	logger.WithField(log.FldFile, filename).Info("Writing configuration file")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "WriteToFile: Cannot open configuration file '%s' to write to", filename)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	conf := s.GetConfig(ctx)
	if err := enc.Encode(&conf); err != nil {
		return errors.Wrap(err, "WriteToFile: Failed to serialize configuration data")
	}
	return nil
}

// GetConfig retuns the current application configuration
func (s *configService) GetConfig(ctx context.Context) models.AppConfig {
	var ret models.AppConfig
	if s.config != nil {
		ret = *s.config
	} else {
		if tmp, err := models.GetDefaultConfig(); err == nil {
			ret = *tmp
		}
	}
	return ret
}
