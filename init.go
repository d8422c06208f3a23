package tonpairs

import (
	"os"
	"strconv"

	"github.com/raykavin/tonpairs/pkg/logger"
	"github.com/raykavin/tonpairs/pkg/logger/zerolog"
)

// DefaultLog is the logger used when none is given to NewBot
var DefaultLog logger.Logger

const (
	// Default configuration values
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

// Environment variable names
const (
	envLogLevel      = "TONPAIRS_LOG_LEVEL"
	envLogTimeFormat = "TONPAIRS_LOG_TIME_FORMAT"
	envLogColor      = "TONPAIRS_LOG_COLOR"
	envLogJSON       = "TONPAIRS_LOG_JSON"
)

func init() {
	log, err := initLogger()
	if err != nil {
		panic(err)
	}

	DefaultLog = log
}

// initLogger creates a logger configured from environment variables
func initLogger() (logger.Logger, error) {
	logColored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return nil, err
	}

	logJSON, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return nil, err
	}

	log, err := zerolog.New(zerolog.Config{
		Level:      getEnvWithDefault(envLogLevel, defaultLogLevel),
		TimeFormat: getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat),
		Colored:    logColored,
		JSON:       logJSON,
	})
	if err != nil {
		return nil, err
	}
	return zerolog.NewAdapter(log), nil
}

// getEnvWithDefault returns the value of the environment variable or the default if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolEnv(key, defaultValue string) (bool, error) {
	return strconv.ParseBool(getEnvWithDefault(key, defaultValue))
}
