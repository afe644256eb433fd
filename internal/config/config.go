package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var DefaultConfigFileName = "offloading-conf"

const envPrefix = "offloading"

var MissingConfigErr = errors.New("missing required configuration")

// Get returns the configured value for key, or defaultValue if it is not set.
func Get(key string, defaultValue interface{}) interface{} {
	if viper.IsSet(key) {
		return viper.Get(key)
	}
	return defaultValue
}

func GetInt(key string, defaultValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultValue
}

func GetFloat(key string, defaultValue float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return defaultValue
}

func GetBool(key string, defaultValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return defaultValue
}

func GetString(key string, defaultValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

// GetMillis reads an integer number of milliseconds.
func GetMillis(key string, defaultMs int) time.Duration {
	return time.Duration(GetInt(key, defaultMs)) * time.Millisecond
}

// GetStringMapString returns a map-valued key. Values that are not
// strings are converted; keys are lower-cased by viper.
func GetStringMapString(key string, defaultValue map[string]string) map[string]string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	m, err := cast.ToStringMapStringE(viper.Get(key))
	if err != nil {
		log.Printf("Invalid value for %s: %v\n", key, err)
		return defaultValue
	}
	return m
}

// RequireString returns the value of a mandatory key.
func RequireString(key string) (string, error) {
	v := strings.TrimSpace(GetString(key, ""))
	if v == "" {
		return "", fmt.Errorf("%w: %s (env %s)", MissingConfigErr, key, EnvName(key))
	}
	return v, nil
}

// EnvName returns the environment variable bound to key.
func EnvName(key string) string {
	return strings.ToUpper(envPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
}

// Set overrides a value (tests and CLI flags).
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// ReadConfiguration reads a configuration file stored in one of the predefined paths.
// Environment variables (OFFLOADING_<KEY>) take precedence over the file.
func ReadConfiguration(fileName string) {
	// paths where the config file can be placed
	viper.AddConfigPath("/etc/offloading/")
	viper.AddConfigPath("$HOME/")
	viper.AddConfigPath(".")

	if fileName != "" {
		viper.SetConfigName(fileName)
	} else {
		viper.SetConfigName(DefaultConfigFileName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// env-only keys must be bound explicitly to be visible to IsSet
	for _, k := range []string{COMPUTE_URL, ORACLE_URL, TELEMETRY_URL, DECISION_POLICY} {
		_ = viper.BindEnv(k)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("No config file found; using defaults and environment\n")
		} else {
			log.Printf("Error reading config file: %v\n", err)
		}
	}
}
