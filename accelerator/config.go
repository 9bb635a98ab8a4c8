package accelerator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"
	"github.com/iiasa/accli-go/accelerator/network/chunkuploader"
)

// DefaultServerURL is the production Accelerator API.
const DefaultServerURL = "https://acceleratoapi.iiasa.ac.at"

const apiPath = "/v1/aterm-cli"

const (
	tokenEnvKey      = "ACCLI_TOKEN"
	serverURLEnvKey  = "ACCLI_SERVER_URL"
	maxWorkersEnvKey = "ACCLI_MAX_WORKERS"
	chunkSizeEnvKey  = "ACCLI_CHUNK_SIZE"
	insecureEnvKey   = "ACCLI_INSECURE"
	failFastEnvKey   = "ACCLI_FAIL_FAST"
	debugEnvKey      = "ACCLI_DEBUG"
)

// Secret is a string value that is redacted when printed.
type Secret string

// String ...
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return strings.Repeat("*", 5)
}

// Config is the configuration of an accli run.
type Config struct {
	Token      Secret
	ServerURL  string
	MaxWorkers int
	// ChunkSize is the size of every uploaded part except the last one, in bytes.
	ChunkSize          int64
	InsecureSkipVerify bool
	CancelOnFailure    bool
	Debug              bool
}

// LoadConfig reads the configuration from the environment.
func LoadConfig(envRepo env.Repository) (Config, error) {
	config := Config{
		Token:           Secret(strings.TrimSpace(envRepo.Get(tokenEnvKey))),
		ServerURL:       strings.TrimSuffix(strings.TrimSpace(envRepo.Get(serverURLEnvKey)), "/"),
		MaxWorkers:      chunkuploader.DefaultConcurrency(),
		ChunkSize:       chunkuploader.DefaultChunkSize,
		CancelOnFailure: true,
	}

	if config.ServerURL == "" {
		config.ServerURL = DefaultServerURL
	}

	if value := envRepo.Get(maxWorkersEnvKey); value != "" {
		maxWorkers, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s (%s): %w", maxWorkersEnvKey, value, err)
		}
		if maxWorkers < 1 {
			return Config{}, fmt.Errorf("invalid %s (%s): must be at least 1", maxWorkersEnvKey, value)
		}
		config.MaxWorkers = maxWorkers
	}

	if value := envRepo.Get(chunkSizeEnvKey); value != "" {
		chunkSize, err := units.RAMInBytes(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s (%s): %w", chunkSizeEnvKey, value, err)
		}
		if chunkSize < 1 {
			return Config{}, fmt.Errorf("invalid %s (%s): must be positive", chunkSizeEnvKey, value)
		}
		config.ChunkSize = chunkSize
	}

	var err error
	if config.InsecureSkipVerify, err = parseBool(envRepo, insecureEnvKey, false); err != nil {
		return Config{}, err
	}
	if config.CancelOnFailure, err = parseBool(envRepo, failFastEnvKey, true); err != nil {
		return Config{}, err
	}
	if config.Debug, err = parseBool(envRepo, debugEnvKey, false); err != nil {
		return Config{}, err
	}

	return config, nil
}

// APIBaseURL is the root of the terminal CLI endpoints.
func (c Config) APIBaseURL() string {
	return c.ServerURL + apiPath
}

// UploaderConfig converts the configuration to the chunk uploader's configuration.
func (c Config) UploaderConfig() chunkuploader.Config {
	config := chunkuploader.DefaultConfig()
	config.Concurrency = c.MaxWorkers
	config.ChunkSize = c.ChunkSize
	config.CancelOnFailure = c.CancelOnFailure
	config.HTTPClient = chunkuploader.DefaultHTTPClient(c.InsecureSkipVerify)
	return config
}

func parseBool(envRepo env.Repository, key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(envRepo.Get(key))
	if value == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s (%s): %w", key, value, err)
	}
	return b, nil
}
