// Package config loads a multiplexer configuration from YAML
// and builds the stores, router and resolver it describes.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/jrife/kvmux/multiplex"
	"github.com/jrife/kvmux/routing"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/plugins"
	pkg_errors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const (
	// RoutingAll copies every value to every store
	RoutingAll = "all"
	// RoutingHash copies every value to a fixed number
	// of stores chosen by rendezvous hashing
	RoutingHash = "hash"
	// RoutingRules copies values to stores chosen by
	// regular expressions matched against the value
	RoutingRules = "rules"

	// ResolverScan resolves physical keys by scanning the index
	ResolverScan = "scan"
	// ResolverIdentity treats physical keys as logical keys
	ResolverIdentity = "identity"
)

// Config is the root of a configuration file
type Config struct {
	Log      LogConfig     `yaml:"log"`
	Index    StoreConfig   `yaml:"index"`
	Stores   []StoreConfig `yaml:"stores"`
	Routing  RoutingConfig `yaml:"routing"`
	Resolver string        `yaml:"resolver"`
	Metrics  bool          `yaml:"metrics"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// StoreConfig describes a store created through a kv plugin.
// Label is ignored for the index.
type StoreConfig struct {
	Label   string                 `yaml:"label"`
	Driver  string                 `yaml:"driver"`
	Options map[string]interface{} `yaml:"options"`
}

// RoutingConfig selects and configures the router.
// Type defaults to "all".
type RoutingConfig struct {
	Type     string       `yaml:"type"`
	Replicas int          `yaml:"replicas"`
	Rules    []RuleConfig `yaml:"rules"`
	Fallback []string     `yaml:"fallback"`
}

// RuleConfig routes values matching the regular
// expression Match to Stores
type RuleConfig struct {
	Match  string   `yaml:"match"`
	Stores []string `yaml:"stores"`
}

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, pkg_errors.Wrap(err, "could not open config file")
	}

	defer file.Close()

	data, err := io.ReadAll(file)

	if err != nil {
		return nil, pkg_errors.Wrap(err, "could not read config file")
	}

	return Parse(data)
}

// Parse decodes and validates a configuration
func Parse(data []byte) (*Config, error) {
	var config Config

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, pkg_errors.Wrap(err, "could not decode config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks that the configuration describes a
// working multiplexer without creating any stores
func (config *Config) Validate() error {
	if err := validateDriver("index", config.Index.Driver); err != nil {
		return err
	}

	if len(config.Stores) == 0 {
		return invalid("at least one store is required")
	}

	labels := map[string]bool{}

	for i, store := range config.Stores {
		if store.Label == "" {
			return invalid("store %d has no label", i)
		}

		if labels[store.Label] {
			return invalid("duplicate store label %q", store.Label)
		}

		if err := validateDriver(fmt.Sprintf("store %q", store.Label), store.Driver); err != nil {
			return err
		}

		labels[store.Label] = true
	}

	if err := config.Routing.validate(labels, len(config.Stores)); err != nil {
		return err
	}

	switch config.Resolver {
	case "", ResolverScan, ResolverIdentity:
	default:
		return invalid("unknown resolver %q", config.Resolver)
	}

	return nil
}

func validateDriver(name string, driver string) error {
	if driver == "" {
		return invalid("%s has no driver", name)
	}

	if plugins.Plugin(driver) == nil {
		return invalid("%s has unknown driver %q", name, driver)
	}

	return nil
}

func (routingConfig RoutingConfig) validate(labels map[string]bool, stores int) error {
	checkLabels := func(what string, routed []string) error {
		for _, label := range routed {
			if !labels[label] {
				return invalid("%s names unknown store %q", what, label)
			}
		}

		return nil
	}

	switch routingConfig.Type {
	case "", RoutingAll:
	case RoutingHash:
		if routingConfig.Replicas < 0 || routingConfig.Replicas > stores {
			return invalid("replicas must be in [0, %d]", stores)
		}
	case RoutingRules:
		if len(routingConfig.Rules) == 0 && len(routingConfig.Fallback) == 0 {
			return invalid("rules routing needs rules or a fallback")
		}

		for i, rule := range routingConfig.Rules {
			if _, err := regexp.Compile(rule.Match); err != nil {
				return invalid("rule %d: %s", i, err)
			}

			if len(rule.Stores) == 0 {
				return invalid("rule %d has no stores", i)
			}

			if err := checkLabels(fmt.Sprintf("rule %d", i), rule.Stores); err != nil {
				return err
			}
		}

		if err := checkLabels("fallback", routingConfig.Fallback); err != nil {
			return err
		}
	default:
		return invalid("unknown routing type %q", routingConfig.Type)
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return pkg_errors.Wrapf(multiplex.ErrInvalidConfig, format, args...)
}

// Build creates every store through its plugin and returns
// the multiplexer configuration. The multiplexer owns the
// stores once it is created. Until then cleanup closes them.
// If Build fails the stores it created are already closed.
// Collectors are registered with registerer only if metrics
// are enabled.
func (config *Config) Build(logger *zap.Logger, registerer prometheus.Registerer) (*multiplex.Config, func() error, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	if logger == nil {
		logger = zap.L()
	}

	created := []kv.Store{}
	cleanup := func() error {
		var firstErr error

		for _, store := range created {
			if closer, ok := store.(io.Closer); ok {
				if err := closer.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}

		return firstErr
	}

	newStore := func(name string, storeConfig StoreConfig) (kv.Store, error) {
		store, err := plugins.Plugin(storeConfig.Driver).NewStore(kv.PluginOptions(storeConfig.Options))

		if err != nil {
			return nil, pkg_errors.Wrapf(err, "could not create %s", name)
		}

		created = append(created, store)

		return store, nil
	}

	index, err := newStore("index", config.Index)

	if err != nil {
		cleanup()

		return nil, nil, err
	}

	multiplexConfig := &multiplex.Config{
		Logger: logger,
		Index:  multiplex.IndexConfig{Store: index},
	}

	labels := []string{}

	for _, storeConfig := range config.Stores {
		store, err := newStore(fmt.Sprintf("store %q", storeConfig.Label), storeConfig)

		if err != nil {
			cleanup()

			return nil, nil, err
		}

		multiplexConfig.Stores = append(multiplexConfig.Stores, multiplex.StoreConfig{Label: storeConfig.Label, Store: store})
		labels = append(labels, storeConfig.Label)
	}

	multiplexConfig.Router = config.Routing.router(labels)

	switch config.Resolver {
	case ResolverIdentity:
		multiplexConfig.Resolver = multiplex.IdentityResolver{}
	default:
		multiplexConfig.Resolver = &multiplex.ScanResolver{Index: index}
	}

	if config.Metrics {
		multiplexConfig.Metrics = registerer
	}

	logger.Info("built multiplexer config", zap.String("index", config.Index.Driver), zap.Strings("stores", labels), zap.String("routing", config.Routing.Type))

	return multiplexConfig, cleanup, nil
}

// router must only be called on a validated config
func (routingConfig RoutingConfig) router(labels []string) routing.Router {
	switch routingConfig.Type {
	case RoutingHash:
		replicas := routingConfig.Replicas

		if replicas == 0 {
			replicas = 1
		}

		return routing.Hash(labels, replicas)
	case RoutingRules:
		rules := make([]routing.Rule, len(routingConfig.Rules))

		for i, rule := range routingConfig.Rules {
			rules[i] = routing.Rule{Match: regexp.MustCompile(rule.Match), Stores: rule.Stores}
		}

		return routing.Rules(rules, routingConfig.Fallback...)
	}

	return routing.All(labels...)
}
