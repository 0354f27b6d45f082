// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package schema

import (
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor takes a config string (optionally empty) and returns a Provider.
type Constructor func(config string) (Provider, error)

var (
	muConstructors         sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a schema provider with the given name, and a constructor that takes as input a configuration string.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	muConstructors.Lock()
	defer muConstructors.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the provider configuration used by NewProvider if ConfigEnvVar is not set.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// ConfigEnvVar is the environment variable with the default provider configuration to use.
//
// The format of the value is "<provider_name>:<provider_configuration>".
const ConfigEnvVar = "PIPEGRAPH_SCHEMAS"

// NewProvider returns the default schema Provider.
//
// The default is:
//
//  1. The environment variable PIPEGRAPH_SCHEMAS is used as a configuration if defined.
//  2. Next the variable DefaultConfig is used as a configuration if defined.
//  3. The first registered provider is used with an empty configuration.
func NewProvider() (Provider, error) {
	if config, found := os.LookupEnv(ConfigEnvVar); found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig creates a Provider from a configuration string formatted as "<provider_name>:<provider_configuration>".
//
// "<provider_name>" is the name of a registered provider (e.g.: "yaml") and "<provider_configuration>" is
// provider specific (e.g.: for "yaml" it is the path to the catalog file). If there is no ":", the whole
// string is taken as the provider name.
func NewWithConfig(config string) (Provider, error) {
	muConstructors.Lock()
	if len(registeredConstructors) == 0 {
		muConstructors.Unlock()
		return nil, errors.New("no registered schema providers")
	}
	providerName := firstRegistered
	providerConfig := ""
	if config != "" {
		providerName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			providerName = config[:idx]
			providerConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[providerName]
	muConstructors.Unlock()
	if !found {
		return nil, errors.Errorf("can't find schema provider %q for configuration %q given", providerName, config)
	}
	klog.V(1).Infof("creating schema provider %q (config %q)", providerName, providerConfig)
	provider, err := constructor(providerConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create schema provider %q", providerName)
	}
	return provider, nil
}

func init() {
	Register("memory", func(string) (Provider, error) { return NewRegistry(), nil })
	Register("yaml", func(config string) (Provider, error) {
		if config == "" {
			return nil, errors.New("the yaml schema provider requires the path to a catalog, e.g. \"yaml:/path/schemas.yaml\"")
		}
		return LoadCatalogFile(config)
	})
}
