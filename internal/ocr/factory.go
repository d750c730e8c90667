// Package ocr turns page images into text through pluggable recognition providers.
package ocr

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"permitflow/internal/config"
	"permitflow/internal/logger"
	"permitflow/internal/port"
)

// ProviderFactory creates a recognition engine from a provider config.
type ProviderFactory func(cfg *config.OCRProviderConfig) (port.Recognizer, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider registers an OCR provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Providers lists the registered provider names.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRecognizer creates an engine from a provider config using the registered factory.
func NewRecognizer(cfg *config.OCRProviderConfig) (port.Recognizer, error) {
	providersMu.RLock()
	factory, ok := providers[cfg.Provider]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ocr provider: %s", cfg.Provider)
	}
	return factory(cfg)
}

// EngineFactory builds a fresh engine for every extraction. With a secondary provider configured
// the engine falls back to it; rate-limit circuits persist across engines.
type EngineFactory struct {
	configs  []config.OCRProviderConfig
	circuits []*circuitState
	logger   *zap.Logger
}

// NewEngineFactory validates the configured providers and returns a factory.
func NewEngineFactory(cfg *config.OCRConfig, log *zap.Logger) (*EngineFactory, error) {
	configs := []config.OCRProviderConfig{cfg.Primary}
	if sec := cfg.SecondaryConfig(); sec != nil {
		configs = append(configs, *sec)
	}
	providersMu.RLock()
	defer providersMu.RUnlock()
	for _, c := range configs {
		if _, ok := providers[c.Provider]; !ok {
			return nil, fmt.Errorf("unknown ocr provider: %s", c.Provider)
		}
	}
	circuits := make([]*circuitState, len(configs))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &EngineFactory{configs: configs, circuits: circuits, logger: logger.OrNop(log)}, nil
}

// NewRecognizer implements port.RecognizerFactory.
func (f *EngineFactory) NewRecognizer(_ context.Context) (port.Recognizer, error) {
	engines := make([]port.Recognizer, 0, len(f.configs))
	names := make([]string, 0, len(f.configs))
	for i := range f.configs {
		e, err := NewRecognizer(&f.configs[i])
		if err != nil {
			for _, created := range engines {
				_ = created.Terminate()
			}
			return nil, err
		}
		engines = append(engines, e)
		names = append(names, f.configs[i].Provider)
	}
	if len(engines) == 1 {
		return engines[0], nil
	}
	return newFallbackRecognizer(engines, names, f.circuits, f.logger), nil
}
