// Copyright 2025 CineVision
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "sync"

var (
	overrideMu       sync.RWMutex
	providerOverride Provider
)

// OverrideProvider makes ProvideWithOverride return p until the returned restore func is called.
// Only tests should use it.
func OverrideProvider(p Provider) (restore func()) {
	overrideMu.Lock()
	prev := providerOverride
	providerOverride = p
	overrideMu.Unlock()

	return func() {
		overrideMu.Lock()
		providerOverride = prev
		overrideMu.Unlock()
	}
}

// ProvideWithOverride returns the override provider if one is installed, otherwise Provide(path).
func ProvideWithOverride(path string) Provider {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	if providerOverride != nil {
		return providerOverride
	}
	return Provide(path)
}

type staticProvider struct {
	cfg Config
}

// NewStaticProvider returns a provider that always yields a copy of cfg.
func NewStaticProvider(cfg Config) Provider {
	return &staticProvider{cfg: cfg}
}

func (p *staticProvider) GetConfig() (*Config, error) {
	cfg := p.cfg
	return &cfg, nil
}
