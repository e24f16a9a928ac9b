package config_test

import (
	"errors"
	"testing"

	"github.com/readpace/readpace/internal/config"
	"github.com/readpace/readpace/pkg/stt"
	"github.com/readpace/readpace/pkg/stt/mock"
)

func TestRegistryCreateSTT(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Provider, error) {
		return mock.New(), nil
	})

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if p == nil {
		t.Fatal("CreateSTT returned nil provider")
	}

	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nonexistent"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT for unknown name: err = %v, want ErrProviderNotRegistered", err)
	}

	names := reg.STTNames()
	if len(names) != 1 || names[0] != "mock" {
		t.Errorf("STTNames() = %v, want [mock]", names)
	}
}
