package remote

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"ner-gazetteer/internal/core/types"
	"ner-gazetteer/plugin/shared"

	"github.com/hashicorp/go-plugin"
)

// PluginModel runs a model in a child process and talks to it over net/rpc.
type PluginModel struct {
	mu     sync.Mutex
	client *plugin.Client
	model  shared.Model
}

func LoadPluginModel(executable string, args []string, env []string) (*PluginModel, error) {
	cmd := exec.Command(executable, args...)
	cmd.Env = env

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  shared.Handshake,
		Plugins:          shared.PluginMap,
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error establishing RPC connection: %w", err)
	}

	raw, err := rpcClient.Dispense(shared.ModelPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("error dispensing '%s': %w", shared.ModelPluginName, err)
	}

	model, ok := raw.(shared.Model)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("dispensed interface '%s' is not of expected type shared.Model (actual type: %T)", shared.ModelPluginName, raw)
	}

	slog.Info("model plugin started", "executable", executable)

	return &PluginModel{
		client: client,
		model:  model,
	}, nil
}

func (m *PluginModel) Predict(text string) ([]types.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil, fmt.Errorf("model plugin has been released")
	}
	return m.model.Predict(text)
}

func (m *PluginModel) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil
	}
	labels, err := m.model.Labels()
	if err != nil {
		slog.Error("error fetching labels from model plugin", "error", err)
		return nil
	}
	return labels
}

func (m *PluginModel) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return
	}

	m.client.Kill()
	m.client = nil
	m.model = nil
}
