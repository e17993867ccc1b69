package shared

import (
	"net/rpc"

	"ner-gazetteer/internal/core/types"

	"github.com/hashicorp/go-plugin"
)

const ModelPluginName = "model"

// Handshake is shared by the host and the model plugin binary. A mismatch
// stops the host from dispensing a plugin built for another protocol.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "NER_GAZETTEER_PLUGIN",
	MagicCookieValue: "entity-model",
}

var PluginMap = map[string]plugin.Plugin{
	ModelPluginName: &ModelPlugin{},
}

// Model is the interface a plugin process serves.
type Model interface {
	Predict(text string) ([]types.Entity, error)
	Labels() ([]string, error)
}

type ModelPlugin struct {
	Impl Model
}

func (p *ModelPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*ModelPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}
