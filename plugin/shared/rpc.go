package shared

import (
	"net/rpc"

	"ner-gazetteer/internal/core/types"
)

// RPCClient is an implementation of Model that talks over RPC.
type RPCClient struct{ client *rpc.Client }

func (m *RPCClient) Predict(text string) ([]types.Entity, error) {
	var resp []types.Entity
	err := m.client.Call("Plugin.Predict", text, &resp)
	return resp, err
}

func (m *RPCClient) Labels() ([]string, error) {
	var resp []string
	err := m.client.Call("Plugin.Labels", new(interface{}), &resp)
	return resp, err
}

// Here is the RPC server that RPCClient talks to, conforming to
// the requirements of net/rpc
type RPCServer struct {
	// This is the real implementation
	Impl Model
}

func (m *RPCServer) Predict(text string, resp *[]types.Entity) error {
	v, err := m.Impl.Predict(text)
	*resp = v
	return err
}

func (m *RPCServer) Labels(args interface{}, resp *[]string) error {
	v, err := m.Impl.Labels()
	*resp = v
	return err
}
