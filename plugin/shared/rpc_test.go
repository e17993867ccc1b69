package shared_test

import (
	"errors"
	"testing"

	"ner-gazetteer/internal/core/types"
	"ner-gazetteer/plugin/shared"

	"github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct{}

func (fakeModel) Predict(text string) ([]types.Entity, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	return []types.Entity{types.CreateEntity("NAME", text, 0, 5)}, nil
}

func (fakeModel) Labels() ([]string, error) {
	return []string{"NAME"}, nil
}

func dispense(t *testing.T) shared.Model {
	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		shared.ModelPluginName: &shared.ModelPlugin{Impl: fakeModel{}},
	}, nil)
	t.Cleanup(func() { client.Close() })

	raw, err := client.Dispense(shared.ModelPluginName)
	require.NoError(t, err)

	model, ok := raw.(shared.Model)
	require.True(t, ok, "dispensed %T", raw)
	return model
}

func TestRPCPredict(t *testing.T) {
	model := dispense(t)

	entities, err := model.Predict("arddh and aerty")
	require.NoError(t, err)
	assert.Equal(t, []types.Entity{{Value: "arddh", Label: "NAME", Start: 0, End: 5}}, entities)

	labels, err := model.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"NAME"}, labels)
}

func TestRPCPredictError(t *testing.T) {
	model := dispense(t)

	_, err := model.Predict("")
	assert.ErrorContains(t, err, "empty text")
}
