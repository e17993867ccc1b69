package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ner-gazetteer/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blankPipeline(t *testing.T) *core.Pipeline {
	p := core.NewPipeline(core.NewModelAnnotator(core.BlankModel{}, core.Blank))

	cfg, err := core.LoadGazetteerConfig("")
	require.NoError(t, err)
	g, err := core.NewGazetteerAnnotatorFromConfig(cfg)
	require.NoError(t, err)
	p.AddAnnotator(g)
	return p
}

func TestRunDefaultText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(blankPipeline(t), options{text: defaultText, policy: core.KeepAll, workers: 1}, &out))

	assert.Equal(t, "[Entity(value='arddh', label='NAME', start=0, end=5)]\n", out.String())
}

func TestRunQueryAndJSON(t *testing.T) {
	var out bytes.Buffer
	opts := options{text: "no one", query: "COUNT(NAME) > 0", policy: core.KeepAll, workers: 1}
	require.NoError(t, run(blankPipeline(t), opts, &out))
	assert.Equal(t, "[]\nmatched: false\n", out.String())

	out.Reset()
	opts.text, opts.asJSON = "aerty", true
	require.NoError(t, run(blankPipeline(t), opts, &out))
	assert.JSONEq(t, `{"Entities":[{"Value":"aerty","Label":"NAME","Start":0,"End":5}],"Matched":true}`, out.String())

	opts.query = "COUNT(NAME) >"
	assert.Error(t, run(blankPipeline(t), opts, &out))
}

func TestRunInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(path, []byte("arddh\n\nhi aerty\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, run(blankPipeline(t), options{input: path, policy: core.KeepAll, workers: 2}, &out))

	assert.Equal(t,
		"[Entity(value='arddh', label='NAME', start=0, end=5)]\n"+
			"[]\n"+
			"[Entity(value='aerty', label='NAME', start=3, end=8)]\n",
		out.String())

	assert.Error(t, run(blankPipeline(t), options{input: filepath.Join(t.TempDir(), "missing.txt"), workers: 1}, &out))
}
