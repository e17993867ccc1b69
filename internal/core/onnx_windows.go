//go:build windows

package core

import (
	"errors"

	"ner-gazetteer/internal/core/types"
)

var ErrOnnxNotSupportedOnWindows = errors.New("ONNX models are not supported on Windows")

func InitOnnxRuntime(dylib string) error {
	return ErrOnnxNotSupportedOnWindows
}

func DestroyOnnxRuntime() {}

type OnnxModel struct{}

func LoadOnnxModel(modelDir string) (*OnnxModel, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Predict(text string) ([]types.Entity, error) {
	return nil, ErrOnnxNotSupportedOnWindows
}

func (m *OnnxModel) Labels() []string {
	return nil
}

func (m *OnnxModel) Release() {}
