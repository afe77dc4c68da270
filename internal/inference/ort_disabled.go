//go:build !ORT

package inference

import "errors"

var ErrORTDisabled = errors.New("to enable the ort runtime, build with `-tags ORT`")

func NewORTPredictor(_ string, _ Options) (Predictor, error) {
	return nil, ErrORTDisabled
}

func Shutdown() error {
	return nil
}
