//go:build !govips || !cgo

package engine

func Startup() error {
	return nil
}

func Shutdown() {}

func newTransformer() (Transformer, error) {
	return imagingTransformer{}, nil
}
