//go:build !js_eval

package settings

func newJSBackend() backend { return nil }
