package settings

import (
	"encoding/json"
	"reflect"

	"github.com/inkcloud/go-settings/layering"
)

// Layers a traced value can come from, strongest first.
const (
	SourceLocal    = "local"
	SourceServer   = "server"
	SourceDefaults = "defaults"
)

// Trace captures where the effective value of a path came from.
type Trace struct {
	Path   string       `json:"path"`
	Value  any          `json:"value,omitempty"`
	Source string       `json:"source,omitempty"`
	Layers []Provenance `json:"layers"`
}

// Provenance is one layer's view of a traced path.
type Provenance struct {
	Layer string `json:"layer"`
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// Trace reports the current, last server and default values at path. Source
// names the weakest layer holding the effective value, so an unedited
// default reads as SourceDefaults even though the document carries it.
func (c *Controller) Trace(path string) Trace {
	c.mu.Lock()
	local, server, defaults := c.doc, c.server, c.defaults
	c.mu.Unlock()

	trace := Trace{Path: path}
	layers := []struct {
		name string
		doc  Document
	}{
		{SourceLocal, local},
		{SourceServer, server},
		{SourceDefaults, defaults},
	}
	for _, layer := range layers {
		value, found := layering.Lookup(layer.doc, path)
		trace.Layers = append(trace.Layers, Provenance{
			Layer: layer.name,
			Value: layering.Clone(value),
			Found: found,
		})
	}
	if !trace.Layers[0].Found {
		return trace
	}
	trace.Value = trace.Layers[0].Value
	trace.Source = SourceLocal
	for i := len(trace.Layers) - 1; i > 0; i-- {
		layer := trace.Layers[i]
		if layer.Found && reflect.DeepEqual(layer.Value, trace.Value) {
			trace.Source = layer.Layer
			break
		}
	}
	return trace
}

// ToJSON serialises the trace.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON parses a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
