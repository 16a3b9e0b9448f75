package memgraph

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// File is the on-disk graph format. JSON files are accepted as well since
// JSON is valid YAML.
type File struct {
	Nodes []gc.Node `yaml:"nodes" json:"nodes"`
	Edges []gc.Edge `yaml:"edges" json:"edges"`
}

// Load reads a graph in File format from r.
func Load(r io.Reader) (*Graph, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "memgraph", "Load", "decode graph")
	}
	return FromFile(f)
}

// LoadFile reads a graph file from path.
func LoadFile(path string) (*Graph, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "memgraph", "LoadFile", "open graph file")
	}
	defer fh.Close()
	return Load(fh)
}

// FromFile builds a graph from decoded file contents. Every edge must
// reference declared nodes.
func FromFile(f File) (*Graph, error) {
	g := New()
	for _, n := range f.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range f.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}
