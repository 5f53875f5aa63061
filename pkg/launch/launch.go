// Package launch builds graphs from YAML pipeline descriptions.
//
// A description names the elements, the links made before the graph
// starts, and the dynamic links a negotiator makes once a source announces
// its ports:
//
//	name: test-pipeline
//	elements:
//	  - {kind: uridecodebin, name: source0, props: {uri: "test://tone"}}
//	  - {kind: audioconvert, name: convert}
//	  - {kind: audioresample, name: resample}
//	  - {kind: autoaudiosink, name: sink}
//	links:
//	  - [convert, resample, sink]
//	dynamic:
//	  - {from: source0, to: convert.sink, accept: audio/x-raw}
//
// A link chain may also be written as a single string, "convert ! resample
// ! sink". Chain members are element names or element.port references.
package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

var (
	// ErrInvalid is returned for descriptions that cannot be built.
	ErrInvalid = errors.New("launch: invalid description")
	// ErrUnknownElement is returned for references to undeclared elements.
	ErrUnknownElement = errors.New("launch: unknown element")
)

// DefaultAccept is the media kind dynamic links accept when none is given.
const DefaultAccept = pipeline.MediaAudioRaw

// Description is a pipeline description.
type Description struct {
	Name     string        `yaml:"name" json:"name"`
	Elements []Element     `yaml:"elements" json:"elements"`
	Links    []Chain       `yaml:"links,omitempty" json:"links,omitempty"`
	Dynamic  []DynamicLink `yaml:"dynamic,omitempty" json:"dynamic,omitempty"`
}

// Element declares one element.
type Element struct {
	Kind  string         `yaml:"kind" json:"kind"`
	Name  string         `yaml:"name" json:"name"`
	Props map[string]any `yaml:"props,omitempty" json:"props,omitempty"`
}

// Chain is a sequence of references linked pairwise.
type Chain []string

// UnmarshalYAML accepts a sequence or a "a ! b ! c" string.
func (c *Chain) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*c = lo.Map(strings.Split(node.Value, "!"), func(s string, _ int) string {
			return strings.TrimSpace(s)
		})
		return nil
	}
	var refs []string
	if err := node.Decode(&refs); err != nil {
		return err
	}
	*c = refs
	return nil
}

func (c Chain) String() string { return strings.Join(c, " ! ") }

// DynamicLink links the first port From announces whose media kind starts
// with Accept to the sink port To.
type DynamicLink struct {
	From   string `yaml:"from" json:"from"`
	To     string `yaml:"to" json:"to"`
	Accept string `yaml:"accept,omitempty" json:"accept,omitempty"`
}

// Parse decodes and validates a description. Unknown fields are rejected.
func Parse(data []byte) (*Description, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var d Description
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Load reads a description from a file.
func Load(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal encodes d as YAML.
func (d *Description) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Element returns the declared element called name, or nil.
func (d *Description) Element(name string) *Element {
	for i := range d.Elements {
		if d.Elements[i].Name == name {
			return &d.Elements[i]
		}
	}
	return nil
}

// Validate checks names and references without creating anything.
func (d *Description) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if len(d.Elements) == 0 {
		return fmt.Errorf("%w: no elements", ErrInvalid)
	}
	for i, e := range d.Elements {
		if e.Kind == "" || e.Name == "" {
			return fmt.Errorf("%w: element %d needs a kind and a name", ErrInvalid, i)
		}
	}
	names := lo.Map(d.Elements, func(e Element, _ int) string { return e.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return fmt.Errorf("%w: %w: %s", ErrInvalid, pipeline.ErrDuplicateName, strings.Join(dup, ", "))
	}
	known := lo.SliceToMap(names, func(n string) (string, bool) { return n, true })
	check := func(ref string) error {
		el, _, _ := strings.Cut(ref, ".")
		if !known[el] {
			return fmt.Errorf("%w %q", ErrUnknownElement, el)
		}
		return nil
	}
	for _, c := range d.Links {
		if len(c) < 2 {
			return fmt.Errorf("%w: link %q needs at least two members", ErrInvalid, c)
		}
		for _, ref := range c {
			if err := check(ref); err != nil {
				return err
			}
		}
	}
	for _, dl := range d.Dynamic {
		if dl.From == "" || dl.To == "" {
			return fmt.Errorf("%w: dynamic link needs from and to", ErrInvalid)
		}
		if strings.Contains(dl.From, ".") {
			return fmt.Errorf("%w: dynamic link from %q must name an element", ErrInvalid, dl.From)
		}
		for _, ref := range []string{dl.From, dl.To} {
			if err := check(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// Basic returns the dynamic-linking description: a uridecodebin feeding a
// converter chain that ends in the default audio sink.
func Basic(uri string) *Description {
	return &Description{
		Name: "test-pipeline",
		Elements: []Element{
			{Kind: "uridecodebin", Name: "source0", Props: map[string]any{"uri": uri}},
			{Kind: "audioconvert", Name: "convert"},
			{Kind: "audioresample", Name: "resample"},
			{Kind: "autoaudiosink", Name: "sink"},
		},
		Links:   []Chain{{"convert", "resample", "sink"}},
		Dynamic: []DynamicLink{{From: "source0", To: "convert.sink", Accept: DefaultAccept}},
	}
}

// Built is a graph made from a description, with its negotiators running.
type Built struct {
	Graph       *pipeline.Graph
	Negotiators []*pipeline.Negotiator

	stops []func()
}

// Close stops the negotiators and tears the graph down.
func (b *Built) Close() error {
	for _, stop := range b.stops {
		stop()
	}
	b.stops = nil
	return b.Graph.Close()
}

// Build creates the elements of d with f, makes the static links and starts
// one negotiator per dynamic link. Any failure, including a static link
// that cannot be made, is returned and nothing keeps running.
func Build(f *pipeline.Factory, d *Description, opts ...pipeline.GraphOption) (*Built, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	g := pipeline.NewGraph(d.Name, opts...)
	if err := populate(f, g, d); err != nil {
		g.Close()
		return nil, err
	}

	b := &Built{Graph: g}
	for _, dl := range d.Dynamic {
		sink, err := resolve(g, dl.To, pipeline.DirSink)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("dynamic link to %s: %w", dl.To, err)
		}
		accept := dl.Accept
		if accept == "" {
			accept = DefaultAccept
		}
		n := pipeline.NewNegotiator(g, sink, accept)
		b.Negotiators = append(b.Negotiators, n)
		b.stops = append(b.stops, n.Watch(context.Background(), g.Element(dl.From)))
	}
	return b, nil
}

// populate creates and configures the elements of d and makes its static
// links.
func populate(f *pipeline.Factory, g *pipeline.Graph, d *Description) error {
	for _, ed := range d.Elements {
		el, err := f.Make(ed.Kind, ed.Name)
		if err != nil {
			return err
		}
		for k, v := range ed.Props {
			if err := el.SetProperty(k, v); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalid, err)
			}
		}
		if err := g.Add(el); err != nil {
			return err
		}
	}
	for _, c := range d.Links {
		for i := 0; i+1 < len(c); i++ {
			if err := link(g, c[i], c[i+1]); err != nil {
				return fmt.Errorf("link %s -> %s: %w", c[i], c[i+1], err)
			}
		}
	}
	return nil
}

// link links two chain members. Two element names link like
// Graph.LinkElements; otherwise each side resolves to a port.
func link(g *pipeline.Graph, from, to string) error {
	if !strings.Contains(from, ".") && !strings.Contains(to, ".") {
		return g.LinkElements(g.Element(from), g.Element(to))
	}
	src, err := resolve(g, from, pipeline.DirSrc)
	if err != nil {
		return err
	}
	sink, err := resolve(g, to, pipeline.DirSink)
	if err != nil {
		return err
	}
	return g.Link(src, sink)
}

// resolve returns the port ref names, or the first unlinked port of the
// given direction when ref is a bare element name.
func resolve(g *pipeline.Graph, ref string, dir pipeline.Direction) (*pipeline.Port, error) {
	if strings.Contains(ref, ".") {
		p, err := g.PortByRef(ref)
		if err != nil {
			return nil, err
		}
		if p.Direction() != dir {
			return nil, fmt.Errorf("%w: %s is a %s port", pipeline.ErrDirection, ref, p.Direction())
		}
		return p, nil
	}
	el := g.Element(ref)
	if el == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownElement, ref)
	}
	p, ok := lo.Find(el.Ports(), func(p *pipeline.Port) bool {
		return p.Direction() == dir && !p.IsLinked()
	})
	if !ok {
		return nil, fmt.Errorf("%w: %s has no free %s port", pipeline.ErrNoSuchPort, ref, dir)
	}
	return p, nil
}
