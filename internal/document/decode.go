// Package document decodes caller-supplied documents into types.Mapping.
//
// YAML and JSON are both read through the YAML node tree so mapping order is
// kept exactly as written; transform collection order depends on it.
package document

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/solatis/firewrite/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument indicates input that does not decode to a document.
var ErrInvalidDocument = errors.New("invalid document")

// Marker keys. A single-key mapping whose key is a marker decodes to a
// sentinel or a typed scalar instead of a nested map.
const (
	MarkerDelete          = "$delete"
	MarkerServerTimestamp = "$serverTimestamp"
	MarkerIncrement       = "$increment"
	MarkerMaximum         = "$maximum"
	MarkerMinimum         = "$minimum"
	MarkerArrayUnion      = "$arrayUnion"
	MarkerArrayRemove     = "$arrayRemove"
	MarkerTimestamp       = "$timestamp"
	MarkerBytes           = "$bytes"
	MarkerReference       = "$reference"
	MarkerGeoPoint        = "$geoPoint"
)

// Decode parses a YAML or JSON document. Empty input decodes to an empty
// document.
func Decode(data []byte) (types.Mapping, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	node := &root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return types.Doc(), nil
		}
		node = node.Content[0]
	}
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null") {
		return types.Doc(), nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping, got %s", ErrInvalidDocument, kindName(node.Kind))
	}

	d := &decoder{expanding: make(map[*yaml.Node]bool)}
	v, err := d.decodeMapping(node)
	if err != nil {
		return nil, err
	}
	return v.Fields, nil
}

// maxAliasExpansion caps the nodes decoded through aliases in one document.
const maxAliasExpansion = 10000

// decoder tracks alias expansion. yaml.v3 registers an anchor before its
// children, so an alias may point back into the node being expanded.
type decoder struct {
	expanding map[*yaml.Node]bool
	depth     int // aliases currently being expanded
	expanded  int
}

func (d *decoder) decodeAlias(n *yaml.Node) (types.Value, error) {
	if n.Alias == nil || d.expanding[n.Alias] {
		return types.Value{}, fmt.Errorf("%w: alias cycle at line %d", ErrInvalidDocument, n.Line)
	}
	d.expanding[n.Alias] = true
	d.depth++
	defer func() {
		delete(d.expanding, n.Alias)
		d.depth--
	}()
	return d.decodeNode(n.Alias)
}

func (d *decoder) decodeNode(n *yaml.Node) (types.Value, error) {
	if d.depth > 0 {
		d.expanded++
		if d.expanded > maxAliasExpansion {
			return types.Value{}, fmt.Errorf("%w: aliases expand to more than %d nodes at line %d", ErrInvalidDocument, maxAliasExpansion, n.Line)
		}
	}

	switch n.Kind {
	case yaml.AliasNode:
		return d.decodeAlias(n)

	case yaml.ScalarNode:
		s, err := decodeScalar(n)
		if err != nil {
			return types.Value{}, err
		}
		return types.Scalar(s), nil

	case yaml.SequenceNode:
		items := make([]types.Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := d.decodeNode(c)
			if err != nil {
				return types.Value{}, err
			}
			items = append(items, item)
		}
		return types.Array(items...), nil

	case yaml.MappingNode:
		if len(n.Content) == 2 && n.Content[0].Kind == yaml.ScalarNode {
			if v, ok, err := d.decodeMarker(n.Content[0].Value, n.Content[1]); ok || err != nil {
				return v, err
			}
		}
		return d.decodeMapping(n)

	default:
		return types.Value{}, fmt.Errorf("%w: unexpected %s at line %d", ErrInvalidDocument, kindName(n.Kind), n.Line)
	}
}

func (d *decoder) decodeMapping(n *yaml.Node) (types.Value, error) {
	fields := make(types.Mapping, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return types.Value{}, fmt.Errorf("%w: non-scalar key at line %d", ErrInvalidDocument, k.Line)
		}
		if k.Value == "<<" && k.ShortTag() == "!!merge" {
			return types.Value{}, fmt.Errorf("%w: merge keys are not supported (line %d)", ErrInvalidDocument, k.Line)
		}
		if seen[k.Value] {
			return types.Value{}, fmt.Errorf("%w: duplicate key %q at line %d", ErrInvalidDocument, k.Value, k.Line)
		}
		seen[k.Value] = true

		val, err := d.decodeNode(v)
		if err != nil {
			return types.Value{}, err
		}
		fields = append(fields, types.F(k.Value, val))
	}
	return types.Map(fields...), nil
}

func decodeScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil

	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return b, nil

	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return i, nil
		}
		var u uint64
		if err := n.Decode(&u); err == nil && u <= math.MaxInt64 {
			return int64(u), nil
		}
		return nil, fmt.Errorf("%w: integer %q out of range at line %d", ErrInvalidDocument, n.Value, n.Line)

	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return f, nil

	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return nil, fmt.Errorf("%w: binary at line %d: %v", ErrInvalidDocument, n.Line, err)
		}
		return b, nil

	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return t, nil

	default:
		return n.Value, nil
	}
}

// decodeMarker reports ok=false when key is not a marker, leaving the
// mapping to be decoded as plain data.
func (d *decoder) decodeMarker(key string, val *yaml.Node) (types.Value, bool, error) {
	switch key {
	case MarkerDelete:
		return types.Delete(), true, nil

	case MarkerServerTimestamp:
		return types.ServerTimestamp(), true, nil

	case MarkerIncrement, MarkerMaximum, MarkerMinimum:
		operand, err := decodeOperand(key, val)
		if err != nil {
			return types.Value{}, true, err
		}
		switch key {
		case MarkerIncrement:
			return types.Increment(operand), true, nil
		case MarkerMaximum:
			return types.Maximum(operand), true, nil
		default:
			return types.Minimum(operand), true, nil
		}

	case MarkerArrayUnion, MarkerArrayRemove:
		elems, err := d.decodeElements(key, val)
		if err != nil {
			return types.Value{}, true, err
		}
		if key == MarkerArrayUnion {
			return types.ArrayUnion(elems...), true, nil
		}
		return types.ArrayRemove(elems...), true, nil

	case MarkerTimestamp:
		t, err := time.Parse(time.RFC3339Nano, val.Value)
		if err != nil || val.Kind != yaml.ScalarNode {
			return types.Value{}, true, fmt.Errorf("%w: %s expects an RFC 3339 string at line %d", ErrInvalidDocument, key, val.Line)
		}
		return types.Scalar(t), true, nil

	case MarkerBytes:
		b, err := base64.StdEncoding.DecodeString(val.Value)
		if err != nil || val.Kind != yaml.ScalarNode {
			return types.Value{}, true, fmt.Errorf("%w: %s expects base64 at line %d", ErrInvalidDocument, key, val.Line)
		}
		return types.Scalar(b), true, nil

	case MarkerReference:
		if val.Kind != yaml.ScalarNode || val.Value == "" {
			return types.Value{}, true, fmt.Errorf("%w: %s expects a document name at line %d", ErrInvalidDocument, key, val.Line)
		}
		return types.Scalar(types.Reference(val.Value)), true, nil

	case MarkerGeoPoint:
		var gp struct {
			Latitude  *float64 `yaml:"latitude"`
			Longitude *float64 `yaml:"longitude"`
		}
		if err := val.Decode(&gp); err != nil || gp.Latitude == nil || gp.Longitude == nil {
			return types.Value{}, true, fmt.Errorf("%w: %s expects {latitude, longitude} at line %d", ErrInvalidDocument, key, val.Line)
		}
		return types.Scalar(types.GeoPoint{Latitude: *gp.Latitude, Longitude: *gp.Longitude}), true, nil

	default:
		return types.Value{}, false, nil
	}
}

func decodeOperand(key string, val *yaml.Node) (any, error) {
	if val.Kind == yaml.ScalarNode {
		switch val.ShortTag() {
		case "!!int", "!!float":
			return decodeScalar(val)
		}
	}
	return nil, fmt.Errorf("%w: %s at line %d: %w", ErrInvalidDocument, key, val.Line, types.ErrNonNumericOperand)
}

func (d *decoder) decodeElements(key string, val *yaml.Node) ([]types.Value, error) {
	if val.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: %s expects a sequence at line %d", ErrInvalidDocument, key, val.Line)
	}
	v, err := d.decodeNode(val)
	if err != nil {
		return nil, err
	}
	return v.Items, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "empty node"
	}
}
