package document

import (
	"encoding/base64"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"gopkg.in/yaml.v3"
)

// Render converts stored fields back into YAML. Typed values that YAML cannot
// carry natively are written with the same markers Decode accepts, so the
// output can be fed back to create.
func Render(fields map[string]*firestorepb.Value) ([]byte, error) {
	return yaml.Marshal(renderFields(fields))
}

func renderFields(fields map[string]*firestorepb.Value) *yaml.Node {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range keys {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			renderValue(fields[k]))
	}
	return n
}

func renderValue(v *firestorepb.Value) *yaml.Node {
	switch x := v.GetValueType().(type) {
	case *firestorepb.Value_MapValue:
		return renderFields(x.MapValue.GetFields())
	case *firestorepb.Value_ArrayValue:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range x.ArrayValue.GetValues() {
			n.Content = append(n.Content, renderValue(e))
		}
		return n
	case *firestorepb.Value_TimestampValue:
		return marker(MarkerTimestamp, scalarNode(x.TimestampValue.AsTime().UTC().Format(time.RFC3339Nano)))
	case *firestorepb.Value_BytesValue:
		return marker(MarkerBytes, scalarNode(base64.StdEncoding.EncodeToString(x.BytesValue)))
	case *firestorepb.Value_ReferenceValue:
		return marker(MarkerReference, scalarNode(x.ReferenceValue))
	case *firestorepb.Value_GeoPointValue:
		gp := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		_ = gp.Encode(map[string]float64{
			"latitude":  x.GeoPointValue.GetLatitude(),
			"longitude": x.GeoPointValue.GetLongitude(),
		})
		return marker(MarkerGeoPoint, gp)
	case *firestorepb.Value_DoubleValue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatDouble(x.DoubleValue)}
	default:
		n := &yaml.Node{}
		_ = n.Encode(scalarOf(v))
		return n
	}
}

func scalarOf(v *firestorepb.Value) any {
	switch x := v.GetValueType().(type) {
	case *firestorepb.Value_BooleanValue:
		return x.BooleanValue
	case *firestorepb.Value_IntegerValue:
		return x.IntegerValue
	case *firestorepb.Value_StringValue:
		return x.StringValue
	default:
		return nil
	}
}

// formatDouble keeps a decimal point on integral values so they decode back
// as doubles.
func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func marker(key string, val *yaml.Node) *yaml.Node {
	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Tag:     "!!map",
		Content: []*yaml.Node{scalarNode(key), val},
	}
}
