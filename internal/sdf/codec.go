package sdf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"

	"github.com/OCAP2/collision-benchmark/pkg/core"
	"github.com/cespare/xxhash/v2"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Format is the text encoding of a document.
type Format int

const (
	FormatXML Format = iota
	FormatYAML
)

// DetectFormat returns FormatXML for input starting with '<' and FormatYAML otherwise.
func DetectFormat(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return FormatXML
	}
	return FormatYAML
}

// Parse decodes a document in either encoding.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty scene description", core.ErrLoadFailed)
	}

	doc := &Document{}
	switch DetectFormat(data) {
	case FormatXML:
		if err := xml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("%w: parse xml: %v", core.ErrLoadFailed, err)
		}
	default:
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", core.ErrLoadFailed, err)
		}
	}

	if doc.World == nil && doc.Model == nil {
		return nil, fmt.Errorf("%w: document has neither world nor model", core.ErrLoadFailed)
	}
	return doc, nil
}

// Marshal encodes a document.
func Marshal(doc *Document, format Format) ([]byte, error) {
	if doc.Version == "" {
		doc.Version = Version
	}
	switch format {
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		out, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append([]byte(xml.Header), out...), nil
	}
}

// WorldDocument wraps a world in a document.
func WorldDocument(w *World) *Document {
	return &Document{Version: Version, World: w}
}

// ModelDocument wraps a model in a document.
func ModelDocument(m *Model) *Document {
	return &Document{Version: Version, Model: m}
}

// ModelString returns the XML text of a standalone model.
func ModelString(m *Model) (string, error) {
	out, err := Marshal(ModelDocument(m), FormatXML)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// RequireWorld returns the world element or ErrLoadFailed.
func (d *Document) RequireWorld() (*World, error) {
	if d.World == nil {
		return nil, fmt.Errorf("%w: no <world> element", core.ErrLoadFailed)
	}
	return d.World, nil
}

// RequireModel returns the model element or ErrLoadFailed.
func (d *Document) RequireModel() (*Model, error) {
	if d.Model == nil {
		return nil, fmt.Errorf("%w: no <model> element", core.ErrLoadFailed)
	}
	return d.Model, nil
}

// Fingerprint hashes the canonical XML encoding of a document.
// Documents that encode identically produce the same fingerprint.
func Fingerprint(doc *Document) (uint64, error) {
	out, err := Marshal(doc, FormatXML)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(out), nil
}

// quatToEuler returns the ZYX angles (yaw, pitch, roll) of q.
func quatToEuler(q mgl64.Quat) (yaw, pitch, roll float64) {
	w, x, y, z := q.W, q.V.X(), q.V.Y(), q.V.Z()

	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))

	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch = math.Asin(sinp)

	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return yaw, pitch, roll
}
