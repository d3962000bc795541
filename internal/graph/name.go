package graph

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// ReadLayerPrefix is the stable naming convention identifying the layers
// that perform raw reading. Consumers such as the column optimizer locate
// read layers among arbitrary downstream layers by this prefix, so it is
// part of the graph contract, not a cosmetic label.
const ReadLayerPrefix = "from-json-"

// Token derives a short deterministic token from the given parts, used to
// make layer names unique while keeping them reproducible across runs over
// the same inputs.
func Token(parts ...string) string {
	h := xxh3.HashString(strings.Join(parts, "\x00"))
	return fmt.Sprintf("%016x", h)[:12]
}

// ReadLayerName builds the conventional name of a read layer.
func ReadLayerName(token string) string {
	return ReadLayerPrefix + token
}

// LayerName builds the conventional "<label>-<token>" name for an operation
// layer.
func LayerName(label, token string) string {
	return label + "-" + token
}

// IsReadLayer reports whether name follows the read layer convention.
func IsReadLayer(name string) bool {
	return strings.HasPrefix(name, ReadLayerPrefix)
}
