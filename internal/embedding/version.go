package embedding

import (
	"fmt"
	"sort"
	"sync"
)

// Order tells whether a larger comparator value means a closer match.
type Order int

const (
	HigherIsBetter Order = iota
	LowerIsBetter
)

func (o Order) String() string {
	if o == LowerIsBetter {
		return "lower_is_better"
	}
	return "higher_is_better"
}

// Metric names the comparator a version scores with.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
)

// Known version tags.
const (
	InsightFaceBuffaloL = "insightface-buffalo_l-v1"
	DlibResNet          = "dlib-resnet-v1"
	// LegacyUnversioned marks faces stored before version tagging existed.
	// No extractor produces it, so those faces never take part in matching.
	LegacyUnversioned = "legacy-unversioned"
)

// Version describes one extractor's vector space.
// Embeddings from different versions are never compared.
type Version struct {
	Tag              string
	Dim              int
	Metric           Metric
	Order            Order
	DefaultThreshold float64
}

// Prepare converts a probe into the form Score expects. For cosine spaces
// this is the unit vector, computed once per probe.
func (v Version) Prepare(probe []float32) []float32 {
	if v.Metric == Cosine {
		return Normalize(probe)
	}
	out := make([]float32, len(probe))
	copy(out, probe)
	return out
}

// Score compares a prepared probe with a stored embedding.
func (v Version) Score(prepared, candidate []float32) float64 {
	if v.Metric == Euclidean {
		return EuclideanDistance(prepared, candidate)
	}
	return Dot(prepared, Normalize(candidate))
}

// Better reports whether score a is strictly better than score b.
func (v Version) Better(a, b float64) bool {
	if v.Order == LowerIsBetter {
		return a < b
	}
	return a > b
}

// Accepts reports whether score passes threshold: >= for similarities,
// <= for distances.
func (v Version) Accepts(score, threshold float64) bool {
	if v.Order == LowerIsBetter {
		return score <= threshold
	}
	return score >= threshold
}

// Compatible reports whether an embedding tagged tag with dim components
// lives in this version's space.
func (v Version) Compatible(tag string, dim int) bool {
	if tag != v.Tag {
		return false
	}
	return v.Dim == 0 || dim == v.Dim
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Version{
		InsightFaceBuffaloL: {
			Tag:              InsightFaceBuffaloL,
			Dim:              512,
			Metric:           Cosine,
			Order:            HigherIsBetter,
			DefaultThreshold: 0.70,
		},
		DlibResNet: {
			Tag:              DlibResNet,
			Dim:              128,
			Metric:           Euclidean,
			Order:            LowerIsBetter,
			DefaultThreshold: 0.6,
		},
	}
)

// Register adds or replaces a version in the registry.
func Register(v Version) error {
	if v.Tag == "" {
		return fmt.Errorf("register version: empty tag")
	}
	if v.Metric != Cosine && v.Metric != Euclidean {
		return fmt.Errorf("register version %s: unknown metric %q", v.Tag, v.Metric)
	}
	registryMu.Lock()
	registry[v.Tag] = v
	registryMu.Unlock()
	return nil
}

// Lookup returns the registered version for tag.
func Lookup(tag string) (Version, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, ok := registry[tag]
	return v, ok
}

// MustLookup is Lookup for built-in tags; it panics on unknown ones.
func MustLookup(tag string) Version {
	v, ok := Lookup(tag)
	if !ok {
		panic("embedding: unknown version " + tag)
	}
	return v
}

// Tags lists registered version tags in sorted order.
func Tags() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for t := range registry {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
