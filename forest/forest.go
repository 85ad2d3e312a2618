/*
Package forest loads the trained random forest artifact used as the fall
classifier's scorer.

The artifact is a JSON file produced offline by the training pipeline.  It
holds the decision threshold chosen during evaluation plus a list of trees,
each tree a flat node array.  Interior nodes compare one feature against a
split threshold and branch left (value below or equal) or right, leaf nodes
carry the positive class fraction of the training samples that reached them.
Scoring averages the leaf values over all trees.
*/
package forest

import (
	"encoding/json"
	"fmt"
	"os"
)

// leaf marks a node with no children
const leaf = -1

// Node is a single decision tree node.  Left and Right are indices into the
// tree's node array, or -1 for a leaf.
type Node struct {
	// Feature is the feature vector index compared at this node
	Feature int `json:"feature"`
	// Threshold is the split value
	Threshold float64 `json:"threshold"`
	// Left is the child index taken when the feature is at or below the
	// threshold
	Left int `json:"left"`
	// Right is the child index taken otherwise
	Right int `json:"right"`
	// Value is the positive class fraction at a leaf, unused for interior
	// nodes
	Value float64 `json:"value"`
}

// Tree is one decision tree as a flat node array rooted at index 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a trained random forest scorer
type Forest struct {
	// FeatureCount is the expected feature vector length
	FeatureCount int `json:"feature_count"`
	// Threshold is the decision threshold chosen during training
	Threshold float64 `json:"threshold"`
	// Trees are the ensemble members
	Trees []Tree `json:"trees"`
}

// Load reads and validates a forest artifact from the given file.  A load
// failure is fatal to the caller, the detection engine cannot run without
// its classifier.
func Load(file string) (*Forest, error) {

	data, err := os.ReadFile(file)

	if err != nil {
		return nil, fmt.Errorf("error reading model artifact: %w", err)
	}

	var f Forest

	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing model artifact: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact %s: %w", file, err)
	}

	return &f, nil
}

// validate checks the artifact is structurally sound so scoring can never
// index out of range
func (f *Forest) validate() error {

	if f.FeatureCount <= 0 {
		return fmt.Errorf("feature_count must be positive, got %d", f.FeatureCount)
	}

	if f.Threshold < 0 || f.Threshold > 1 {
		return fmt.Errorf("threshold %f outside [0,1]", f.Threshold)
	}

	if len(f.Trees) == 0 {
		return fmt.Errorf("no trees")
	}

	for ti, tree := range f.Trees {

		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}

		for ni, n := range tree.Nodes {

			if n.Left == leaf && n.Right == leaf {
				if n.Value < 0 || n.Value > 1 {
					return fmt.Errorf("tree %d node %d: leaf value %f outside [0,1]",
						ti, ni, n.Value)
				}
				continue
			}

			if n.Left <= ni || n.Left >= len(tree.Nodes) ||
				n.Right <= ni || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: child index out of range",
					ti, ni)
			}

			if n.Feature < 0 || n.Feature >= f.FeatureCount {
				return fmt.Errorf("tree %d node %d: feature index %d out of range",
					ti, ni, n.Feature)
			}
		}
	}

	return nil
}

// Score runs the feature vector through every tree and returns the mean
// leaf value as the positive class probability
func (f *Forest) Score(vector []float64) (float64, error) {

	if len(vector) != f.FeatureCount {
		return 0, fmt.Errorf("feature vector length %d, model expects %d",
			len(vector), f.FeatureCount)
	}

	sum := 0.0

	for i := range f.Trees {
		sum += f.Trees[i].score(vector)
	}

	return sum / float64(len(f.Trees)), nil
}

// score walks a single tree to its leaf
func (t *Tree) score(vector []float64) float64 {

	idx := 0

	for {
		n := t.Nodes[idx]

		if n.Left == leaf && n.Right == leaf {
			return n.Value
		}

		if vector[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}
