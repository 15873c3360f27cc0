package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Classifier maps a scaled feature vector to a class index.
type Classifier interface {
	Predict(values []float64) (int, error)
}

// TreeNode is one node of a flattened decision tree. The root is at index 0
// and values <= Threshold go left.
type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
}

// DecisionTree is a single fitted tree.
type DecisionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (dt DecisionTree) Predict(values []float64) (int, error) {
	if len(dt.Nodes) == 0 {
		return 0, errors.New("tree has no nodes")
	}
	idx := 0
	// a well formed tree reaches a leaf in fewer steps than it has nodes
	for steps := 0; steps <= len(dt.Nodes); steps++ {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.ClassLabel, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(values) {
			return 0, fmt.Errorf("feature index %d out of range for %d features", node.FeatureIdx, len(values))
		}
		if values[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return 0, fmt.Errorf("invalid tree state: child %d", idx)
		}
	}
	return 0, errors.New("invalid tree state: cycle")
}

// RandomForest votes over its trees. When Classes is set, a tree's leaf
// label indexes into it.
type RandomForest struct {
	NFeatures int
	Classes   []int
	Trees     []DecisionTree
}

type forestArtifact struct {
	NFeatures int          `json:"n_features"`
	Classes   []int        `json:"classes"`
	Trees     [][]TreeNode `json:"trees"`
	Nodes     []TreeNode   `json:"nodes"`
}

func (rf *RandomForest) Predict(values []float64) (int, error) {
	if len(rf.Trees) == 0 {
		return 0, errors.New("model has no trees")
	}
	if rf.NFeatures > 0 && len(values) != rf.NFeatures {
		return 0, fmt.Errorf("model expects %d features, got %d", rf.NFeatures, len(values))
	}
	votes := make(map[int]int)
	for i, tree := range rf.Trees {
		label, err := tree.Predict(values)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		votes[label]++
	}

	best, bestCount := 0, -1
	for label, count := range votes {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}

	if len(rf.Classes) == 0 {
		return best, nil
	}
	if best < 0 || best >= len(rf.Classes) {
		return 0, fmt.Errorf("leaf label %d outside %d classes", best, len(rf.Classes))
	}
	return rf.Classes[best], nil
}

func (rf *RandomForest) validate() error {
	if len(rf.Trees) == 0 {
		return errors.New("no trees")
	}
	if rf.NFeatures != 0 && rf.NFeatures != NumFeatures {
		return fmt.Errorf("fitted on %d features, want %d", rf.NFeatures, NumFeatures)
	}
	for t, tree := range rf.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", t)
		}
		for n, node := range tree.Nodes {
			if node.IsLeaf {
				continue
			}
			if node.FeatureIdx < 0 || node.FeatureIdx >= NumFeatures {
				return fmt.Errorf("tree %d node %d: feature index %d out of range", t, n, node.FeatureIdx)
			}
			if node.LeftChild < 0 || node.LeftChild >= len(tree.Nodes) ||
				node.RightChild < 0 || node.RightChild >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: child out of range", t, n)
			}
		}
	}
	return nil
}

// LoadRandomForest reads a JSON model artifact. A bare single tree
// ({"nodes": [...]}) is accepted as a forest of one.
func LoadRandomForest(path string) (*RandomForest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art forestArtifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	rf := &RandomForest{NFeatures: art.NFeatures, Classes: art.Classes}
	for _, nodes := range art.Trees {
		rf.Trees = append(rf.Trees, DecisionTree{Nodes: nodes})
	}
	if len(art.Nodes) > 0 {
		rf.Trees = append(rf.Trees, DecisionTree{Nodes: art.Nodes})
	}
	if err := rf.validate(); err != nil {
		return nil, err
	}
	return rf, nil
}
