// Package tree provides a CART decision tree classifier with weighted
// impurity, per-node feature subsampling and impurity-based feature
// importances.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/cardioml/core/model"
	"github.com/ezoic/cardioml/pkg/errors"
	"github.com/ezoic/cardioml/pkg/log"
	"github.com/ezoic/cardioml/preprocessing"
)

const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"

	MaxFeaturesAll  = ""
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

var globalProvider = log.DefaultProvider()

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf       bool      // Whether this is a leaf node
	Feature      int       // Feature index for split (internal nodes)
	Threshold    float64   // Threshold value for split (internal nodes)
	Left         *TreeNode // Left child (values <= threshold)
	Right        *TreeNode // Right child (values > threshold)
	ClassWeights []float64 // Weighted class totals at this node
	PredictClass int       // Index into classes of the majority class
	Impurity     float64   // Node impurity
	NSamples     int       // Number of samples at this node
	Depth        int       // Depth of this node in the tree
}

// DecisionTreeClassifier implements a decision tree for classification
type DecisionTreeClassifier struct {
	state  *model.StateManager
	logger log.Logger

	// Hyperparameters
	criterion           string  // "gini" or "entropy"
	maxDepth            int     // 0 = unlimited
	minSamplesSplit     int     // Minimum samples to split a node
	minSamplesLeaf      int     // Minimum samples in a leaf
	maxFeatures         string  // "", "sqrt", "log2" or an integer
	minImpurityDecrease float64 // Minimum weighted impurity decrease for split
	classWeight         string  // "" or "balanced"
	randomState         int64   // Random seed, negative means time-seeded

	// Tree structure
	tree_      *TreeNode
	nClasses_  int
	nFeatures_ int
	classes_   []int

	featureImportances_ []float64
}

// DecisionTreeClassifierOption is a functional option
type DecisionTreeClassifierOption func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a new decision tree classifier
func NewDecisionTreeClassifier(opts ...DecisionTreeClassifierOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     MaxFeaturesAll,
		randomState:     -1,
	}

	for _, opt := range opts {
		opt(dt)
	}

	dt.logger = globalProvider.GetLoggerWithName("DecisionTreeClassifier")

	return dt
}

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets minimum samples to split
func WithMinSamplesSplit(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMinImpurityDecrease sets the minimum impurity decrease for a split
func WithMinImpurityDecrease(v float64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.minImpurityDecrease = v
	}
}

// WithMaxFeatures sets the number of features examined per split:
// "" (all), "sqrt", "log2" or a decimal integer.
func WithMaxFeatures(maxFeatures string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = maxFeatures
	}
}

// WithDTClassWeight sets class weighting ("" or "balanced")
func WithDTClassWeight(mode string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.classWeight = mode
	}
}

// WithDTRandomState sets the random seed
func WithDTRandomState(seed int64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

// resolveMaxFeatures returns how many features to examine per node.
func (dt *DecisionTreeClassifier) resolveMaxFeatures(nFeatures int) (int, error) {
	var k int
	switch dt.maxFeatures {
	case MaxFeaturesAll:
		k = nFeatures
	case MaxFeaturesSqrt:
		k = int(math.Sqrt(float64(nFeatures)))
	case MaxFeaturesLog2:
		k = int(math.Log2(float64(nFeatures)))
	default:
		n, err := strconv.Atoi(dt.maxFeatures)
		if err != nil || n <= 0 {
			return 0, errors.NewValidationError("max_features", "must be \"\", sqrt, log2 or a positive integer", dt.maxFeatures)
		}
		k = n
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k, nil
}

// Fit trains the decision tree
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWithWeights(X, y, nil)
}

// FitWithWeights trains the tree with per-row sample weights. Rows with a
// zero weight are excluded from the tree but their labels still count
// towards Classes. A nil slice means unit weights.
func (dt *DecisionTreeClassifier) FitWithWeights(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")
	labels, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	maxF, err := dt.resolveMaxFeatures(nFeatures)
	if err != nil {
		return err
	}

	dt.classes_ = model.UniqueLabels(labels)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = make([]float64, nFeatures)

	cw, err := preprocessing.ComputeClassWeight(dt.classWeight, dt.classes_, labels)
	if err != nil {
		return err
	}
	rowWeight := preprocessing.SampleWeights(cw, labels)

	classIndex := make(map[int]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		classIndex[c] = i
	}

	b := &builder{
		dt:   dt,
		maxF: maxF,
		y:    make([]int, nSamples),
		w:    make([]float64, nSamples),
	}
	if d, ok := X.(*mat.Dense); ok {
		b.X = d
	} else {
		b.X = mat.DenseCopyOf(X)
	}
	seed := dt.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	b.rng = rand.New(rand.NewSource(seed))

	indices := make([]int, 0, nSamples)
	for i, l := range labels {
		b.y[i] = classIndex[l]
		w := 1.0
		if rowWeight != nil {
			w = rowWeight[i]
		}
		if sampleWeight != nil {
			w *= sampleWeight[i]
		}
		if w < 0 {
			return errors.NewValidationError("sample_weight", "must be non-negative", w)
		}
		b.w[i] = w
		if w > 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "all sample weights are zero")
	}

	dt.tree_ = b.build(indices, 0)
	dt.normalizeFeatureImportances()

	dt.state.SetDimensions(nFeatures, nSamples)
	dt.state.SetFitted()
	dt.logger.Debug("Tree built",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(indices),
		log.FeaturesKey, nFeatures,
		"depth", dt.GetDepth(),
		"leaves", dt.GetNLeaves(),
	)
	return nil
}

// builder carries the per-fit state of the recursive construction.
type builder struct {
	dt   *DecisionTreeClassifier
	X    *mat.Dense
	y    []int
	w    []float64
	rng  *rand.Rand
	maxF int
}

func (b *builder) build(indices []int, depth int) *TreeNode {
	dt := b.dt
	classWeights := make([]float64, dt.nClasses_)
	for _, i := range indices {
		classWeights[b.y[i]] += b.w[i]
	}

	predictClass := 0
	for k, v := range classWeights {
		if v > classWeights[predictClass] {
			predictClass = k
		}
	}

	impurity := dt.calculateImpurity(classWeights)
	node := &TreeNode{
		ClassWeights: classWeights,
		PredictClass: predictClass,
		Impurity:     impurity,
		NSamples:     len(indices),
		Depth:        depth,
	}

	if dt.shouldStop(len(indices), impurity, depth) {
		node.IsLeaf = true
		return node
	}

	feature, threshold, decrease := b.findBestSplit(indices, classWeights, impurity)
	if feature == -1 || decrease < dt.minImpurityDecrease {
		node.IsLeaf = true
		return node
	}

	var left, right []int
	for _, i := range indices {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	dt.featureImportances_[feature] += decrease

	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

// shouldStop checks stopping criteria
func (dt *DecisionTreeClassifier) shouldStop(nSamples int, impurity float64, depth int) bool {
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return true
	}
	if nSamples < dt.minSamplesSplit || nSamples < 2*dt.minSamplesLeaf {
		return true
	}
	return impurity <= 0
}

// calculateImpurity calculates node impurity using Gini or Entropy
func (dt *DecisionTreeClassifier) calculateImpurity(classWeights []float64) float64 {
	total := 0.0
	for _, v := range classWeights {
		total += v
	}
	if total <= 0 {
		return 0.0
	}

	impurity := 0.0
	switch dt.criterion {
	case CriterionEntropy:
		// -sum(p_i * log2(p_i))
		for _, v := range classWeights {
			if v > 0 {
				p := v / total
				impurity -= p * math.Log2(p)
			}
		}
	default:
		// 1 - sum(p_i^2)
		sumSquared := 0.0
		for _, v := range classWeights {
			p := v / total
			sumSquared += p * p
		}
		impurity = 1.0 - sumSquared
	}
	return impurity
}

// findBestSplit scans candidate features in random order. At least maxF
// non-constant features are examined; the scan continues past maxF only
// while no valid split has been found. The returned decrease is weighted by
// the node's share of the total weight.
func (b *builder) findBestSplit(indices []int, parent []float64, parentImpurity float64) (int, float64, float64) {
	dt := b.dt
	nFeatures := dt.nFeatures_
	nNode := len(indices)

	parentW := 0.0
	for _, v := range parent {
		parentW += v
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestDecrease := math.Inf(-1)

	sorted := make([]int, nNode)
	left := make([]float64, dt.nClasses_)
	right := make([]float64, dt.nClasses_)

	visited := 0
	for _, feature := range b.rng.Perm(nFeatures) {
		if visited >= b.maxF && bestFeature != -1 {
			break
		}

		copy(sorted, indices)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.X.At(sorted[i], feature) < b.X.At(sorted[j], feature)
		})
		if b.X.At(sorted[0], feature) == b.X.At(sorted[nNode-1], feature) {
			continue
		}
		visited++

		for k := range left {
			left[k] = 0
			right[k] = parent[k]
		}
		leftW := 0.0
		for pos := 0; pos < nNode-1; pos++ {
			i := sorted[pos]
			left[b.y[i]] += b.w[i]
			right[b.y[i]] -= b.w[i]
			leftW += b.w[i]

			v1 := b.X.At(i, feature)
			v2 := b.X.At(sorted[pos+1], feature)
			if v1 == v2 {
				continue
			}
			nLeft := pos + 1
			if nLeft < dt.minSamplesLeaf || nNode-nLeft < dt.minSamplesLeaf {
				continue
			}
			rightW := parentW - leftW
			if leftW <= 0 || rightW <= 0 {
				continue
			}

			weighted := (leftW*dt.calculateImpurity(left) + rightW*dt.calculateImpurity(right)) / parentW
			decrease := parentW * (parentImpurity - weighted)
			if decrease > bestDecrease {
				bestDecrease = decrease
				bestFeature = feature
				bestThreshold = (v1 + v2) / 2.0
			}
		}
	}

	if bestFeature == -1 {
		return -1, 0, 0
	}
	return bestFeature, bestThreshold, bestDecrease
}

// normalizeFeatureImportances normalizes feature importance scores
func (dt *DecisionTreeClassifier) normalizeFeatureImportances() {
	sum := 0.0
	for _, imp := range dt.featureImportances_ {
		sum += imp
	}

	if sum > 0 {
		for i := range dt.featureImportances_ {
			dt.featureImportances_[i] /= sum
		}
	}
}

func (dt *DecisionTreeClassifier) leaf(X mat.Matrix, i int) *TreeNode {
	node := dt.tree_
	for !node.IsLeaf {
		if X.At(i, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (dt *DecisionTreeClassifier) checkPredict(op string, X mat.Matrix) error {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", op); err != nil {
		return err
	}
	_, nFeatures := X.Dims()
	return dt.state.CheckFeatures("DecisionTreeClassifier."+op, nFeatures)
}

// Predict makes predictions for input data
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Predict")
	if err := dt.checkPredict("Predict", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		predictions.Set(i, 0, float64(dt.classes_[dt.leaf(X, i).PredictClass]))
	}
	return predictions, nil
}

// PredictProba returns the weighted class distribution of the leaf each row
// falls into, with columns ordered as Classes.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.PredictProba")
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, dt.nClasses_, nil)
	for i := 0; i < nSamples; i++ {
		node := dt.leaf(X, i)
		total := 0.0
		for _, v := range node.ClassWeights {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range node.ClassWeights {
			probas.Set(i, j, v/total)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return model.AccuracyScore("DecisionTreeClassifier.Score", predictions, y)
}

// Classes returns the sorted class labels seen in Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetParams returns the model hyperparameters
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.criterion,
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"max_features":          dt.maxFeatures,
		"min_impurity_decrease": dt.minImpurityDecrease,
		"class_weight":          dt.classWeight,
		"random_state":          dt.randomState,
	}
}

// SetParams sets the model hyperparameters
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(string)
		case "min_impurity_decrease":
			dt.minImpurityDecrease, ok = value.(float64)
		case "class_weight":
			dt.classWeight, ok = value.(string)
		case "random_state":
			dt.randomState, ok = value.(int64)
		default:
			return errors.NewValidationError("param", "unknown parameter", key)
		}
		if !ok {
			return errors.NewValidationError(key, fmt.Sprintf("unexpected type %T", value), value)
		}
	}
	dt.state.Reset()
	return nil
}

// FeatureImportances returns normalized impurity-decrease importances.
func (dt *DecisionTreeClassifier) FeatureImportances() []float64 {
	if dt.featureImportances_ == nil {
		return nil
	}
	importances := make([]float64, len(dt.featureImportances_))
	copy(importances, dt.featureImportances_)
	return importances
}

// GetDepth returns the depth of the tree
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree_ == nil {
		return 0
	}
	return getMaxDepth(dt.tree_)
}

func getMaxDepth(node *TreeNode) int {
	if node.IsLeaf {
		return node.Depth
	}
	return max(getMaxDepth(node.Left), getMaxDepth(node.Right))
}

// GetNLeaves returns the number of leaf nodes
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree_ == nil {
		return 0
	}
	return countLeaves(dt.tree_)
}

func countLeaves(node *TreeNode) int {
	if node.IsLeaf {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}
