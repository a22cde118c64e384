package model_test

import (
	"fmt"

	"github.com/ezoic/cardioml/core/model"
)

// ExampleBaseEstimator demonstrates BaseEstimator state management
func ExampleBaseEstimator() {
	estimator := &model.BaseEstimator{}

	fmt.Printf("Initially fitted: %t\n", estimator.IsFitted())

	estimator.SetFitted()
	fmt.Printf("After SetFitted: %t\n", estimator.IsFitted())

	estimator.Reset()
	fmt.Printf("After Reset: %t\n", estimator.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true
	// After Reset: false
}

// ExampleStateManager shows the guard used at the top of Predict
func ExampleStateManager() {
	state := model.NewStateManager()

	if err := state.RequireFitted("SVC", "Predict"); err != nil {
		fmt.Println(err)
	}

	state.SetDimensions(13, 222)
	state.SetFitted()
	if err := state.CheckFeatures("SVC.Predict", 12); err != nil {
		fmt.Println(err)
	}

	// Output: cardioml: SVC: this instance is not fitted yet, call Fit before Predict
	// cardioml: SVC.Predict: dimension mismatch on columns: expected 13, got 12
}
