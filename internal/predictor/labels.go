package predictor

import "fmt"

var conditionLabels = map[int]string{
	0: "Diabetes",
	1: "Healthy",
	2: "Asthma",
	3: "Obesity",
	4: "Hypertension",
	5: "Arthritis",
	6: "Cancer",
}

// Label maps a class index to its condition name. Unknown indices get a
// synthetic label instead of an error; known reports which case applied.
func Label(class int) (label string, known bool) {
	if l, ok := conditionLabels[class]; ok {
		return l, true
	}
	return fmt.Sprintf("Class %d (Unknown)", class), false
}

// Labels returns the condition table keyed by class index.
func Labels() map[int]string {
	out := make(map[int]string, len(conditionLabels))
	for k, v := range conditionLabels {
		out[k] = v
	}
	return out
}
