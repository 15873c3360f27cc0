package predictor

import (
	"fmt"
	"math"
	"strings"
)

// FeatureVector is the model input. Field order matches the order the
// scaler and model were fitted on; Values is the only place it is flattened.
type FeatureVector struct {
	Age           int     `json:"age"`
	Glucose       float64 `json:"glucose"`
	BloodPressure float64 `json:"bloodPressure"`
	BMI           float64 `json:"bmi"`
	Cholesterol   float64 `json:"cholesterol"`
	HbA1c         float64 `json:"hba1c"`
	Triglycerides float64 `json:"triglycerides"`
	DietScore     int     `json:"dietScore"`
	StressLevel   int     `json:"stressLevel"`
	SleepHours    float64 `json:"sleepHours"`
}

// NumFeatures is the arity of FeatureVector.
const NumFeatures = 10

// Values returns the vector in fitted order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		float64(f.Age),
		f.Glucose,
		f.BloodPressure,
		f.BMI,
		f.Cholesterol,
		f.HbA1c,
		f.Triglycerides,
		float64(f.DietScore),
		float64(f.StressLevel),
		f.SleepHours,
	}
}

type Field struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Unit    string  `json:"unit"`
	Help    string  `json:"help"`
	Group   string  `json:"group"`
	Integer bool    `json:"integer"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

const (
	GroupPatient   = "Patient Metrics"
	GroupLifestyle = "Lifestyle Factors"
)

// fields lists the form inputs in fitted order. Name is the column name the
// artifacts were trained with.
var fields = []Field{
	{Key: "age", Name: "Age", Label: "Age", Unit: "Years", Help: "Patient's age.", Group: GroupPatient, Integer: true, Min: 0, Max: 120, Default: 30},
	{Key: "glucose", Name: "Glucose", Label: "Glucose", Unit: "mg/dL", Help: "Fasting blood glucose level.", Group: GroupPatient, Min: 50, Max: 300, Default: 100},
	{Key: "bloodPressure", Name: "Blood Pressure", Label: "Blood Pressure", Unit: "mmHg", Help: "Systolic blood pressure.", Group: GroupPatient, Min: 60, Max: 200, Default: 120},
	{Key: "bmi", Name: "BMI", Label: "BMI", Unit: "kg/m²", Help: "Body Mass Index.", Group: GroupPatient, Min: 10, Max: 60, Default: 25},
	{Key: "cholesterol", Name: "Cholesterol", Label: "Cholesterol", Unit: "mg/dL", Help: "Total Cholesterol level.", Group: GroupPatient, Min: 100, Max: 400, Default: 180},
	{Key: "hba1c", Name: "HbA1c", Label: "HbA1c", Unit: "%", Help: "Glycated Hemoglobin level, measures average blood sugar over 3 months.", Group: GroupPatient, Min: 4, Max: 14, Default: 5.5},
	{Key: "triglycerides", Name: "Triglycerides", Label: "Triglycerides", Unit: "mg/dL", Help: "Blood triglyceride level.", Group: GroupPatient, Min: 50, Max: 500, Default: 150},
	{Key: "dietScore", Name: "Diet Score", Label: "Diet Score", Unit: "0=Poor, 10=Excellent", Help: "Subjective score reflecting diet quality.", Group: GroupLifestyle, Integer: true, Min: 0, Max: 10, Default: 5},
	{Key: "stressLevel", Name: "Stress Level", Label: "Stress Level", Unit: "0=Low, 10=High", Help: "Subjective stress level.", Group: GroupLifestyle, Integer: true, Min: 0, Max: 10, Default: 5},
	{Key: "sleepHours", Name: "Sleep Hours", Label: "Sleep Hours", Unit: "Hours", Help: "Average hours of sleep per night.", Group: GroupLifestyle, Min: 0, Max: 24, Default: 7},
}

// Fields returns a copy of the input field table in fitted order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// FeatureNames returns the trained column names in fitted order.
func FeatureNames() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// DefaultFeatures returns the vector the form starts with.
func DefaultFeatures() FeatureVector {
	return FeatureVector{
		Age:           30,
		Glucose:       100,
		BloodPressure: 120,
		BMI:           25,
		Cholesterol:   180,
		HbA1c:         5.5,
		Triglycerides: 150,
		DietScore:     5,
		StressLevel:   5,
		SleepHours:    7,
	}
}

// FieldError describes one rejected input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected field of a FeatureVector.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "invalid features: " + strings.Join(msgs, "; ")
}

// Validate checks every field against its inclusive range.
func (f FeatureVector) Validate() error {
	var errs []FieldError
	for i, v := range f.Values() {
		field := fields[i]
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			errs = append(errs, FieldError{Field: field.Key, Message: fmt.Sprintf("%s must be a finite number", field.Label)})
		case v < field.Min || v > field.Max:
			errs = append(errs, FieldError{
				Field:   field.Key,
				Message: fmt.Sprintf("%s must be between %g and %g", field.Label, field.Min, field.Max),
			})
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
