package models

import "fmt"

// Step is a wizard position in [StepCategory..StepComplete].
type Step int

const (
	StepCategory Step = iota + 1
	StepDetails
	StepRecipient
	StepPaymentMethod
	StepReview
	StepPayment
	StepComplete
)

const (
	FirstStep = StepCategory
	LastStep  = StepComplete
)

var stepNames = map[Step]string{
	StepCategory:      "category",
	StepDetails:       "details",
	StepRecipient:     "recipient",
	StepPaymentMethod: "payment_method",
	StepReview:        "review",
	StepPayment:       "payment",
	StepComplete:      "complete",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) IsValid() bool {
	return s >= FirstStep && s <= LastStep
}

// ParseStep resolves a step by its name.
func ParseStep(name string) (Step, bool) {
	for s, n := range stepNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}
