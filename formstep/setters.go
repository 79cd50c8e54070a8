package formstep

// SetHumanBreakpoint returns an UpdateSetter that toggles the human
// breakpoint flag.
func SetHumanBreakpoint(enabled bool) UpdateSetter {
	return func(f *FormStep) error {
		f.HumanBreakpoint = enabled
		return nil
	}
}

// SetSubmitSelector returns an UpdateSetter that sets the submit selector.
func SetSubmitSelector(selector string) UpdateSetter {
	return func(f *FormStep) error {
		f.SubmitSelector = selector
		return nil
	}
}

// SetFormSelector returns an UpdateSetter that sets the form selector.
func SetFormSelector(selector string) UpdateSetter {
	return func(f *FormStep) error {
		if selector == "" {
			return ErrInvalidFormSelector
		}
		f.FormSelector = selector
		return nil
	}
}

// SetDependsOnStep returns an UpdateSetter that sets the step dependency.
func SetDependsOnStep(stepOrder *int) UpdateSetter {
	return func(f *FormStep) error {
		f.DependsOnStep = stepOrder
		return nil
	}
}
