package formfield

// SetPresetValue returns an UpdateSetter that sets the preset value.
// A nil value means the field is skipped during autofill.
func SetPresetValue(value *string) UpdateSetter {
	return func(f *FormField) error {
		f.PresetValue = value
		return nil
	}
}

// SetSelector returns an UpdateSetter that sets the field selector.
func SetSelector(selector string) UpdateSetter {
	return func(f *FormField) error {
		if selector == "" {
			return ErrInvalidSelector
		}
		f.Selector = selector
		return nil
	}
}

// SetKind returns an UpdateSetter that sets the field kind, normalizing
// unknown values to text.
func SetKind(raw string) UpdateSetter {
	return func(f *FormField) error {
		f.Kind = ParseKind(raw)
		return nil
	}
}

// SetSortOrder returns an UpdateSetter that sets the sort order.
func SetSortOrder(order int) UpdateSetter {
	return func(f *FormField) error {
		f.SortOrder = order
		return nil
	}
}
