package task

// SetStatus returns an UpdateSetter that sets the task's status.
func SetStatus(status string) UpdateSetter {
	return func(t *Task) error {
		t.Status = status
		return nil
	}
}

// SetName returns an UpdateSetter that sets the task's name.
func SetName(name string) UpdateSetter {
	return func(t *Task) error {
		if name == "" {
			return ErrInvalidName
		}
		t.Name = name
		return nil
	}
}

// SetTargetURL returns an UpdateSetter that sets the task's target URL.
func SetTargetURL(url string) UpdateSetter {
	return func(t *Task) error {
		if url == "" {
			return ErrInvalidTargetURL
		}
		t.TargetURL = url
		return nil
	}
}
