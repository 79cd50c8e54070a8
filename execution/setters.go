package execution

// SetStarted transitions the execution into the running state.
func SetStarted() UpdateSetter {
	return func(e *ExecutionLog) error {
		e.Start()
		return nil
	}
}

// SetStatus sets the execution status.
func SetStatus(status Status) UpdateSetter {
	return func(e *ExecutionLog) error {
		if !status.IsValid() {
			return ErrInvalidStatus
		}
		e.Status = status
		return nil
	}
}

// SetCompleted transitions the execution into a terminal state.
func SetCompleted(status Status, errorMessage string) UpdateSetter {
	return func(e *ExecutionLog) error {
		return e.Complete(status, errorMessage)
	}
}

// SetStepsLog replaces the step log.
func SetStepsLog(records []StepRecord) UpdateSetter {
	return func(e *ExecutionLog) error {
		e.StepsLog = records
		return nil
	}
}

// SetScreenshot records where the final screenshot landed.
func SetScreenshot(localPath, storageKey string, size int64) UpdateSetter {
	return func(e *ExecutionLog) error {
		e.ScreenshotPath = localPath
		e.ScreenshotKey = storageKey
		e.ScreenshotSize = size
		return nil
	}
}

// SetDisplaySession attaches a display session to the execution.
func SetDisplaySession(sessionID string) UpdateSetter {
	return func(e *ExecutionLog) error {
		e.DisplaySessionID = &sessionID
		return nil
	}
}

// ClearDisplaySession detaches the display session from the execution.
func ClearDisplaySession() UpdateSetter {
	return func(e *ExecutionLog) error {
		e.DisplaySessionID = nil
		return nil
	}
}

// SetRetryCount sets the retry count.
func SetRetryCount(count int) UpdateSetter {
	return func(e *ExecutionLog) error {
		e.RetryCount = count
		return nil
	}
}

// SetErrorMessage sets the error message without changing status.
func SetErrorMessage(msg string) UpdateSetter {
	return func(e *ExecutionLog) error {
		e.ErrorMessage = msg
		return nil
	}
}
