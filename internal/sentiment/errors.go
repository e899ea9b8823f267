package sentiment

import "errors"

var (
	ErrProviderUnavailable = errors.New("sentiment provider unavailable")
	ErrInferenceTimeout    = errors.New("sentiment inference timeout")
	ErrInvalidResponse     = errors.New("sentiment provider returned invalid response")
)
