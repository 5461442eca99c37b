package inference

import (
	ort "github.com/yalue/onnxruntime_go"
)

// Session represents a model session from the onnxruntime together with
// its preallocated input and output tensors.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
	// OutputShape is the resolved shape of Output.
	OutputShape ort.Shape
}

// Run executes the session over the current contents of Input.
func (s *Session) Run() error {
	if s == nil || s.Session == nil {
		return ErrNotInitialized
	}
	return s.Session.Run()
}

// Close releases the resources associated with the Session. It is safe to
// call more than once.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.Session != nil {
		s.Session.Destroy()
		s.Session = nil
	}
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
}
