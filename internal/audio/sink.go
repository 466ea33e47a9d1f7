package audio

type multiSink []Sink

// MultiSink returns a Sink that forwards every delivery to each of sinks in
// order. Nil sinks are skipped.
func MultiSink(sinks ...Sink) Sink {
	all := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if m, ok := s.(multiSink); ok {
			all = append(all, m...)
			continue
		}
		all = append(all, s)
	}
	return all
}

func (m multiSink) AddFloat(samples []float32, frames int, channels int) {
	for _, s := range m {
		s.AddFloat(samples, frames, channels)
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(samples []float32, frames int, channels int)

func (f SinkFunc) AddFloat(samples []float32, frames int, channels int) {
	f(samples, frames, channels)
}
