package stream

// Mapper transforms a value. Returning keep = false drops
// the value from the stream. Returning an error ends the
// stream with that error.
type Mapper func(value interface{}) (mapped interface{}, keep bool, err error)

// Map transforms each element of the source stream
func Map(mapper Mapper) Processor {
	return func(stream Stream) Stream {
		return &mappedStream{source: stream, mapper: mapper}
	}
}

type mappedStream struct {
	source Stream
	mapper Mapper
	value  interface{}
	err    error
}

func (stream *mappedStream) Next() bool {
	if stream.err != nil {
		return false
	}

	for stream.source.Next() {
		mapped, keep, err := stream.mapper(stream.source.Value())

		if err != nil {
			stream.value = nil
			stream.err = err

			return false
		}

		if keep {
			stream.value = mapped

			return true
		}
	}

	stream.value = nil

	return false
}

func (stream *mappedStream) Value() interface{} {
	return stream.value
}

func (stream *mappedStream) Error() error {
	if stream.err != nil {
		return stream.err
	}

	return stream.source.Error()
}

func (stream *mappedStream) Source() Stream {
	return stream.source
}
