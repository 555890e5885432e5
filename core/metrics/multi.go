package metrics

// MultiSink forwards every record to each sink supporting it.
type MultiSink struct {
	Sinks []MetricsSink
}

// Fanout combines sinks into a MultiSink.
func Fanout(sinks ...MetricsSink) *MultiSink { return &MultiSink{Sinks: sinks} }

// RecordFareQuote forwards the quote, returning the first error encountered.
func (m *MultiSink) RecordFareQuote(ev FareQuoteEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordFareQuote(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiSink) RecordSyncState(ev SyncStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SyncStateRecorder); ok {
			if err := rec.RecordSyncState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordIngestEvent(ev IngestEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(IngestRecorder); ok {
			if err := rec.RecordIngestEvent(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordPoll(ev PollEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(PollRecorder); ok {
			if err := rec.RecordPoll(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MultiSink) RecordMerge(ev MergeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MergeRecorder); ok {
			if err := rec.RecordMerge(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
