package engines

import "context"

// Deliver hands samples and events to cb in batches of batchSize samples.
// Each event travels with the batch that contains its sample, and a RawEnd
// entry closes the last batch. events must be ordered by sample. Deliver
// always calls cb at least once, so an engine that produced no audio still
// reports its events.
func Deliver(ctx context.Context, samples []int16, events []RawEvent, batchSize int, cb Callback) error {
	if batchSize < 1 {
		batchSize = len(samples)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	next := 0
	for start := 0; ; start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		last := end >= len(samples)
		if last {
			end = len(samples)
		}

		var batch []RawEvent
		for next < len(events) && (last || events[next].Sample < end) {
			batch = append(batch, events[next])
			next++
		}
		if last {
			batch = append(batch, RawEvent{Type: RawEnd, Sample: len(samples)})
		}

		cb(samples[start:end], batch)

		if last {
			return nil
		}
	}
}
