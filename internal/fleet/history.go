package fleet

// historyLimit caps every per-instance history series. Buffers are FIFO:
// appending beyond the cap drops the oldest entries.
const historyLimit = 100

func appendBounded[T any](series []T, point T) []T {
	series = append(series, point)
	if n := len(series); n > historyLimit {
		series = series[n-historyLimit:]
	}
	return series
}
