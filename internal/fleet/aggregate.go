package fleet

// Summary is the per-bucket task count of one snapshot.
type Summary struct {
	Pending   int
	Blocked   int
	Active    int
	Completed int
	// Total counts every task, including ones whose status fits no bucket.
	Total int
}

// Aggregate counts tasks per bucket after alias normalization.
func Aggregate(tasks []Task) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		switch TaskBucket(t.Status) {
		case BucketPending:
			s.Pending++
		case BucketBlocked:
			s.Blocked++
		case BucketActive:
			s.Active++
		case BucketCompleted:
			s.Completed++
		}
	}
	return s
}

// Count returns the count for a bucket name, or 0 for an unknown bucket.
func (s Summary) Count(bucket string) int {
	switch bucket {
	case BucketPending:
		return s.Pending
	case BucketBlocked:
		return s.Blocked
	case BucketActive:
		return s.Active
	case BucketCompleted:
		return s.Completed
	}
	return 0
}

// Percent returns completed/total*100, or 0 when there are no tasks.
func (s Summary) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}
