package feed

// EnforceDiversity walks a score-sorted list left to right tracking
// per-author run length. When an author's run reaches runCap consecutive
// posts, that post's score is multiplied by the penalty factor and the run
// counter resets.
//
// This is a soft penalty: the list is not re-sorted afterwards, so a
// penalized post keeps its position in this pass. Callers needing a strict
// consecutive cap must re-sort after penalizing; in practice runs rarely
// exceed the cap by more than one, so the single pass is kept cheap and
// order-stable.
func EnforceDiversity(posts []*RankedPost, runCap int, penalty float64) {
	if runCap <= 0 || len(posts) == 0 {
		return
	}

	var runAuthor string
	var runLength int
	for _, rp := range posts {
		if rp.Post.AuthorID != runAuthor {
			runAuthor = rp.Post.AuthorID
			runLength = 1
			continue
		}

		runLength++
		if runLength >= runCap {
			rp.Score *= penalty
			runLength = 0
		}
	}
}
