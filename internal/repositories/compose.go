package repositories

type paperOverride struct {
	Repository
	papers PaperRepository
}

func (p paperOverride) Paper() PaperRepository {
	return p.papers
}

// WithPapers returns repo with its paper store replaced, typically by a
// caching decorator around the original.
func WithPapers(repo Repository, papers PaperRepository) Repository {
	return paperOverride{Repository: repo, papers: papers}
}
