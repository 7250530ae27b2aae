package knowledge

import (
	"cmp"
	"path"
	"slices"
	"strings"
)

// Ranker produces a deterministic total order over the paths of a knowledge set.
type Ranker interface {
	Rank(k Knowledge) Ranking
}

// RankerFunc adapts a function to Ranker.
type RankerFunc func(k Knowledge) Ranking

func (f RankerFunc) Rank(k Knowledge) Ranking { return f(k) }

// DefaultOverviews are file names that introduce their directory.
var DefaultOverviews = []string{
	"README.md",
	"README",
	"doc.go",
	"__init__.py",
	"index.md",
	"overview.md",
}

// OverviewRanker groups documents by directory. Within a directory the
// overview files come first, then the other files, then subdirectories.
type OverviewRanker struct {
	Overviews []string // defaults to DefaultOverviews
}

func (r OverviewRanker) Rank(k Knowledge) Ranking {
	overviews := r.Overviews
	if overviews == nil {
		overviews = DefaultOverviews
	}
	paths := k.Paths()
	slices.SortStableFunc(paths, func(a, b string) int {
		return compareGrouped(a, b, overviews)
	})
	return Ranking{paths: paths}
}

func compareGrouped(a, b string, overviews []string) int {
	adir, afile := path.Split(a)
	bdir, bfile := path.Split(b)
	ap := splitDir(adir)
	bp := splitDir(bdir)
	for i := 0; i < len(ap) && i < len(bp); i++ {
		if c := cmp.Compare(ap[i], bp[i]); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(len(ap), len(bp)); c != 0 {
		return c
	}
	if c := cmp.Compare(overviewRank(afile, overviews), overviewRank(bfile, overviews)); c != 0 {
		return c
	}
	return cmp.Compare(afile, bfile)
}

func splitDir(dir string) []string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}

func overviewRank(name string, overviews []string) int {
	if i := slices.Index(overviews, name); i >= 0 {
		return i
	}
	return len(overviews)
}

// LexicographicRanker orders paths by plain string comparison.
type LexicographicRanker struct{}

func (LexicographicRanker) Rank(k Knowledge) Ranking {
	return Ranking{paths: k.Paths()}
}
