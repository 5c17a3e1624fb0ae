package pipeline

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Lllllllleong/lessonswarm/internal/models"
	"golang.org/x/sync/errgroup"
)

const DefaultGroupSize = 5

// PageProcessor never fails: it always yields a result for the page.
type PageProcessor interface {
	Process(ctx context.Context, page models.PageContent, cp models.ContextPacket) models.PageResult
}

// Scheduler runs pages in fixed-size groups. Groups run one after another and
// the pages of a group run concurrently, so at most groupSize pages are in
// flight at any time.
type Scheduler struct {
	worker    PageProcessor
	groupSize int
	log       *slog.Logger
}

func NewScheduler(worker PageProcessor, groupSize int, log *slog.Logger) *Scheduler {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{worker: worker, groupSize: groupSize, log: log}
}

// RunAll returns one result per page, sorted by page number.
func (s *Scheduler) RunAll(ctx context.Context, pages []models.PageContent, cp models.ContextPacket) []models.PageResult {
	results := make([]models.PageResult, 0, len(pages))

	for i, group := range partition(pages, s.groupSize) {
		s.log.Info("Processing page group.", "group", i+1, "size", len(group))

		groupResults := make([]models.PageResult, len(group))
		var eg errgroup.Group
		for j, page := range group {
			eg.Go(func() error {
				groupResults[j] = s.worker.Process(ctx, page, cp)
				return nil
			})
		}
		_ = eg.Wait()

		results = append(results, groupResults...)
	}

	SortByPage(results)
	return results
}

// SortByPage orders results by page number. Completion order is never relied on.
func SortByPage(results []models.PageResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Page < results[j].Page })
}

// partition splits pages into consecutive groups of at most size pages.
func partition(pages []models.PageContent, size int) [][]models.PageContent {
	groups := make([][]models.PageContent, 0, (len(pages)+size-1)/size)
	for start := 0; start < len(pages); start += size {
		end := min(start+size, len(pages))
		groups = append(groups, pages[start:end])
	}
	return groups
}
