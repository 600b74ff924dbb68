// internal/services/dedup_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/javajoker/venuetrust/internal/cache"
	"github.com/javajoker/venuetrust/internal/database"
	"github.com/javajoker/venuetrust/internal/models"
	"github.com/javajoker/venuetrust/internal/normalize"
)

type relationAction int

const (
	actionRepoint relationAction = iota
	actionPurge
)

// relation is a table that references stores and how a merge treats it.
type relation struct {
	Table  string
	Column string
	Action relationAction
	// Canonical rows are purged as well; used for caches derived from the
	// pre-merge state.
	IncludeCanonical bool
}

// mergeRelations is the ordered merge cascade. Repoints run before purges.
var mergeRelations = []relation{
	{Table: "reviews", Column: "store_id", Action: actionRepoint},
	{Table: "review_analyses", Column: "store_id", Action: actionRepoint},
	{Table: "store_favorites", Column: "store_id", Action: actionRepoint},
	{Table: "store_summaries", Column: "store_id", Action: actionPurge},
	{Table: "external_review_caches", Column: "store_id", Action: actionPurge},
	{Table: "store_snapshots", Column: "store_id", Action: actionPurge, IncludeCanonical: true},
}

type DedupOptions struct {
	DefaultMaxGroups int
	PageSize         int
	Parallelism      int
}

type DedupService struct {
	db        *gorm.DB
	summaries *SummaryService
	snapshots *cache.Snapshots
	opts      DedupOptions
}

// DuplicateGroup is a set of stores that share an identity key.
type DuplicateGroup struct {
	Key       string       `json:"key"`
	Canonical models.Store `json:"canonical"`
	SourceIDs []uint64     `json:"source_ids"`
}

type SkippedStep struct {
	CanonicalID uint64 `json:"canonical_id"`
	Step        string `json:"step"`
	Reason      string `json:"reason"`
}

type GroupError struct {
	CanonicalID uint64   `json:"canonical_id"`
	SourceIDs   []uint64 `json:"source_ids"`
	Error       string   `json:"error"`
}

type DedupRequest struct {
	MaxGroups int  `json:"max_groups" validate:"min=0"`
	DryRun    bool `json:"dry_run"`
}

type DedupResult struct {
	RunID         uuid.UUID        `json:"run_id"`
	DryRun        bool             `json:"dry_run"`
	GroupsFound   int              `json:"groups_found"`
	GroupsMerged  int              `json:"groups_merged"`
	StoresRemoved int              `json:"stores_removed"`
	ReviewsMoved  int64            `json:"reviews_moved"`
	Skipped       []SkippedStep    `json:"skipped"`
	Errors        []GroupError     `json:"errors"`
	Groups        []DuplicateGroup `json:"groups,omitempty"`
}

func NewDedupService(db *gorm.DB, summaries *SummaryService, snapshots *cache.Snapshots, opts DedupOptions) *DedupService {
	if opts.DefaultMaxGroups <= 0 {
		opts.DefaultMaxGroups = 100
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &DedupService{db: db, summaries: summaries, snapshots: snapshots, opts: opts}
}

// FindGroups scans every store in id order and returns up to maxGroups
// groups of stores sharing an identity key. Stores missing a name or
// address key never group.
func (s *DedupService) FindGroups(ctx context.Context, maxGroups int) ([]DuplicateGroup, error) {
	if maxGroups <= 0 {
		maxGroups = s.opts.DefaultMaxGroups
	}

	members := map[string][]models.Store{}
	var order []string
	var lastID uint64
	for {
		var page []models.Store
		err := s.db.WithContext(ctx).
			Where("id > ?", lastID).
			Order("id ASC").
			Limit(s.opts.PageSize).
			Find(&page).Error
		if err != nil {
			return nil, fmt.Errorf("failed to scan stores: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, st := range page {
			key := normalize.IdentityKey(st.Name, st.AddressText())
			if key == "" {
				continue
			}
			if _, ok := members[key]; !ok {
				order = append(order, key)
			}
			members[key] = append(members[key], st)
		}
		lastID = page[len(page)-1].ID
		if len(page) < s.opts.PageSize {
			break
		}
	}

	var groups []DuplicateGroup
	for _, key := range order {
		stores := members[key]
		if len(stores) < 2 {
			continue
		}
		canonical, sources := SelectCanonical(stores)
		groups = append(groups, DuplicateGroup{Key: key, Canonical: canonical, SourceIDs: sources})
		if len(groups) >= maxGroups {
			break
		}
	}
	return groups, nil
}

// canonicalBefore orders merge candidates: located first, then with a place
// id, more external reviews, higher external rating, lower id.
func canonicalBefore(a, b *models.Store) bool {
	if a.HasLocation() != b.HasLocation() {
		return a.HasLocation()
	}
	if (a.PlaceID != nil) != (b.PlaceID != nil) {
		return a.PlaceID != nil
	}
	if a.ExternalReviewCount != b.ExternalReviewCount {
		return a.ExternalReviewCount > b.ExternalReviewCount
	}
	ra, rb := -1.0, -1.0
	if a.ExternalRating != nil {
		ra = *a.ExternalRating
	}
	if b.ExternalRating != nil {
		rb = *b.ExternalRating
	}
	if ra != rb {
		return ra > rb
	}
	return a.ID < b.ID
}

// SelectCanonical picks the store that survives a merge and returns it with
// the ids of the others.
func SelectCanonical(stores []models.Store) (models.Store, []uint64) {
	sorted := make([]models.Store, len(stores))
	copy(sorted, stores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return canonicalBefore(&sorted[i], &sorted[j])
	})

	sources := make([]uint64, 0, len(sorted)-1)
	for _, st := range sorted[1:] {
		sources = append(sources, st.ID)
	}
	return sorted[0], sources
}

// absorb fills gaps in the canonical store from its sources.
func absorb(canonical *models.Store, sources []models.Store) bool {
	changed := false
	for i := range sources {
		src := &sources[i]
		if !canonical.HasLocation() && src.HasLocation() {
			canonical.Latitude, canonical.Longitude = src.Latitude, src.Longitude
			changed = true
		}
		if canonical.PlaceID == nil && src.PlaceID != nil {
			canonical.PlaceID = src.PlaceID
			changed = true
		}
		if canonical.ExternalRating == nil && src.ExternalRating != nil {
			canonical.ExternalRating = src.ExternalRating
			changed = true
		}
		if src.ExternalReviewCount > canonical.ExternalReviewCount {
			canonical.ExternalReviewCount = src.ExternalReviewCount
			changed = true
		}
	}
	return changed
}

type groupOutcome struct {
	reviewsMoved int64
	removed      int
	skipped      []SkippedStep
}

func (s *DedupService) probe(db *gorm.DB, rel relation) database.Capability {
	return database.ProbeColumn(db, rel.Table, rel.Column)
}

// mergeGroup folds the sources into the canonical store: repoint dependents,
// purge derived caches, absorb missing fields, delete the sources and
// recompute the canonical summary.
func (s *DedupService) mergeGroup(ctx context.Context, g DuplicateGroup) (*groupOutcome, error) {
	db := s.db.WithContext(ctx)
	out := &groupOutcome{}
	log := logrus.WithFields(logrus.Fields{
		"canonical_id": g.Canonical.ID,
		"source_ids":   g.SourceIDs,
	})

	skip := func(step, reason string) {
		out.skipped = append(out.skipped, SkippedStep{CanonicalID: g.Canonical.ID, Step: step, Reason: reason})
		log.WithFields(logrus.Fields{"step": step, "reason": reason}).Warn("Merge step skipped")
	}

	for _, rel := range mergeRelations {
		step := rel.Table + "." + rel.Column
		if c := s.probe(db, rel); !c.Supported {
			skip(step, c.Reason)
			continue
		}

		var res *gorm.DB
		switch rel.Action {
		case actionRepoint:
			res = db.Exec(fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IN ?", rel.Table, rel.Column, rel.Column),
				g.Canonical.ID, g.SourceIDs)
		case actionPurge:
			ids := g.SourceIDs
			if rel.IncludeCanonical {
				ids = append([]uint64{g.Canonical.ID}, g.SourceIDs...)
			}
			res = db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", rel.Table, rel.Column), ids)
		}
		if res.Error != nil {
			if database.IsSchemaMissing(res.Error) {
				skip(step, res.Error.Error())
				continue
			}
			return out, fmt.Errorf("%s: %w", step, res.Error)
		}
		if rel.Table == "reviews" {
			out.reviewsMoved = res.RowsAffected
		}
	}

	var sources []models.Store
	if err := db.Where("id IN ?", g.SourceIDs).Find(&sources).Error; err != nil {
		return out, fmt.Errorf("load sources: %w", err)
	}
	canonical := g.Canonical
	if absorb(&canonical, sources) {
		if err := db.Save(&canonical).Error; err != nil {
			return out, fmt.Errorf("absorb sources: %w", err)
		}
	}

	res := db.Where("id IN ?", g.SourceIDs).Delete(&models.Store{})
	if res.Error != nil {
		return out, fmt.Errorf("delete sources: %w", res.Error)
	}
	out.removed = int(res.RowsAffected)

	if s.snapshots != nil {
		for _, id := range append([]uint64{g.Canonical.ID}, g.SourceIDs...) {
			if err := s.snapshots.Invalidate(ctx, id); err != nil {
				log.WithError(err).WithField("store_id", id).Warn("Failed to invalidate snapshot")
			}
		}
	}

	if _, err := s.summaries.Recompute(ctx, g.Canonical.ID); err != nil {
		return out, fmt.Errorf("recompute summary: %w", err)
	}

	log.WithFields(logrus.Fields{
		"reviews_moved": out.reviewsMoved,
		"removed":       out.removed,
	}).Info("Duplicate group merged")
	return out, nil
}

// Run finds duplicate groups and merges them with bounded parallelism. A
// failing group is recorded and never stops the others.
func (s *DedupService) Run(ctx context.Context, req DedupRequest) (*DedupResult, error) {
	result := &DedupResult{
		RunID:   uuid.New(),
		DryRun:  req.DryRun,
		Skipped: []SkippedStep{},
		Errors:  []GroupError{},
	}
	log := logrus.WithField("run_id", result.RunID)

	groups, err := s.FindGroups(ctx, req.MaxGroups)
	if err != nil {
		return nil, err
	}
	result.GroupsFound = len(groups)
	if req.DryRun {
		result.Groups = groups
		log.WithField("groups", len(groups)).Info("Dedup dry run completed")
		return result, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Parallelism)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			out, err := s.mergeGroup(ctx, group)

			mu.Lock()
			defer mu.Unlock()
			if out != nil {
				result.ReviewsMoved += out.reviewsMoved
				result.StoresRemoved += out.removed
				result.Skipped = append(result.Skipped, out.skipped...)
			}
			if err != nil {
				result.Errors = append(result.Errors, GroupError{
					CanonicalID: group.Canonical.ID,
					SourceIDs:   group.SourceIDs,
					Error:       err.Error(),
				})
				log.WithError(err).WithField("canonical_id", group.Canonical.ID).Error("Failed to merge duplicate group")
				return nil
			}
			result.GroupsMerged++
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(logrus.Fields{
		"groups_found":   result.GroupsFound,
		"groups_merged":  result.GroupsMerged,
		"stores_removed": result.StoresRemoved,
		"errors":         len(result.Errors),
	}).Info("Dedup run completed")
	return result, nil
}
