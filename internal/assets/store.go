// Package assets owns the registered images, their edits, and the render
// resources attached to them.
package assets

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dunamismax/pixelgrade/internal/codec"
	"github.com/dunamismax/pixelgrade/internal/domain"
	"github.com/dunamismax/pixelgrade/internal/geometry"
	"github.com/dunamismax/pixelgrade/internal/id"
)

// Resource is a render artifact owned by the store on behalf of an asset.
type Resource interface {
	Release()
}

type entry struct {
	asset   domain.Asset
	seq     uint64
	preview Resource
	result  Resource
}

// Store is safe for concurrent use. All values it returns are copies except
// Asset.Source, which is shared and read-only.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
	now     func() time.Time
	live    int
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register decodes the header of data and adds a new asset with default
// adjustments and no crop.
func (s *Store) Register(name string, data []byte) (domain.Asset, error) {
	cfg, err := codec.DecodeConfig(data)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("register %q: %w", name, err)
	}
	if domain.ValidateName(name) != nil {
		name = "image." + cfg.Format
	}

	asset := domain.Asset{
		ID:           id.New(),
		Name:         name,
		Width:        cfg.Width,
		Height:       cfg.Height,
		SourceFormat: cfg.Format,
		Source:       data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	asset.CreatedAt = s.now()
	s.entries[asset.ID] = &entry{asset: asset, seq: s.seq}
	return asset.Clone(), nil
}

func (s *Store) Get(assetID string) (domain.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[assetID]
	if !ok {
		return domain.Asset{}, false
	}
	return e.asset.Clone(), true
}

// List returns every asset in registration order.
func (s *Store) List() []domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Snapshot copies the named assets in the order the ids are given. With no
// ids it copies all of them in registration order. Unknown and repeated ids
// are skipped.
func (s *Store) Snapshot(assetIDs ...string) []domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(assetIDs) == 0 {
		return s.sortedLocked()
	}

	seen := make(map[string]struct{}, len(assetIDs))
	out := make([]domain.Asset, 0, len(assetIDs))
	for _, assetID := range assetIDs {
		if _, dup := seen[assetID]; dup {
			continue
		}
		seen[assetID] = struct{}{}
		if e, ok := s.entries[assetID]; ok {
			out = append(out, e.asset.Clone())
		}
	}
	return out
}

func (s *Store) sortedLocked() []domain.Asset {
	list := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]domain.Asset, 0, len(list))
	for _, e := range list {
		out = append(out, e.asset.Clone())
	}
	return out
}

// Rename sets the display name. A blank name is rejected and leaves the
// asset unchanged.
func (s *Store) Rename(assetID, name string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	s.mutate(assetID, func(e *entry) { e.asset.Name = name })
	return nil
}

func (s *Store) UpdateAdjustments(assetID string, adjustments domain.Adjustments) {
	s.mutate(assetID, func(e *entry) { e.asset.Adjustments = adjustments })
}

// UpdateCrop clamps the region to the asset bounds. A nil crop clears it.
func (s *Store) UpdateCrop(assetID string, crop *domain.CropRegion) error {
	var err error
	s.mutate(assetID, func(e *entry) {
		if crop == nil {
			e.asset.Crop = nil
			return
		}
		var clamped domain.CropRegion
		clamped, err = geometry.ClampRegion(e.asset.Width, e.asset.Height, *crop)
		if err == nil {
			e.asset.Crop = &clamped
		}
	})
	return err
}

func (s *Store) SetObjectKey(assetID, key string) {
	s.mutate(assetID, func(e *entry) { e.asset.ObjectKey = key })
}

// Delete removes the asset and releases everything attached to it.
func (s *Store) Delete(assetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[assetID]
	if !ok {
		return
	}
	s.releaseLocked(e.preview)
	s.releaseLocked(e.result)
	delete(s.entries, assetID)
}

// AttachPreview makes res the asset's live preview, releasing the previous
// one. It returns false, and releases res, when the asset is unknown.
func (s *Store) AttachPreview(assetID string, res Resource) bool {
	return s.attach(assetID, res, func(e *entry) *Resource { return &e.preview })
}

// AttachResult is AttachPreview for the last processed export output.
func (s *Store) AttachResult(assetID string, res Resource) bool {
	return s.attach(assetID, res, func(e *entry) *Resource { return &e.result })
}

func (s *Store) attach(assetID string, res Resource, slot func(*entry) *Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[assetID]
	if !ok {
		if res != nil {
			res.Release()
		}
		return false
	}

	current := slot(e)
	if *current == res {
		return true
	}
	s.releaseLocked(*current)
	*current = res
	if res != nil {
		s.live++
	}
	return true
}

// LiveResources counts attached resources that have not been released.
func (s *Store) LiveResources() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Close releases every attached resource.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		s.releaseLocked(e.preview)
		s.releaseLocked(e.result)
		e.preview, e.result = nil, nil
	}
}

func (s *Store) releaseLocked(res Resource) {
	if res == nil {
		return
	}
	res.Release()
	s.live--
}

func (s *Store) mutate(assetID string, fn func(*entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[assetID]; ok {
		fn(e)
	}
}
