package core

import (
	"context"

	"inventorycore/pkg/domain"
	"inventorycore/pkg/history"
)

// viewResolver resolves display names against a store view at reconstruction
// time, so deleted references fall back to the history placeholder.
type viewResolver struct {
	view TransactionView
}

// ResolveDisplayName implements history.Resolver.
func (r viewResolver) ResolveDisplayName(kind EntityType, id string) (string, bool) {
	switch kind {
	case EntityEmployee:
		if emp, ok := r.view.FindEmployee(id); ok {
			return emp.DisplayName(), true
		}
	case EntityCentre:
		if c, ok := r.view.FindCentre(id); ok {
			return c.Name, true
		}
	case EntityDepartment:
		if d, ok := r.view.FindDepartment(id); ok {
			return d.Name, true
		}
	case EntityUser:
		if u, ok := r.view.FindUser(id); ok {
			return u.DisplayName(), true
		}
	}
	return "", false
}

// DeviceHistory reconstructs the timeline and grouped change log for one
// device from its snapshot log.
func (s *Service) DeviceHistory(ctx context.Context, deviceID string) (timeline []history.Interval, changeLog []history.Entry, err error) {
	err = s.store.View(ctx, func(view TransactionView) error {
		snapshots := view.ListSnapshots(deviceID)
		if len(snapshots) == 0 {
			// Deleted devices keep their log, so an empty log means the
			// device never existed.
			return ErrNotFound{Entity: EntityDevice, ID: deviceID}
		}
		rec := history.NewReconstructor(viewResolver{view: view})
		if s.burstWindow > 0 {
			rec = rec.WithBurstWindow(s.burstWindow)
		}
		timeline = rec.Timeline(snapshots)
		changeLog = rec.ChangeLog(snapshots)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return timeline, changeLog, nil
}

// Snapshots returns the raw ascending snapshot log for a device.
func (s *Service) Snapshots(ctx context.Context, deviceID string) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	err := s.store.View(ctx, func(view TransactionView) error {
		snaps = view.ListSnapshots(deviceID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}
