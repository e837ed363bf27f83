package core

import (
	"context"

	"github.com/rs/zerolog"

	"inventorycore/pkg/domain"
)

// Sink delivers workflow notifications. Delivery happens inside the caller's
// transaction so a rejected commit discards the notification too, but a sink
// failure must never fail the originating operation.
type Sink interface {
	Notify(ctx context.Context, tx Transaction, recipientID, message string, originKind EntityType, originID string)
}

// Router is the store-backed Sink: it writes Notification records and logs
// delivery problems instead of propagating them.
type Router struct {
	log zerolog.Logger
}

// NewRouter constructs a store-backed notification router.
func NewRouter(log zerolog.Logger) *Router {
	return &Router{log: log}
}

// Notify records a notification for the recipient. Errors are logged and
// swallowed.
func (r *Router) Notify(ctx context.Context, tx Transaction, recipientID, message string, originKind EntityType, originID string) {
	if recipientID == "" {
		return
	}
	_, err := tx.CreateNotification(Notification{
		UserID:     recipientID,
		Message:    message,
		OriginKind: originKind,
		OriginID:   originID,
	})
	if err != nil {
		r.log.Warn().
			Err(err).
			Str("recipient", recipientID).
			Str("origin_kind", string(originKind)).
			Str("origin_id", originID).
			Msg("notification delivery failed")
	}
}

// notifyOnce suppresses duplicates: it delivers only when the recipient has
// no unread notification for the same origin.
func (s *Service) notifyOnce(ctx context.Context, tx Transaction, recipientID, message string, originKind EntityType, originID string) {
	for _, n := range tx.Snapshot().NotificationsForOrigin(originKind, originID) {
		if n.UserID == recipientID && !n.IsRead {
			return
		}
	}
	s.notifier.Notify(ctx, tx, recipientID, message, originKind, originID)
}

// notifyAdmins fans a message out to every elevated user except the actor.
func (s *Service) notifyAdmins(ctx context.Context, tx Transaction, actor User, message string, originKind EntityType, originID string) {
	for _, u := range tx.Snapshot().ListUsers() {
		if !u.Elevated() || u.ID == actor.ID {
			continue
		}
		s.notifier.Notify(ctx, tx, u.ID, message, originKind, originID)
	}
}

// markAdminNotificationsResponded closes out the admins' pending
// notifications for an origin once one of them acts on it.
func markAdminNotificationsResponded(tx Transaction, actor User, originKind EntityType, originID string) error {
	view := tx.Snapshot()
	for _, n := range view.NotificationsForOrigin(originKind, originID) {
		recipient, ok := view.FindUser(n.UserID)
		if !ok || !recipient.Elevated() || n.IsRead {
			continue
		}
		if _, err := tx.UpdateNotification(n.ID, func(notif *Notification) error {
			notif.IsRead = true
			notif.RespondedByID = &actor.ID
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// MarkNotificationRead marks one of the actor's notifications as read. Only
// the recipient may do so.
func (s *Service) MarkNotificationRead(ctx context.Context, actor User, notificationID string) error {
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		var target *Notification
		for _, n := range view.ListNotifications() {
			if n.ID == notificationID {
				found := n
				target = &found
				break
			}
		}
		if target == nil {
			return ErrNotFound{Entity: EntityNotification, ID: notificationID}
		}
		if target.UserID != actor.ID {
			return domain.Errorf(domain.KindPermissionDenied, EntityNotification, notificationID,
				"only the recipient may mark a notification read")
		}
		_, err := tx.UpdateNotification(notificationID, func(n *Notification) error {
			n.IsRead = true
			return nil
		})
		return err
	})
	return err
}
