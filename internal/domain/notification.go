package domain

import (
	"fmt"
	"sort"
	"time"
)

// NotificationType distinguishes the two derivable notification kinds.
type NotificationType string

const (
	NotificationDocumentReceived NotificationType = "document_received"
	NotificationDocumentSigned   NotificationType = "document_signed"
)

// NotificationDocument is the document summary a notification points at.
type NotificationDocument struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NotificationActor names who triggered the notification, when known.
type NotificationActor struct {
	Name string `json:"name"`
}

// Notification is a derived, read-only projection: nothing is stored, the
// document collection is the single source of truth.
type Notification struct {
	ID        string               `json:"id"`
	Type      NotificationType     `json:"type"`
	Document  NotificationDocument `json:"document"`
	Actor     *NotificationActor   `json:"actor,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
	Read      bool                 `json:"read"`
}

// ProjectNotifications derives the notification feed for an identity from two
// document scans: documents currently in transit at the identity's office
// (received-for-signature) and documents the identity owns whose steps others
// signed.
//
// Sorted newest first. Read tracking is not persisted, so Read is always
// false.
func ProjectNotifications(received, owned []Document, officeID string) []Notification {
	notifications := []Notification{}

	for _, doc := range received {
		idx, ok := doc.ActiveStepFor(officeID)
		if !ok {
			continue
		}
		notifications = append(notifications, Notification{
			ID:        fmt.Sprintf("%s-received", doc.ID),
			Type:      NotificationDocumentReceived,
			Document:  NotificationDocument{ID: doc.ID, Title: doc.Title},
			Timestamp: doc.History[idx].Timestamp,
		})
	}

	for _, doc := range owned {
		for i, entry := range doc.History {
			if entry.Status != DocumentStatusSigned || entry.SignedBy == nil {
				continue
			}
			notifications = append(notifications, Notification{
				ID:        fmt.Sprintf("%s-signed-%d", doc.ID, i),
				Type:      NotificationDocumentSigned,
				Document:  NotificationDocument{ID: doc.ID, Title: doc.Title},
				Actor:     &NotificationActor{Name: entry.SignedBy.Name},
				Timestamp: entry.Timestamp,
			})
		}
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})

	return notifications
}
