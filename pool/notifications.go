// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/federava/week2/crypto"
	"github.com/federava/week2/types"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various pool events.
type NotificationCallback func(*Notification)

// Constants for the type of a notification message.
const (
	// NTNewCommitment indicates a commitment was inserted into the tree.
	NTNewCommitment NotificationType = iota
	// NTNewNullifier indicates a nullifier was spent.
	NTNewNullifier
	// NTAccountRegistered indicates a shielded account was registered.
	NTAccountRegistered
)

// notificationTypeStrings is a map of notification types back to their constant
// names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTNewCommitment:     "NTNewCommitment",
	NTNewNullifier:      "NTNewNullifier",
	NTAccountRegistered: "NTAccountRegistered",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// CommitmentEvent is emitted once per inserted commitment. Root is the
// tree root after the whole transaction was applied.
type CommitmentEvent struct {
	Commitment      types.ID
	EncryptedOutput []byte
	Index           uint64
	Root            types.ID
}

// AccountEvent is emitted when an owner registers a shielded public key.
type AccountEvent struct {
	Owner     common.Address
	PublicKey *crypto.PublicKey
}

// Notification defines notification that is sent to the caller via the callback
// function provided during the call to Subscribe and consists of a notification
// type as well as associated data that depends on the type as follows:
//   - NTNewCommitment:     *CommitmentEvent
//   - NTNewNullifier:      types.Nullifier
//   - NTAccountRegistered: *AccountEvent
type Notification struct {
	Type NotificationType
	Data interface{}
}

// Subscribe to pool notifications. Registers a callback to be executed
// when various events take place. See the documentation on Notification and
// NotificationType for details on the types and contents of notifications.
func (p *Pool) Subscribe(callback NotificationCallback) {
	p.notificationsLock.Lock()
	p.notifications = append(p.notifications, callback)
	p.notificationsLock.Unlock()
}

// sendNotification sends a notification with the passed type and data if the
// caller requested notifications by providing a callback function in the call
// to Subscribe.
func (p *Pool) sendNotification(typ NotificationType, data interface{}) {
	// Generate and send the notification.
	n := Notification{Type: typ, Data: data}
	p.notificationsLock.RLock()
	for _, callback := range p.notifications {
		go callback(&n)
	}
	p.notificationsLock.RUnlock()
}
